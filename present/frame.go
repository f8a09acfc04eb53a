// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import (
	"github.com/pkg/errors"
)

// ErrNoRenderPass is returned by the framebuffer accessors before
// AttachRenderPassAndDepthBuffer was called on the live swapchain.
var ErrNoRenderPass = errors.New("no render pass attached")

// AcquireNextImageIndex waits until the next in-flight slot is free,
// then acquires a swapchain image for it. The returned index selects
// the command buffer and framebuffer to record into.
func (e *Engine) AcquireNextImageIndex() (uint32, error) {
	if e.state != StateCreated {
		return 0, ErrNoSwapchain
	}
	if e.stale {
		return 0, ErrResizeRequired
	}

	slot := e.nextFrame
	if err := e.dev.WaitForFence(e.fences[slot], e.cfg.FenceTimeout); err != nil {
		e.log.WithError(err).WithField("slot", slot).Error("in-flight fence wait failed")
		return 0, errors.Wrap(err, "WaitForFence")
	}

	// The fence stays signaled until an image is held, so a failed
	// acquire can simply be retried.
	idx, err := e.dev.AcquireNextImage(e.swapchain, e.cfg.FenceTimeout, e.acquired[slot])
	if stale(err) {
		e.requestResize()
		return 0, ErrResizeRequired
	} else if err != nil {
		e.log.WithError(err).Error("cannot acquire swapchain image")
		return 0, errors.Wrap(err, "AcquireNextImage")
	}
	if int(idx) >= len(e.images) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "acquired %d of %d", idx, len(e.images))
	}
	if err := e.dev.ResetFence(e.fences[slot]); err != nil {
		return 0, errors.Wrap(err, "ResetFence")
	}

	e.curImage = idx
	e.curFrame = slot
	e.nextFrame = (slot + 1) % len(e.fences)
	e.inFrame = true
	return idx, nil
}

// AbandonFrame gives up the acquired image without rendering to it.
// An empty submission consumes the acquire semaphore and signals the
// in-flight fence, and the swapchain is marked for resize so the next
// Resize returns the image. Does nothing outside a frame.
func (e *Engine) AbandonFrame() error {
	if !e.inFrame {
		return nil
	}
	e.inFrame = false
	slot := e.curFrame
	e.requestResize()

	release := SubmitInfo{Wait: []Semaphore{e.acquired[slot]}}
	if err := e.dev.QueueSubmit(e.graphicsQueue, release, e.fences[slot]); err != nil {
		e.log.WithError(err).WithField("slot", slot).Error("cannot release abandoned frame")
		return errors.Wrap(err, "QueueSubmit(abandon)")
	}
	e.log.WithField("slot", slot).Debug("frame abandoned")
	return nil
}

func (e *Engine) requestResize() {
	e.stale = true
	e.log.Debug("swapchain out of date, resize required")
	e.events.ResizeRequired()
}

// CurrentImageIndex is the index returned by the last acquire.
func (e *Engine) CurrentImageIndex() uint32 {
	return e.curImage
}

// CurrentRenderCommandBuffer is the render command buffer of the
// acquired image. It must not be kept past the next acquire.
func (e *Engine) CurrentRenderCommandBuffer() (CommandBuffer, error) {
	if !e.inFrame {
		return NullCommandBuffer, ErrNoSwapchain
	}
	return e.renderCBs[e.curImage], nil
}

// CurrentFramebuffer is the framebuffer of the acquired image.
func (e *Engine) CurrentFramebuffer() (Framebuffer, error) {
	if !e.inFrame {
		return 0, ErrNoSwapchain
	}
	return e.Framebuffer(e.curImage)
}

// RenderCommandBuffer returns the render command buffer of image i.
func (e *Engine) RenderCommandBuffer(i uint32) (CommandBuffer, error) {
	if int(i) >= len(e.renderCBs) {
		return NullCommandBuffer, ErrIndexOutOfRange
	}
	return e.renderCBs[i], nil
}

// Framebuffer returns the framebuffer of image i.
func (e *Engine) Framebuffer(i uint32) (Framebuffer, error) {
	if len(e.framebuffers) == 0 {
		return 0, ErrNoRenderPass
	}
	if int(i) >= len(e.framebuffers) {
		return 0, ErrIndexOutOfRange
	}
	return e.framebuffers[i], nil
}

// Submit hands cb to the graphics queue. Null semaphores and fences are
// left out. With immediatelyWait the call returns once the work is done,
// a temporary fence is used when none is given.
func (e *Engine) Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence, immediatelyWait bool) error {
	if !e.prepared {
		return ErrNotPrepared
	}

	info := SubmitInfo{CommandBuffers: []CommandBuffer{cb}}
	if wait != NullSemaphore {
		info.Wait = []Semaphore{wait}
	}
	if signal != NullSemaphore {
		info.Signal = []Semaphore{signal}
	}

	if immediatelyWait && fence == NullFence {
		tmp, err := e.dev.CreateFence(false)
		if err != nil {
			return errors.Wrap(err, "CreateFence")
		}
		defer e.dev.DestroyFence(tmp)
		fence = tmp
	}

	if err := e.dev.QueueSubmit(e.graphicsQueue, info, fence); err != nil {
		e.log.WithError(err).Error("queue submission failed")
		return errors.Wrap(err, "QueueSubmit")
	}
	if !immediatelyWait {
		return nil
	}
	if err := e.dev.WaitForFence(fence, e.cfg.FenceTimeout); err != nil {
		return errors.Wrap(err, "WaitForFence")
	}
	return nil
}

// InsertPresentCommandsToBuffer records the ownership release of the
// acquired image into cb, when presenting happens on another queue family.
func (e *Engine) InsertPresentCommandsToBuffer(cb CommandBuffer) error {
	if !e.separate {
		return nil
	}
	if !e.inFrame {
		return ErrNoSwapchain
	}
	err := e.dev.RecordOwnershipRelease(cb, e.images[e.curImage], e.graphicsFamily, e.presentFamily)
	return errors.Wrap(err, "RecordOwnershipRelease")
}

// SubmitAndPresent submits the render command buffer of the acquired
// image and queues it for presentation. extraWait, when not null, is
// waited on along with the image acquisition.
func (e *Engine) SubmitAndPresent(extraWait Semaphore) error {
	if e.state != StateCreated || !e.inFrame {
		return ErrNoSwapchain
	}
	slot := e.curFrame

	if e.pacing {
		e.adjustPacing()
	}

	wait := []Semaphore{e.acquired[slot]}
	if extraWait != NullSemaphore {
		wait = append(wait, extraWait)
	}
	render := SubmitInfo{
		Wait:           wait,
		CommandBuffers: []CommandBuffer{e.renderCBs[e.curImage]},
		Signal:         []Semaphore{e.drawComplete[slot]},
	}
	if err := e.dev.QueueSubmit(e.graphicsQueue, render, e.fences[slot]); err != nil {
		e.log.WithError(err).Error("render submission failed")
		_ = e.AbandonFrame()
		return errors.Wrap(err, "QueueSubmit(render)")
	}

	presentWait := e.drawComplete[slot]
	if e.separate {
		ownership := SubmitInfo{
			Wait:           []Semaphore{e.drawComplete[slot]},
			CommandBuffers: []CommandBuffer{e.presentCBs[e.curImage]},
			Signal:         []Semaphore{e.ownership[slot]},
		}
		if err := e.dev.QueueSubmit(e.presentQueue, ownership, NullFence); err != nil {
			e.log.WithError(err).Error("ownership submission failed")
			e.inFrame = false
			e.requestResize()
			return errors.Wrap(err, "QueueSubmit(present)")
		}
		presentWait = e.ownership[slot]
	}

	info := PresentInfo{
		Wait:      []Semaphore{presentWait},
		Swapchain: e.swapchain,
		Index:     e.curImage,
	}
	if e.pacing {
		t := e.pacer.Next(e.clock.Now())
		info.Time = &t
	}

	e.inFrame = false
	err := e.dev.QueuePresent(e.presentQueue, info)
	if stale(err) {
		e.requestResize()
		return ErrResizeRequired
	} else if err != nil {
		e.log.WithError(err).Error("present failed")
		return errors.Wrap(err, "QueuePresent")
	}
	return nil
}

func (e *Engine) adjustPacing() {
	timings, err := e.dev.PastPresentationTiming(e.swapchain)
	if err != nil {
		e.log.WithError(err).Warn("past presentation timing unavailable, presenting as soon as possible")
		e.pacer.Unsync()
		return
	}
	before := e.pacer.Stats().Multiplier
	e.pacer.Adjust(timings)
	if after := e.pacer.Stats().Multiplier; after != before {
		e.log.WithField("multiplier", after).Debug("frame pacing target changed")
	}
}
