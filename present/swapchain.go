// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CreateSwapchain builds the swapchain and every per image resource.
// A swapchain left over from Resize is handed to the driver as the old
// one and destroyed once the new one exists.
func (e *Engine) CreateSwapchain() (err error) {
	if !e.prepared {
		return ErrNotPrepared
	}
	if e.state == StateCreated {
		return nil
	}

	caps, err := e.dev.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "SurfaceCapabilities")
	}

	extent := e.surfaceExtent(caps)
	if extent.Width == 0 || extent.Height == 0 {
		return ErrZeroExtent
	}

	modes, err := e.dev.SurfacePresentModes()
	if err != nil {
		return errors.Wrap(err, "SurfacePresentModes")
	}
	mode := e.cfg.PresentMode
	if !containsMode(modes, mode) {
		e.log.WithField("requested", mode).Warn("present mode not supported, falling back to FIFO")
		mode = PresentModeFIFO
	}

	transform := caps.CurrentTransform
	if caps.SupportedTransforms&TransformIdentity != 0 {
		transform = TransformIdentity
	}

	old := e.swapchain
	sc, err := e.dev.CreateSwapchain(SwapchainConfig{
		MinImageCount: clampImageCount(e.cfg.ImageCount, caps),
		Format:        e.format,
		Extent:        extent,
		PreTransform:  transform,
		PresentMode:   mode,
		Old:           old,
	})
	if err != nil {
		e.log.WithError(err).Error("cannot create swapchain")
		return errors.Wrap(err, "CreateSwapchain")
	}
	if old != NullSwapchain {
		e.dev.DestroySwapchain(old)
	}
	e.swapchain = sc
	e.extent = extent
	e.presentMode = mode

	defer func() {
		if err != nil {
			e.log.WithError(err).Error("cannot build swapchain resources")
			e.releaseFrameResources()
			e.dev.DestroySwapchain(e.swapchain)
			e.swapchain = NullSwapchain
			e.state = StateDestroyed
		}
	}()

	if err = e.createImages(); err != nil {
		return err
	}
	if err = e.createCommandBuffers(); err != nil {
		return err
	}
	if err = e.createSynchronization(); err != nil {
		return err
	}

	e.resetPacing()

	e.nextFrame = 0
	e.inFrame = false
	e.stale = false
	e.state = StateCreated

	e.log.WithFields(logrus.Fields{
		"width":  extent.Width,
		"height": extent.Height,
		"images": len(e.images),
		"mode":   mode,
	}).Info("swapchain created")
	return nil
}

func (e *Engine) surfaceExtent(caps SurfaceCapabilities) Extent {
	if caps.CurrentExtent.Width != ExtentUndefined {
		return caps.CurrentExtent
	}
	win := e.win.Extent()
	return Extent{
		Width:  clamp(win.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: clamp(win.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

func clampImageCount(desired uint32, caps SurfaceCapabilities) uint32 {
	if desired == 0 {
		desired = caps.MinImageCount + 1
	}
	if desired < caps.MinImageCount {
		desired = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && desired > caps.MaxImageCount {
		desired = caps.MaxImageCount
	}
	return desired
}

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func containsMode(modes []PresentMode, m PresentMode) bool {
	for _, mode := range modes {
		if mode == m {
			return true
		}
	}
	return false
}

func (e *Engine) createImages() error {
	images, err := e.dev.SwapchainImages(e.swapchain)
	if err != nil {
		return errors.Wrap(err, "SwapchainImages")
	}
	e.images = images

	e.views = make([]ImageView, 0, len(images))
	for _, img := range images {
		view, err := e.dev.CreateImageView(img, e.format.Format)
		if err != nil {
			return errors.Wrap(err, "CreateImageView")
		}
		e.views = append(e.views, view)
	}
	return nil
}

func (e *Engine) createCommandBuffers() error {
	n := uint32(len(e.images))

	var err error
	if e.pool, err = e.dev.CreateCommandPool(e.graphicsFamily); err != nil {
		return errors.Wrap(err, "CreateCommandPool")
	}
	if e.renderCBs, err = e.dev.AllocateCommandBuffers(e.pool, n); err != nil {
		return errors.Wrap(err, "AllocateCommandBuffers(render)")
	}

	if !e.separate {
		if e.presentCBs, err = e.dev.AllocateCommandBuffers(e.pool, n); err != nil {
			return errors.Wrap(err, "AllocateCommandBuffers(present)")
		}
		return nil
	}

	if e.presentPool, err = e.dev.CreateCommandPool(e.presentFamily); err != nil {
		return errors.Wrap(err, "CreateCommandPool(present)")
	}
	if e.presentCBs, err = e.dev.AllocateCommandBuffers(e.presentPool, n); err != nil {
		return errors.Wrap(err, "AllocateCommandBuffers(present)")
	}
	for i, cb := range e.presentCBs {
		if err := e.dev.RecordPresentBuffer(cb, e.images[i], e.graphicsFamily, e.presentFamily); err != nil {
			return errors.Wrap(err, "RecordPresentBuffer")
		}
	}
	return nil
}

func (e *Engine) createSynchronization() error {
	n := len(e.images)
	e.acquired = make([]Semaphore, 0, n)
	e.drawComplete = make([]Semaphore, 0, n)
	e.fences = make([]Fence, 0, n)
	if e.separate {
		e.ownership = make([]Semaphore, 0, n)
	}

	for i := 0; i < n; i++ {
		sem, err := e.dev.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "CreateSemaphore(acquired)")
		}
		e.acquired = append(e.acquired, sem)

		if sem, err = e.dev.CreateSemaphore(); err != nil {
			return errors.Wrap(err, "CreateSemaphore(draw complete)")
		}
		e.drawComplete = append(e.drawComplete, sem)

		if e.separate {
			if sem, err = e.dev.CreateSemaphore(); err != nil {
				return errors.Wrap(err, "CreateSemaphore(ownership)")
			}
			e.ownership = append(e.ownership, sem)
		}

		// Signaled so that the first pass over the slots does not block.
		fence, err := e.dev.CreateFence(true)
		if err != nil {
			return errors.Wrap(err, "CreateFence")
		}
		e.fences = append(e.fences, fence)
	}
	return nil
}

func (e *Engine) resetPacing() {
	e.pacing = false
	if !e.displayTiming || !e.cfg.Pacing.Enabled {
		return
	}
	refresh, err := e.dev.RefreshCycleDuration(e.swapchain)
	if err != nil || refresh == 0 {
		e.log.WithError(err).Warn("refresh cycle duration unavailable, frame pacing disabled")
		return
	}
	e.pacer.Reset(refresh)
	e.pacing = true
	e.log.WithField("refresh", refresh).Debug("frame pacing seeded")
}

// AttachRenderPassAndDepthBuffer creates one framebuffer per swapchain
// image, binding rp with the image view and the shared depth view.
// It has to be repeated after every swapchain recreation.
func (e *Engine) AttachRenderPassAndDepthBuffer(rp RenderPass, depth ImageView) error {
	if e.state != StateCreated {
		return ErrNoSwapchain
	}
	e.destroyFramebuffers()

	e.framebuffers = make([]Framebuffer, 0, len(e.views))
	for _, view := range e.views {
		attachments := []ImageView{view}
		if depth != NullImageView {
			attachments = append(attachments, depth)
		}
		fb, err := e.dev.CreateFramebuffer(rp, attachments, e.extent)
		if err != nil {
			e.destroyFramebuffers()
			return errors.Wrap(err, "CreateFramebuffer")
		}
		e.framebuffers = append(e.framebuffers, fb)
	}
	e.renderPass = rp
	e.depth = depth
	return nil
}

// Resize rebuilds the swapchain for the size the surface now reports.
// A request that would produce the same swapchain is ignored.
func (e *Engine) Resize() error {
	switch e.state {
	case StateDetached:
		return ErrDetached
	case StateUninitialized, StateDestroyed, StateRecreating:
		return e.CreateSwapchain()
	}

	if !e.stale {
		caps, err := e.dev.SurfaceCapabilities()
		if err != nil {
			return errors.Wrap(err, "SurfaceCapabilities")
		}
		if e.surfaceExtent(caps) == e.extent {
			e.log.WithFields(logrus.Fields{
				"width":  e.extent.Width,
				"height": e.extent.Height,
			}).Debug("redundant resize ignored")
			return nil
		}
	}

	if err := e.dev.WaitIdle(); err != nil {
		e.log.WithError(err).Error("WaitIdle failed during resize")
		return errors.Wrap(err, "WaitIdle")
	}
	e.releaseFrameResources()
	e.state = StateRecreating
	return e.CreateSwapchain()
}

// DestroySwapchain waits for the device to go idle and frees the
// swapchain with everything built on it. It is safe to call repeatedly.
func (e *Engine) DestroySwapchain() error {
	switch e.state {
	case StateDetached:
		return ErrDetached
	case StateUninitialized, StateDestroyed:
		return nil
	}

	if err := e.dev.WaitIdle(); err != nil {
		e.log.WithError(err).Error("WaitIdle failed during swapchain destruction")
		return errors.Wrap(err, "WaitIdle")
	}
	e.releaseFrameResources()
	if e.swapchain != NullSwapchain {
		e.dev.DestroySwapchain(e.swapchain)
		e.swapchain = NullSwapchain
	}
	e.extent = Extent{}
	e.state = StateDestroyed
	e.log.Debug("swapchain destroyed")
	return nil
}

// DetachSwapchain frees the per image resources but hands the native
// swapchain over to the caller, who becomes responsible for it.
// DestroySwapchain must not be used on the Engine afterwards.
func (e *Engine) DetachSwapchain() (Swapchain, error) {
	if e.state != StateCreated && e.state != StateRecreating {
		return NullSwapchain, ErrNoSwapchain
	}
	if err := e.dev.WaitIdle(); err != nil {
		return NullSwapchain, errors.Wrap(err, "WaitIdle")
	}
	e.releaseFrameResources()

	sc := e.swapchain
	e.swapchain = NullSwapchain
	e.state = StateDetached
	e.log.Debug("swapchain detached")
	return sc, nil
}

// Destroy tears the Engine down. The Device is left for its owner to destroy.
func (e *Engine) Destroy() {
	if e.state != StateDetached {
		if err := e.DestroySwapchain(); err != nil {
			e.log.WithError(err).Warn("swapchain destruction failed")
		}
	}
	e.prepared = false
	e.log.Debug("presentation engine destroyed")
}

func (e *Engine) destroyFramebuffers() {
	for _, fb := range e.framebuffers {
		e.dev.DestroyFramebuffer(fb)
	}
	e.framebuffers = nil
}

// releaseFrameResources frees everything built on top of the swapchain,
// leaving the swapchain itself alone.
func (e *Engine) releaseFrameResources() {
	e.destroyFramebuffers()
	e.renderPass = 0
	e.depth = NullImageView

	for _, f := range e.fences {
		e.dev.DestroyFence(f)
	}
	for _, sets := range [][]Semaphore{e.acquired, e.drawComplete, e.ownership} {
		for _, s := range sets {
			e.dev.DestroySemaphore(s)
		}
	}
	e.fences, e.acquired, e.drawComplete, e.ownership = nil, nil, nil, nil

	if e.pool != 0 {
		if len(e.renderCBs) > 0 {
			e.dev.FreeCommandBuffers(e.pool, e.renderCBs)
		}
		if !e.separate && len(e.presentCBs) > 0 {
			e.dev.FreeCommandBuffers(e.pool, e.presentCBs)
		}
		e.dev.DestroyCommandPool(e.pool)
	}
	if e.presentPool != 0 {
		if len(e.presentCBs) > 0 {
			e.dev.FreeCommandBuffers(e.presentPool, e.presentCBs)
		}
		e.dev.DestroyCommandPool(e.presentPool)
	}
	e.pool, e.presentPool = 0, 0
	e.renderCBs, e.presentCBs = nil, nil

	for _, v := range e.views {
		e.dev.DestroyImageView(v)
	}
	e.views = nil
	e.images = nil
	e.inFrame = false
	e.pacing = false
}
