// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/device"
	"github.com/devblok/globe/platform"
	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
	"github.com/devblok/globe/utility/kar"
)

const (
	depthFormat = present.FormatD32Sfloat
	iconName    = "icon.png"
	iconSize    = 64
)

type app struct {
	cfg core.Configuration
	log *logrus.Logger

	window   platform.Surface
	events   *platform.Queue
	instance *core.VulkanInstance
	dev      *device.Vulkan
	engine   *present.Engine

	pass      present.RenderPass
	depth     *resource.Allocation
	resizing  bool
	frameTime *frameStats
}

func newApp(cfg core.Configuration, log *logrus.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		events: platform.NewQueue(0, log),
	}
	fail := func(err error) (*app, error) {
		a.destroy()
		return nil, err
	}

	var err error
	if a.window, err = platform.Open(cfg.Window, log); err != nil {
		return nil, err
	}

	icfg := cfg.Instance
	icfg.Extensions = append(append([]string{}, icfg.Extensions...), a.window.RequiredInstanceExtensions()...)
	if a.instance, err = core.NewVulkanInstance(a.window.ProcAddr(), icfg); err != nil {
		return fail(err)
	}
	surface, err := a.window.CreateSurface(a.instance.Inner())
	if err != nil {
		return fail(err)
	}
	a.instance.SetSurface(surface)

	for _, info := range a.instance.PhysicalDevicesInfo() {
		log.WithFields(logrus.Fields{
			"id":     info.ID,
			"name":   info.Name,
			"timing": info.HasExtension(present.DisplayTimingExtension),
		}).Debug("physical device")
	}

	if a.dev, err = device.New(a.instance, device.Configuration{Device: cfg.Presentation.Device}, log); err != nil {
		return fail(err)
	}
	a.engine, err = present.New(a.dev, a.window, present.WithLogger(log), present.WithEvents(a.events))
	if err != nil {
		return fail(err)
	}
	extensions, err := a.engine.RequiredExtensions(a.dev.AvailableExtensions())
	if err != nil {
		return fail(err)
	}
	if err := a.dev.Open(a.engine.QueueFamilies(), extensions); err != nil {
		return fail(err)
	}

	ecfg, err := cfg.Presentation.Engine()
	if err != nil {
		return fail(err)
	}
	if err := a.engine.PrepareForSwapchain(ecfg); err != nil {
		return fail(err)
	}
	if a.pass, err = a.dev.CreateRenderPass(a.engine.SwapchainFormat().Format, depthFormat); err != nil {
		return fail(err)
	}
	if err := a.resize(); err != nil {
		return fail(err)
	}

	log.WithFields(logrus.Fields{
		"images":   a.engine.NumSwapchainImages(),
		"mode":     a.engine.PresentMode(),
		"separate": a.engine.UsesSeparatePresentQueue(),
	}).Info("presentation ready")
	return a, nil
}

// resize brings the swapchain in line with the window, recreating the
// depth buffer and framebuffers whenever the swapchain was rebuilt.
// A minimized window leaves the resize pending.
func (a *app) resize() error {
	err := a.engine.Resize()
	if errors.Is(err, present.ErrZeroExtent) {
		a.resizing = true
		return nil
	} else if err != nil {
		return err
	}
	a.resizing = false

	if _, err := a.engine.Framebuffer(0); !errors.Is(err, present.ErrNoRenderPass) {
		return err
	}

	a.depth.Free()
	a.depth = nil
	size := present.Extent{Width: a.engine.CurrentWidth(), Height: a.engine.CurrentHeight()}
	view, alloc, err := a.dev.CreateDepthBuffer(size, depthFormat)
	if err != nil {
		return err
	}
	a.depth = alloc
	a.log.WithFields(logrus.Fields{
		"width":  size.Width,
		"height": size.Height,
	}).Debug("attachments rebuilt")
	return a.engine.AttachRenderPassAndDepthBuffer(a.pass, view)
}

func (a *app) loadIcon(path string) error {
	archive, err := kar.OpenFile(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	r, err := archive.Open(iconName)
	if err != nil {
		return err
	}
	texture, err := resource.DecodeTextureScaled(r, iconSize, iconSize)
	if err != nil {
		return err
	}
	pixels, err := texture.Raw()
	if err != nil {
		return err
	}
	return a.window.SetIcon(pixels)
}

func (a *app) run(ctx context.Context, quit context.CancelFunc) {
	clock := core.NewTime(a.cfg.Time)
	defer clock.Stop()
	a.frameTime = newFrameStats(a.log)
	start := hrtime.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clock.EventTicker().C:
			a.window.Pump(a.events)
			a.handleEvents(quit)
		case <-clock.FpsTicker().C:
			begin := hrtime.Now()
			err := a.frame(float32((begin - start).Seconds()))
			if errors.Is(err, present.ErrDeviceLost) {
				a.log.WithError(err).Error("device lost")
				quit()
				continue
			} else if err != nil {
				a.log.WithError(err).Warn("frame dropped")
				continue
			}
			end := hrtime.Now()
			a.frameTime.record(end-begin, end, a.engine)
		}
	}
}

func (a *app) handleEvents(quit context.CancelFunc) {
	for _, event := range a.events.Drain() {
		switch event.Kind {
		case platform.Quit, platform.WindowClose:
			quit()
		case platform.KeyPress:
			if event.Key == "Escape" {
				quit()
			}
		case platform.WindowResize, platform.ResizeRequired:
			a.resizing = true
		}
	}
}

// frame draws one animated clear and presents it.
func (a *app) frame(seconds float32) error {
	if a.resizing {
		return a.resize()
	}

	if _, err := a.engine.AcquireNextImageIndex(); present.IsResizeRequired(err) {
		return a.resize()
	} else if err != nil {
		return err
	}
	if err := a.record(seconds); err != nil {
		if aerr := a.engine.AbandonFrame(); aerr != nil {
			a.log.WithError(aerr).Error("abandoned frame not released")
		}
		return err
	}

	err := a.engine.SubmitAndPresent(present.NullSemaphore)
	if present.IsResizeRequired(err) {
		return a.resize()
	}
	return err
}

// record fills the render command buffer of the acquired image.
func (a *app) record(seconds float32) error {
	cb, err := a.engine.CurrentRenderCommandBuffer()
	if err != nil {
		return err
	}
	fb, err := a.engine.CurrentFramebuffer()
	if err != nil {
		return err
	}

	if err := a.dev.BeginCommandBuffer(cb); err != nil {
		return err
	}
	size := present.Extent{Width: a.engine.CurrentWidth(), Height: a.engine.CurrentHeight()}
	a.dev.CmdBeginRenderPass(cb, a.pass, fb, size, clearColour(seconds))
	a.dev.CmdEndRenderPass(cb)
	if err := a.engine.InsertPresentCommandsToBuffer(cb); err != nil {
		return err
	}
	return a.dev.EndCommandBuffer(cb)
}

func (a *app) destroy() {
	if a.engine != nil {
		a.engine.Destroy()
	}
	a.depth.Free()
	if a.dev != nil {
		a.dev.DestroyRenderPass(a.pass)
		a.dev.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
	}
	if a.window != nil {
		a.window.Destroy()
	}
}
