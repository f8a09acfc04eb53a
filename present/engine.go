// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device extensions the Engine knows about
const (
	SwapchainExtension     = "VK_KHR_swapchain"
	DisplayTimingExtension = "VK_GOOGLE_display_timing"
)

// Engine owns the swapchain of one surface and drives the
// acquire, submit and present cycle against it.
type Engine struct {
	dev    Device
	win    Window
	log    logrus.FieldLogger
	events Sink
	clock  Clock

	graphicsFamily uint32
	presentFamily  uint32
	separate       bool

	prepared      bool
	cfg           Config
	format        SurfaceFormat
	formatChosen  bool
	displayTiming bool
	graphicsQueue Queue
	presentQueue  Queue

	state       State
	stale       bool
	swapchain   Swapchain
	extent      Extent
	presentMode PresentMode

	images       []Image
	views        []ImageView
	framebuffers []Framebuffer
	renderPass   RenderPass
	depth        ImageView

	pool        CommandPool
	presentPool CommandPool
	renderCBs   []CommandBuffer
	presentCBs  []CommandBuffer

	acquired     []Semaphore
	drawComplete []Semaphore
	ownership    []Semaphore
	fences       []Fence

	curImage  uint32
	curFrame  int
	nextFrame int
	inFrame   bool

	pacer  *Pacer
	pacing bool
}

// New binds an Engine to dev and win. It picks a graphics queue family,
// preferring one that can also present; when none can, a distinct
// present family is used and images change ownership before present.
func New(dev Device, win Window, opts ...Option) (*Engine, error) {
	e := &Engine{
		dev:    dev,
		win:    win,
		log:    logrus.New(),
		events: nopSink{},
		clock:  ClockFunc(monotonicNow),
	}
	for _, opt := range opts {
		opt(e)
	}

	graphics, present, err := selectQueueFamilies(dev)
	if err != nil {
		e.log.WithError(err).Error("cannot select queue families")
		return nil, err
	}
	e.graphicsFamily = graphics
	e.presentFamily = present
	e.separate = graphics != present

	e.log.WithFields(logrus.Fields{
		"graphics": graphics,
		"present":  present,
		"separate": e.separate,
	}).Debug("queue families selected")
	return e, nil
}

func selectQueueFamilies(dev Device) (graphics, present uint32, err error) {
	families := dev.QueueFamilies()

	const none = ^uint32(0)
	graphics, present = none, none
	for i, f := range families {
		idx := uint32(i)
		supported, err := dev.SurfaceSupport(idx)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "SurfaceSupport(%d)", idx)
		}
		if f.Graphics && supported {
			return idx, idx, nil
		}
		if f.Graphics && graphics == none {
			graphics = idx
		}
		if supported && present == none {
			present = idx
		}
	}

	if graphics == none {
		return 0, 0, ErrNoGraphicsQueue
	}
	if present == none {
		return 0, 0, ErrNoPresentQueue
	}
	return graphics, present, nil
}

// QueueFamilies lists the queue families the logical device has to expose.
func (e *Engine) QueueFamilies() []uint32 {
	if e.separate {
		return []uint32{e.graphicsFamily, e.presentFamily}
	}
	return []uint32{e.graphicsFamily}
}

// RequiredExtensions picks, from the extensions the physical device
// offers, the ones the logical device should be created with.
func (e *Engine) RequiredExtensions(available []string) ([]string, error) {
	var swapchain, timing bool
	for _, name := range available {
		switch name {
		case SwapchainExtension:
			swapchain = true
		case DisplayTimingExtension:
			timing = true
		}
	}
	if !swapchain {
		return nil, ErrSwapchainExtension
	}

	exts := []string{SwapchainExtension}
	if timing {
		exts = append(exts, DisplayTimingExtension)
	}
	return exts, nil
}

// PrepareForSwapchain negotiates the surface format and fetches the
// queues. The format chosen by the first call sticks for the lifetime
// of the Engine.
func (e *Engine) PrepareForSwapchain(cfg Config) error {
	if !e.formatChosen {
		formats, err := e.dev.SurfaceFormats()
		if err != nil {
			return errors.Wrap(err, "SurfaceFormats")
		}
		format, err := chooseSurfaceFormat(formats, cfg.PreferredFormat, cfg.FallbackFormat)
		if err != nil {
			e.log.WithError(err).Error("cannot negotiate a surface format")
			return err
		}
		e.format = format
		e.formatChosen = true
		e.log.WithFields(logrus.Fields{
			"format":     format.Format,
			"colorSpace": format.ColorSpace,
		}).Info("surface format negotiated")
	}

	var err error
	if e.graphicsQueue, err = e.dev.GetQueue(e.graphicsFamily); err != nil {
		return errors.Wrap(err, "GetQueue(graphics)")
	}
	if e.presentQueue, err = e.dev.GetQueue(e.presentFamily); err != nil {
		return errors.Wrap(err, "GetQueue(present)")
	}

	e.displayTiming = e.dev.HasExtension(DisplayTimingExtension)
	if cfg.Pacing.Enabled && !e.displayTiming {
		e.log.Info(DisplayTimingExtension + " not enabled, frames are presented as soon as possible")
	}

	e.cfg = cfg
	e.pacer = NewPacer(cfg.Pacing)
	e.prepared = true
	if e.state == StateCreated {
		// A live swapchain keeps presenting, seed the new pacer from it.
		e.resetPacing()
	}
	return nil
}

func chooseSurfaceFormat(formats []SurfaceFormat, preferred, fallback SurfaceFormat) (SurfaceFormat, error) {
	if len(formats) == 0 {
		return SurfaceFormat{}, ErrNoSurfaceFormats
	}

	// A lone undefined entry means the surface takes anything.
	if len(formats) == 1 && formats[0].Format == FormatUndefined {
		return SurfaceFormat{Format: preferred.Format, ColorSpace: formats[0].ColorSpace}, nil
	}

	for _, f := range formats {
		if f == preferred {
			return f, nil
		}
	}
	for _, f := range formats {
		if f == fallback {
			return f, nil
		}
	}
	return formats[0], nil
}

// NumSwapchainImages is the image count of the live swapchain.
func (e *Engine) NumSwapchainImages() uint32 {
	return uint32(len(e.images))
}

// CurrentWidth of the swapchain images
func (e *Engine) CurrentWidth() uint32 {
	return e.extent.Width
}

// CurrentHeight of the swapchain images
func (e *Engine) CurrentHeight() uint32 {
	return e.extent.Height
}

// SwapchainFormat returns the negotiated surface format.
func (e *Engine) SwapchainFormat() SurfaceFormat {
	return e.format
}

// PresentMode returns the mode the live swapchain was created with.
func (e *Engine) PresentMode() PresentMode {
	return e.presentMode
}

// GraphicsQueueIndex is the family index used for rendering.
func (e *Engine) GraphicsQueueIndex() uint32 {
	return e.graphicsFamily
}

// PresentQueueIndex is the family index used for presenting.
func (e *Engine) PresentQueueIndex() uint32 {
	return e.presentFamily
}

// UsesSeparatePresentQueue reports whether images change queue family
// ownership before they are presented.
func (e *Engine) UsesSeparatePresentQueue() bool {
	return e.separate
}

// State of the swapchain
func (e *Engine) State() State {
	return e.state
}

// PacingStats returns the frame pacing bookkeeping, ok is false when
// pacing is not active for the live swapchain.
func (e *Engine) PacingStats() (stats PacingStats, ok bool) {
	if e.pacer == nil || !e.pacing {
		return PacingStats{}, false
	}
	return e.pacer.Stats(), true
}
