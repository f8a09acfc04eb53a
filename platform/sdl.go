// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package platform

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
)

// SDLWindow is a Surface backed by SDL2.
type SDLWindow struct {
	log    logrus.FieldLogger
	window *sdl.Window
}

// NewSDLWindow initialises SDL video and opens a resizable Vulkan window.
func NewSDLWindow(cfg core.WindowConfiguration, log logrus.FieldLogger) (*SDLWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl.Init()")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}

	w, h := windowSize(cfg)
	window, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(w),
		int32(h),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}
	return &SDLWindow{
		log:    log.WithField("backend", "sdl"),
		window: window,
	}, nil
}

// Extent implements Surface
func (s *SDLWindow) Extent() present.Extent {
	w, h := s.window.VulkanGetDrawableSize()
	return present.Extent{Width: uint32(w), Height: uint32(h)}
}

// RequiredInstanceExtensions implements Surface
func (s *SDLWindow) RequiredInstanceExtensions() []string {
	return s.window.VulkanGetInstanceExtensions()
}

// ProcAddr implements Surface
func (s *SDLWindow) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// CreateSurface implements Surface
func (s *SDLWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	srf, err := s.window.VulkanCreateSurface(instance)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "sdl.VulkanCreateSurface()")
	}
	return vk.SurfaceFromPointer(uintptr(srf)), nil
}

// Pump implements Surface
func (s *SDLWindow) Pump(sink Sink) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if e, ok := translateSDL(event); ok {
			post(sink, s.log, e)
		}
	}
}

func translateSDL(event sdl.Event) (Event, bool) {
	switch et := event.(type) {
	case *sdl.QuitEvent:
		return Event{Kind: Quit}, true
	case *sdl.WindowEvent:
		switch et.Event {
		case sdl.WINDOWEVENT_SIZE_CHANGED:
			return Event{Kind: WindowResize, Width: uint32(et.Data1), Height: uint32(et.Data2)}, true
		case sdl.WINDOWEVENT_CLOSE:
			return Event{Kind: WindowClose}, true
		}
	case *sdl.KeyboardEvent:
		if et.Repeat != 0 {
			return Event{}, false
		}
		kind := KeyPress
		if et.Type == sdl.KEYUP {
			kind = KeyRelease
		}
		return Event{Kind: kind, Key: sdl.GetKeyName(et.Keysym.Sym)}, true
	}
	return Event{}, false
}

// SetIcon implements Surface
func (s *SDLWindow) SetIcon(icon resource.RawPixelPayload) error {
	if len(icon.Pix) == 0 || len(icon.Pix) < int(4*icon.Width*icon.Height) {
		return resource.ErrEmptyImage
	}
	surface, err := sdl.CreateRGBSurfaceWithFormatFrom(unsafe.Pointer(&icon.Pix[0]),
		int32(icon.Width), int32(icon.Height), 32, int32(4*icon.Width), sdl.PIXELFORMAT_ABGR8888)
	if err != nil {
		return errors.Wrap(err, "sdl.CreateRGBSurfaceWithFormatFrom()")
	}
	defer surface.Free()
	s.window.SetIcon(surface)
	return nil
}

// Destroy implements Surface
func (s *SDLWindow) Destroy() {
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
