// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package platform opens windows that Vulkan can present to and turns
// their input into Events.
package platform

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
)

// ErrUnknownBackend is returned by Open for unsupported backends.
var ErrUnknownBackend = errors.New("unknown window backend")

// Surface is a window that Vulkan can present to.
type Surface interface {
	// Extent is the drawable size in pixels.
	Extent() present.Extent

	// RequiredInstanceExtensions lists the instance extensions the
	// window system needs for surface creation.
	RequiredInstanceExtensions() []string

	// ProcAddr returns the vkGetInstanceProcAddr of the window system.
	ProcAddr() unsafe.Pointer

	// CreateSurface creates the presentation surface of the window.
	CreateSurface(instance vk.Instance) (vk.Surface, error)

	// Pump polls the window system and posts translated events to sink.
	Pump(sink Sink)

	// SetIcon sets the window icon from RGBA pixels.
	SetIcon(icon resource.RawPixelPayload) error

	// Destroy closes the window and shuts down the window system.
	Destroy()
}

// Open creates a window with the backend named in cfg, sdl when empty.
// Both backends must be driven from the main thread.
func Open(cfg core.WindowConfiguration, log logrus.FieldLogger) (Surface, error) {
	if log == nil {
		log = logrus.New()
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "sdl":
		return NewSDLWindow(cfg, log)
	case "glfw":
		return NewGLFWWindow(cfg, log)
	}
	return nil, errors.Wrap(ErrUnknownBackend, cfg.Backend)
}

func post(sink Sink, log logrus.FieldLogger, e Event) {
	if err := sink.Post(e); err != nil {
		log.WithError(err).Warn("event dropped")
	}
}

func windowSize(cfg core.WindowConfiguration) (uint32, uint32) {
	w, h := cfg.Width, cfg.Height
	if w == 0 {
		w = 800
	}
	if h == 0 {
		h = 600
	}
	return w, h
}
