// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package platform

import (
	"image"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
)

// GLFWWindow is a Surface backed by GLFW. Callbacks collect events
// while PollEvents runs, Pump hands them on afterwards.
type GLFWWindow struct {
	log    logrus.FieldLogger
	window *glfw.Window

	mutex   sync.Mutex
	pending []Event
}

// NewGLFWWindow initialises GLFW and opens a resizable window without
// a client API.
func NewGLFWWindow(cfg core.WindowConfiguration, log logrus.FieldLogger) (*GLFWWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init()")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw: vulkan not supported")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	w, h := windowSize(cfg)
	window, err := glfw.CreateWindow(int(w), int(h), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "glfw.CreateWindow()")
	}

	g := &GLFWWindow{
		log:    log.WithField("backend", "glfw"),
		window: window,
	}
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		g.queue(Event{Kind: WindowResize, Width: uint32(width), Height: uint32(height)})
	})
	window.SetCloseCallback(func(*glfw.Window) {
		g.queue(Event{Kind: WindowClose})
	})
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, _ glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			g.queue(Event{Kind: KeyPress, Key: glfwKeyName(key, scancode)})
		case glfw.Release:
			g.queue(Event{Kind: KeyRelease, Key: glfwKeyName(key, scancode)})
		}
	})
	return g, nil
}

func (g *GLFWWindow) queue(e Event) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.pending = append(g.pending, e)
}

// Names of keys GLFW has no printable name for, matching SDL's names.
var glfwKeyNames = map[glfw.Key]string{
	glfw.KeyEscape:    "Escape",
	glfw.KeyEnter:     "Return",
	glfw.KeySpace:     "Space",
	glfw.KeyTab:       "Tab",
	glfw.KeyBackspace: "Backspace",
	glfw.KeyUp:        "Up",
	glfw.KeyDown:      "Down",
	glfw.KeyLeft:      "Left",
	glfw.KeyRight:     "Right",
	glfw.KeyF11:       "F11",
}

func glfwKeyName(key glfw.Key, scancode int) string {
	if name, ok := glfwKeyNames[key]; ok {
		return name
	}
	return glfw.GetKeyName(key, scancode)
}

// Extent implements Surface
func (g *GLFWWindow) Extent() present.Extent {
	w, h := g.window.GetFramebufferSize()
	return present.Extent{Width: uint32(w), Height: uint32(h)}
}

// RequiredInstanceExtensions implements Surface
func (g *GLFWWindow) RequiredInstanceExtensions() []string {
	return g.window.GetRequiredInstanceExtensions()
}

// ProcAddr implements Surface
func (g *GLFWWindow) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface implements Surface
func (g *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	srf, err := g.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "glfw.CreateWindowSurface()")
	}
	return vk.SurfaceFromPointer(srf), nil
}

// Pump implements Surface
func (g *GLFWWindow) Pump(sink Sink) {
	glfw.PollEvents()

	g.mutex.Lock()
	pending := g.pending
	g.pending = nil
	g.mutex.Unlock()

	for _, e := range pending {
		post(sink, g.log, e)
	}
}

// SetIcon implements Surface
func (g *GLFWWindow) SetIcon(icon resource.RawPixelPayload) error {
	if len(icon.Pix) == 0 || len(icon.Pix) < int(4*icon.Width*icon.Height) {
		return resource.ErrEmptyImage
	}
	img := &image.NRGBA{
		Pix:    icon.Pix,
		Stride: int(4 * icon.Width),
		Rect:   image.Rect(0, 0, int(icon.Width), int(icon.Height)),
	}
	g.window.SetIcon([]image.Image{img})
	return nil
}

// Destroy implements Surface
func (g *GLFWWindow) Destroy() {
	if g.window != nil {
		g.window.Destroy()
		g.window = nil
	}
	glfw.Terminate()
}
