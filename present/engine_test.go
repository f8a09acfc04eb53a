// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present_test

import (
	"io"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"

	"github.com/devblok/globe/present"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newEngine(c *qt.C, d *fakeDevice, cfg present.Config, opts ...present.Option) *present.Engine {
	opts = append([]present.Option{present.WithLogger(quietLogger())}, opts...)
	e, err := present.New(d, &fakeWindow{extent: present.Extent{Width: 640, Height: 480}}, opts...)
	c.Assert(err, qt.IsNil)
	c.Assert(e.PrepareForSwapchain(cfg), qt.IsNil)
	return e
}

var (
	bgraUnorm = present.SurfaceFormat{Format: present.FormatB8G8R8A8Unorm, ColorSpace: present.ColorSpaceSrgbNonlinear}
	bgraSrgb  = present.SurfaceFormat{Format: present.FormatB8G8R8A8Srgb, ColorSpace: present.ColorSpaceSrgbNonlinear}
	rgbaUnorm = present.SurfaceFormat{Format: present.FormatR8G8B8A8Unorm, ColorSpace: present.ColorSpaceSrgbNonlinear}
	rgbaSrgb  = present.SurfaceFormat{Format: present.FormatR8G8B8A8Srgb, ColorSpace: present.ColorSpaceSrgbNonlinear}
)

func TestQueueSelection(t *testing.T) {
	c := qt.New(t)

	c.Run("shared", func(c *qt.C) {
		d := newFakeDevice()
		e, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
		c.Assert(err, qt.IsNil)
		c.Assert(e.UsesSeparatePresentQueue(), qt.IsFalse)
		c.Assert(e.GraphicsQueueIndex(), qt.Equals, uint32(0))
		c.Assert(e.QueueFamilies(), qt.DeepEquals, []uint32{0})
	})

	c.Run("prefers a graphics family that presents", func(c *qt.C) {
		d := newFakeDevice()
		d.families = []present.QueueFamily{{Graphics: true}, {Graphics: false}, {Graphics: true}}
		d.presenting = map[uint32]bool{1: true, 2: true}
		e, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
		c.Assert(err, qt.IsNil)
		c.Assert(e.UsesSeparatePresentQueue(), qt.IsFalse)
		c.Assert(e.GraphicsQueueIndex(), qt.Equals, uint32(2))
		c.Assert(e.PresentQueueIndex(), qt.Equals, uint32(2))
	})

	c.Run("separate", func(c *qt.C) {
		d := newFakeDevice()
		d.separateQueues()
		e, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
		c.Assert(err, qt.IsNil)
		c.Assert(e.UsesSeparatePresentQueue(), qt.IsTrue)
		c.Assert(e.GraphicsQueueIndex(), qt.Equals, uint32(0))
		c.Assert(e.PresentQueueIndex(), qt.Equals, uint32(1))
		c.Assert(e.QueueFamilies(), qt.DeepEquals, []uint32{0, 1})
	})

	c.Run("no present family", func(c *qt.C) {
		d := newFakeDevice()
		d.presenting = map[uint32]bool{}
		_, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
		c.Assert(err, qt.ErrorIs, present.ErrNoPresentQueue)
	})

	c.Run("no graphics family", func(c *qt.C) {
		d := newFakeDevice()
		d.families = []present.QueueFamily{{Graphics: false}}
		_, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
		c.Assert(err, qt.ErrorIs, present.ErrNoGraphicsQueue)
	})
}

func TestFormatNegotiation(t *testing.T) {
	tests := []struct {
		name      string
		supported []present.SurfaceFormat
		preferred present.SurfaceFormat
		fallback  present.SurfaceFormat
		want      present.SurfaceFormat
	}{
		{
			name:      "preferred present",
			supported: []present.SurfaceFormat{bgraUnorm, rgbaUnorm, bgraSrgb},
			preferred: bgraSrgb,
			fallback:  bgraUnorm,
			want:      bgraSrgb,
		},
		{
			name:      "fallback",
			supported: []present.SurfaceFormat{rgbaUnorm, bgraUnorm},
			preferred: bgraSrgb,
			fallback:  bgraUnorm,
			want:      bgraUnorm,
		},
		{
			name:      "first entry",
			supported: []present.SurfaceFormat{bgraUnorm, rgbaUnorm},
			preferred: bgraSrgb,
			fallback:  rgbaSrgb,
			want:      bgraUnorm,
		},
		{
			name:      "surface takes anything",
			supported: []present.SurfaceFormat{{Format: present.FormatUndefined, ColorSpace: 7}},
			preferred: bgraSrgb,
			fallback:  bgraUnorm,
			want:      present.SurfaceFormat{Format: present.FormatB8G8R8A8Srgb, ColorSpace: 7},
		},
	}

	c := qt.New(t)
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			d := newFakeDevice()
			d.formats = test.supported
			cfg := present.DefaultConfig()
			cfg.PreferredFormat = test.preferred
			cfg.FallbackFormat = test.fallback

			e := newEngine(c, d, cfg)
			c.Assert(e.SwapchainFormat(), qt.Equals, test.want)
		})
	}
}

func TestPrepareKeepsFormat(t *testing.T) {
	c := qt.New(t)
	d := newFakeDevice()
	e := newEngine(c, d, present.DefaultConfig())
	c.Assert(e.SwapchainFormat(), qt.Equals, bgraUnorm)

	cfg := present.DefaultConfig()
	cfg.PreferredFormat = rgbaUnorm
	c.Assert(e.PrepareForSwapchain(cfg), qt.IsNil)
	c.Assert(e.SwapchainFormat(), qt.Equals, bgraUnorm)
}

func TestNoSurfaceFormats(t *testing.T) {
	c := qt.New(t)
	d := newFakeDevice()
	d.formats = nil
	e, err := present.New(d, &fakeWindow{}, present.WithLogger(quietLogger()))
	c.Assert(err, qt.IsNil)
	c.Assert(e.PrepareForSwapchain(present.DefaultConfig()), qt.ErrorIs, present.ErrNoSurfaceFormats)
}

func TestRequiredExtensions(t *testing.T) {
	c := qt.New(t)
	e, err := present.New(newFakeDevice(), &fakeWindow{}, present.WithLogger(quietLogger()))
	c.Assert(err, qt.IsNil)

	exts, err := e.RequiredExtensions([]string{"VK_KHR_maintenance1", present.SwapchainExtension})
	c.Assert(err, qt.IsNil)
	c.Assert(exts, qt.DeepEquals, []string{present.SwapchainExtension})

	exts, err = e.RequiredExtensions([]string{present.DisplayTimingExtension, present.SwapchainExtension})
	c.Assert(err, qt.IsNil)
	c.Assert(exts, qt.DeepEquals, []string{present.SwapchainExtension, present.DisplayTimingExtension})

	_, err = e.RequiredExtensions([]string{present.DisplayTimingExtension})
	c.Assert(err, qt.ErrorIs, present.ErrSwapchainExtension)
}

func TestParsePresentMode(t *testing.T) {
	c := qt.New(t)
	for in, want := range map[string]present.PresentMode{
		"":             present.PresentModeFIFO,
		"mailbox":      present.PresentModeMailbox,
		"IMMEDIATE":    present.PresentModeImmediate,
		"fifo_relaxed": present.PresentModeFIFORelaxed,
	} {
		got, err := present.ParsePresentMode(in)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, want)
	}
	_, err := present.ParsePresentMode("vsync")
	c.Assert(err, qt.Not(qt.IsNil))
}
