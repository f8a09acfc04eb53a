// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
)

const defaults = `
GLOBE_FPS=60
GLOBE_EVENT_POLL=20ms
GLOBE_APP_NAME=globe
GLOBE_VK_DEBUG=false
GLOBE_VK_LAYERS=
GLOBE_DEVICE=0
GLOBE_IMAGE_COUNT=3
GLOBE_PRESENT_MODE=fifo
GLOBE_FENCE_TIMEOUT=1s
GLOBE_PACING=true
GLOBE_WINDOW_TITLE=globe
GLOBE_WIDTH=800
GLOBE_HEIGHT=600
GLOBE_BACKEND=sdl
GLOBE_LOG_LEVEL=info
GLOBE_LOG_FORMAT=text
`

var keys = []string{
	"GLOBE_FPS", "GLOBE_WIDTH", "GLOBE_HEIGHT", "GLOBE_PRESENT_MODE",
	"GLOBE_VK_LAYERS", "GLOBE_BACKEND", "GLOBE_LOG_LEVEL",
}

// clearEnv hides any GLOBE_ variables the environment carries, empty
// values count as unset.
func clearEnv(c *qt.C) {
	for _, k := range keys {
		c.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)

	cfg, err := core.LoadConfiguration(defaults)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.Time.EventPollDelay, qt.Equals, 20*time.Millisecond)
	c.Assert(cfg.Window.Width, qt.Equals, uint32(800))
	c.Assert(cfg.Window.Backend, qt.Equals, "sdl")
	c.Assert(cfg.Instance.Layers, qt.HasLen, 0)
	c.Assert(cfg.Presentation.FenceTimeout, qt.Equals, time.Second)

	engine, err := cfg.Presentation.Engine()
	c.Assert(err, qt.IsNil)
	c.Assert(engine.ImageCount, qt.Equals, uint32(3))
	c.Assert(engine.PresentMode, qt.Equals, present.PresentModeFIFO)
	c.Assert(engine.Pacing.Enabled, qt.IsTrue)
	c.Assert(engine.Pacing.EarlyWindow, qt.Equals, present.DefaultPacingConfig().EarlyWindow)
}

func TestEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)
	c.Setenv("GLOBE_WIDTH", "1280")
	c.Setenv("GLOBE_VK_LAYERS", "VK_LAYER_A, VK_LAYER_B")

	cfg, err := core.LoadConfiguration(defaults)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Width, qt.Equals, uint32(1280))
	c.Assert(cfg.Window.Height, qt.Equals, uint32(600))
	c.Assert(cfg.Instance.Layers, qt.DeepEquals, []string{"VK_LAYER_A", "VK_LAYER_B"})
}

func TestConfigurationFile(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)
	// Empty but present variables are never replaced by files.
	for _, k := range []string{"GLOBE_HEIGHT", "GLOBE_BACKEND"} {
		os.Unsetenv(k)
		k := k
		c.Cleanup(func() { os.Unsetenv(k) })
	}

	path := filepath.Join(c.TempDir(), "globe.env")
	err := os.WriteFile(path, []byte("GLOBE_HEIGHT=1024\nGLOBE_BACKEND=glfw\n"), 0o600)
	c.Assert(err, qt.IsNil)

	cfg, err := core.LoadConfiguration(defaults, path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Height, qt.Equals, uint32(1024))
	c.Assert(cfg.Window.Backend, qt.Equals, "glfw")

	_, err = core.LoadConfiguration(defaults, filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestInvalidValues(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)

	c.Setenv("GLOBE_FPS", "fast")
	_, err := core.LoadConfiguration(defaults)
	c.Assert(err, qt.ErrorMatches, "GLOBE_FPS: .*")

	c.Setenv("GLOBE_FPS", "")
	c.Setenv("GLOBE_PRESENT_MODE", "vsync")
	_, err = core.LoadConfiguration(defaults)
	c.Assert(err, qt.ErrorMatches, "GLOBE_PRESENT_MODE: .*")
}

func TestNewLogger(t *testing.T) {
	c := qt.New(t)

	log := core.NewLogger(core.LogConfiguration{Level: "debug", Format: "json"})
	c.Assert(log.GetLevel(), qt.Equals, logrus.DebugLevel)
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	c.Assert(ok, qt.IsTrue)

	log = core.NewLogger(core.LogConfiguration{Level: "loud"})
	c.Assert(log.GetLevel(), qt.Equals, logrus.InfoLevel)
	_, ok = log.Formatter.(*logrus.TextFormatter)
	c.Assert(ok, qt.IsTrue)
}

func TestTimeService(t *testing.T) {
	c := qt.New(t)

	ts := core.NewTime(core.TimeConfiguration{FramesPerSecond: 1000})
	defer ts.Stop()
	c.Assert(ts.Fps(), qt.Equals, 1000)
	c.Assert(ts.EventPollDelay(), qt.Equals, 50*time.Millisecond)

	select {
	case <-ts.FpsTicker().C:
	case <-time.After(time.Second):
		c.Fatal("fps ticker never fired")
	}
}

func TestPhysicalDeviceInfo(t *testing.T) {
	c := qt.New(t)
	info := core.PhysicalDeviceInfo{Extensions: []string{present.SwapchainExtension}}
	c.Assert(info.HasExtension(present.SwapchainExtension), qt.IsTrue)
	c.Assert(info.HasExtension(present.DisplayTimingExtension), qt.IsFalse)
}
