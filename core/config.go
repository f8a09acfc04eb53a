// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/devblok/globe/present"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time         TimeConfiguration
	Instance     InstanceConfiguration
	Presentation PresentationConfiguration
	Window       WindowConfiguration
	Log          LogConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the interval between window event polls
	EventPollDelay time.Duration
}

// InstanceConfiguration configures the Vulkan instance
type InstanceConfiguration struct {
	Name       string
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// PresentationConfiguration selects the device and tunes the swapchain
type PresentationConfiguration struct {
	Device       int
	ImageCount   uint32
	PresentMode  string
	FenceTimeout time.Duration

	Pacing        bool
	EarlyWindow   time.Duration
	LateRefreshes uint64
	MaxMultiplier uint64
}

// WindowConfiguration describes the window to open
type WindowConfiguration struct {
	Title   string
	Width   uint32
	Height  uint32
	Backend string
}

// LogConfiguration configures NewLogger
type LogConfiguration struct {
	Level  string
	Format string
}

// Engine turns the presentation settings into an engine config.
func (p PresentationConfiguration) Engine() (present.Config, error) {
	mode, err := present.ParsePresentMode(p.PresentMode)
	if err != nil {
		return present.Config{}, err
	}
	cfg := present.DefaultConfig()
	cfg.ImageCount = p.ImageCount
	cfg.PresentMode = mode
	cfg.FenceTimeout = p.FenceTimeout
	cfg.Pacing.Enabled = p.Pacing
	if p.EarlyWindow > 0 {
		cfg.Pacing.EarlyWindow = p.EarlyWindow
	}
	if p.LateRefreshes > 0 {
		cfg.Pacing.LateRefreshes = p.LateRefreshes
	}
	cfg.Pacing.MaxMultiplier = p.MaxMultiplier
	return cfg, nil
}

// LoadConfiguration builds a Configuration from environment variables.
// defaults holds the baseline in dotenv form, files are dotenv files
// layered over it. Variables already in the environment win over both.
func LoadConfiguration(defaults string, files ...string) (Configuration, error) {
	base, err := godotenv.Parse(strings.NewReader(defaults))
	if err != nil {
		return Configuration{}, errors.Wrap(err, "parsing defaults")
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Configuration{}, errors.Wrap(err, "loading configuration")
		}
	}
	envy.Reload()

	r := &envReader{defaults: base}
	cfg := Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: r.integer("GLOBE_FPS"),
			EventPollDelay:  r.duration("GLOBE_EVENT_POLL"),
		},
		Instance: InstanceConfiguration{
			Name:       r.str("GLOBE_APP_NAME"),
			DebugMode:  r.boolean("GLOBE_VK_DEBUG"),
			Extensions: r.list("GLOBE_VK_EXTENSIONS"),
			Layers:     r.list("GLOBE_VK_LAYERS"),
		},
		Presentation: PresentationConfiguration{
			Device:        r.integer("GLOBE_DEVICE"),
			ImageCount:    uint32(r.integer("GLOBE_IMAGE_COUNT")),
			PresentMode:   r.str("GLOBE_PRESENT_MODE"),
			FenceTimeout:  r.duration("GLOBE_FENCE_TIMEOUT"),
			Pacing:        r.boolean("GLOBE_PACING"),
			EarlyWindow:   r.duration("GLOBE_PACING_EARLY_WINDOW"),
			LateRefreshes: uint64(r.integer("GLOBE_PACING_LATE_REFRESHES")),
			MaxMultiplier: uint64(r.integer("GLOBE_PACING_MAX_MULTIPLIER")),
		},
		Window: WindowConfiguration{
			Title:   r.str("GLOBE_WINDOW_TITLE"),
			Width:   uint32(r.integer("GLOBE_WIDTH")),
			Height:  uint32(r.integer("GLOBE_HEIGHT")),
			Backend: r.str("GLOBE_BACKEND"),
		},
		Log: LogConfiguration{
			Level:  r.str("GLOBE_LOG_LEVEL"),
			Format: r.str("GLOBE_LOG_FORMAT"),
		},
	}
	if r.err != nil {
		return Configuration{}, r.err
	}
	if _, err := cfg.Presentation.Engine(); err != nil {
		return Configuration{}, errors.Wrap(err, "GLOBE_PRESENT_MODE")
	}
	return cfg, nil
}

// envReader keeps the first parse error so LoadConfiguration can read
// every key before checking.
type envReader struct {
	defaults map[string]string
	err      error
}

func (r *envReader) str(key string) string {
	if v := envy.Get(key, ""); v != "" {
		return v
	}
	return r.defaults[key]
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = errors.Wrap(err, key)
	}
}

func (r *envReader) integer(key string) int {
	s := r.str(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *envReader) boolean(key string) bool {
	s := r.str(key)
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(key, err)
	}
	return b
}

func (r *envReader) duration(key string) time.Duration {
	s := r.str(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.fail(key, err)
	}
	return d
}

func (r *envReader) list(key string) []string {
	var out []string
	for _, s := range strings.Split(r.str(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
