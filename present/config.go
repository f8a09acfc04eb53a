// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config is what PrepareForSwapchain needs to know about the swapchain
// to build.
type Config struct {
	// ImageCount is the desired buffering depth, clamped to what the
	// surface supports.
	ImageCount      uint32
	PresentMode     PresentMode
	PreferredFormat SurfaceFormat
	FallbackFormat  SurfaceFormat

	// FenceTimeout bounds the waits on in-flight fences, zero waits forever.
	FenceTimeout time.Duration

	Pacing PacingConfig
}

// DefaultConfig is triple buffered FIFO in B8G8R8A8.
func DefaultConfig() Config {
	return Config{
		ImageCount:      3,
		PresentMode:     PresentModeFIFO,
		PreferredFormat: SurfaceFormat{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear},
		FallbackFormat:  SurfaceFormat{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear},
		Pacing:          DefaultPacingConfig(),
	}
}

// PacingConfig holds the tunables of the frame pacing heuristic.
type PacingConfig struct {
	// Enabled turns pacing on whenever the display timing extension is present.
	Enabled bool

	// EarlyWindow is how long presents must keep landing early before
	// the frame rate is raised.
	EarlyWindow time.Duration
	// EarlyMinDelta is how much earlier than the actual time a present
	// must have been possible to count as early.
	EarlyMinDelta time.Duration
	// EarlyMinMargin is the minimum slack the presentation engine must
	// have reported for a present to count as early.
	EarlyMinMargin time.Duration
	// LateRefreshes is how many refresh cycles past its desired time a
	// present may land before it counts as late.
	LateRefreshes uint64
	// MaxMultiplier caps how far the frame rate may be divided, 0 is unbounded.
	MaxMultiplier uint64
}

// DefaultPacingConfig returns the tunables of the classic display timing demo.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		Enabled:        true,
		EarlyWindow:    2 * time.Second,
		EarlyMinDelta:  2 * time.Millisecond,
		EarlyMinMargin: 2 * time.Millisecond,
		LateRefreshes:  1,
		MaxMultiplier:  0,
	}
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger replaces the default logger of the Engine.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithEvents routes resize notifications into sink.
func WithEvents(sink Sink) Option {
	return func(e *Engine) {
		e.events = sink
	}
}

// WithClock replaces the monotonic clock used by frame pacing.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}
