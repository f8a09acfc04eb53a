// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/devblok/globe/present"
)

var (
	baseColour = mgl32.Vec4{0.8, 0.2, 0.2, 1}
	greyAxis   = mgl32.Vec3{1, 1, 1}.Normalize()
)

// clearColour cycles the hue of baseColour, one full turn every
// 2π seconds.
func clearColour(seconds float32) [4]float32 {
	c := mgl32.HomogRotate3D(seconds, greyAxis).Mul4x1(baseColour)
	return [4]float32{
		mgl32.Clamp(c.X(), 0, 1),
		mgl32.Clamp(c.Y(), 0, 1),
		mgl32.Clamp(c.Z(), 0, 1),
		1,
	}
}

const reportEvery = time.Second

// frameStats reports frame times once per reportEvery.
type frameStats struct {
	log    logrus.FieldLogger
	since  time.Duration
	frames int
	total  time.Duration
	worst  time.Duration
}

func newFrameStats(log logrus.FieldLogger) *frameStats {
	return &frameStats{log: log}
}

// pacer is the part of the engine the report reads.
type pacer interface {
	PacingStats() (present.PacingStats, bool)
}

// record adds a frame that took d, now being the hrtime clock after it.
// It reports whether a report was logged.
func (s *frameStats) record(d, now time.Duration, p pacer) bool {
	if s.since == 0 {
		s.since = now
	}
	s.frames++
	s.total += d
	if d > s.worst {
		s.worst = d
	}
	window := now - s.since
	if window < reportEvery {
		return false
	}

	fields := logrus.Fields{
		"fps":   float64(s.frames) / window.Seconds(),
		"avg":   s.total / time.Duration(s.frames),
		"worst": s.worst,
	}
	if stats, ok := p.PacingStats(); ok {
		fields["phase"] = stats.Phase
		fields["multiplier"] = stats.Multiplier
		fields["late"] = stats.Late
	}
	s.log.WithFields(fields).Info("frame time")

	s.frames, s.total, s.worst = 0, 0, 0
	s.since = now
	return true
}
