// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present_test

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/globe/present"
)

const refresh = uint64(16 * time.Millisecond)

func advance(p *present.Pacer, n int) {
	for i := 0; i < n; i++ {
		p.Next(uint64(time.Second))
	}
}

func onTime(id uint32, desired uint64) present.PastPresentationTiming {
	return present.PastPresentationTiming{
		PresentID:           id,
		DesiredPresentTime:  desired,
		ActualPresentTime:   desired + refresh/2,
		EarliestPresentTime: desired + refresh/2,
	}
}

func late(id uint32, desired uint64) present.PastPresentationTiming {
	return present.PastPresentationTiming{
		PresentID:           id,
		DesiredPresentTime:  desired,
		ActualPresentTime:   desired + 2*refresh + 1,
		EarliestPresentTime: desired + 2*refresh + 1,
	}
}

func early(id uint32, actual uint64) present.PastPresentationTiming {
	return present.PastPresentationTiming{
		PresentID:           id,
		DesiredPresentTime:  actual,
		ActualPresentTime:   actual,
		EarliestPresentTime: actual - uint64(3*time.Millisecond),
		PresentMargin:       uint64(3 * time.Millisecond),
	}
}

func TestPacerFirstPresent(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)

	now := uint64(5 * time.Second)
	first := p.Next(now)
	c.Assert(first, qt.Equals, present.PresentTime{PresentID: 1, DesiredPresentTime: now + refresh/2})
	second := p.Next(now)
	c.Assert(second, qt.Equals, present.PresentTime{PresentID: 2, DesiredPresentTime: first.DesiredPresentTime + refresh})

	p.Reset(refresh)
	c.Assert(p.Next(0), qt.Equals, present.PresentTime{PresentID: 1})
	c.Assert(p.Stats().Phase, qt.Equals, present.PhaseUnsynced)
}

func TestPacerCalibration(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 10)

	// The first history only syncs up, whatever it says.
	actual := uint64(7 * time.Second)
	p.Adjust([]present.PastPresentationTiming{late(3, actual-3*refresh)})
	c.Assert(p.Stats().Phase, qt.Equals, present.PhaseSynced)
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(1))
	c.Assert(p.Stats().Late, qt.Equals, uint64(0))

	next := p.Next(0)
	c.Assert(next.PresentID, qt.Equals, uint32(11))
	c.Assert(next.DesiredPresentTime, qt.Equals, actual-refresh+1+(11-3)*refresh+refresh)
}

func TestPacerLateRaisesMultiplierOnce(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 100)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})
	advance(p, 100)

	p.Adjust([]present.PastPresentationTiming{late(150, uint64(2*time.Second))})
	stats := p.Stats()
	c.Assert(stats.Multiplier, qt.Equals, uint64(2))
	c.Assert(stats.TargetIPD, qt.Equals, 2*refresh)
	c.Assert(stats.Phase, qt.Equals, present.PhaseAdjusting)
	c.Assert(stats.Late, qt.Equals, uint64(1))

	// Presents already in flight when the increase happened share it.
	p.Adjust([]present.PastPresentationTiming{late(160, uint64(2*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(2))
	c.Assert(p.Stats().Late, qt.Equals, uint64(2))
}

func TestPacerMaxMultiplier(t *testing.T) {
	c := qt.New(t)
	cfg := present.DefaultPacingConfig()
	cfg.MaxMultiplier = 1
	p := present.NewPacer(cfg)
	p.Reset(refresh)
	advance(p, 10)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})
	advance(p, 10)

	p.Adjust([]present.PastPresentationTiming{late(15, uint64(2*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(1))
}

func TestPacerSustainedEarlyLowersMultiplier(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 100)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})
	advance(p, 100)
	p.Adjust([]present.PastPresentationTiming{late(150, uint64(2*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(2))
	advance(p, 100)

	// Two seconds at 32ms per present is 62 presents.
	p.Adjust([]present.PastPresentationTiming{early(170, uint64(3*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(2))
	p.Adjust([]present.PastPresentationTiming{early(200, uint64(4*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(2))

	p.Adjust([]present.PastPresentationTiming{early(232, uint64(5*time.Second))})
	stats := p.Stats()
	c.Assert(stats.Multiplier, qt.Equals, uint64(1))
	c.Assert(stats.TargetIPD, qt.Equals, refresh)
	c.Assert(stats.Early, qt.Equals, uint64(3))

	// Already at full rate.
	p.Adjust([]present.PastPresentationTiming{early(240, uint64(6*time.Second))})
	p.Adjust([]present.PastPresentationTiming{early(240+125, uint64(8*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(1))
}

func TestPacerEarlyRunBrokenByOnTime(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 100)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})
	advance(p, 100)
	p.Adjust([]present.PastPresentationTiming{late(150, uint64(2*time.Second))})
	advance(p, 100)

	p.Adjust([]present.PastPresentationTiming{
		early(170, uint64(3*time.Second)),
		onTime(171, uint64(3*time.Second)),
	})
	c.Assert(p.Stats().Phase, qt.Equals, present.PhaseSynced)

	// The run restarted, 232 no longer closes it.
	p.Adjust([]present.PastPresentationTiming{early(232, uint64(5*time.Second))})
	c.Assert(p.Stats().Multiplier, qt.Equals, uint64(2))
}

func TestPacerOnTimeRecalibrates(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 10)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})
	advance(p, 10)

	desired := uint64(9 * time.Second)
	p.Adjust([]present.PastPresentationTiming{onTime(5, desired-refresh), onTime(6, desired)})
	c.Assert(p.Stats().OnTime, qt.Equals, uint64(2))

	next := p.Next(0)
	c.Assert(next.PresentID, qt.Equals, uint32(21))
	c.Assert(next.DesiredPresentTime, qt.Equals, desired+refresh/2+(21-6)*refresh+refresh)
}

func TestPacerUnsync(t *testing.T) {
	c := qt.New(t)
	p := present.NewPacer(present.DefaultPacingConfig())
	p.Reset(refresh)
	advance(p, 5)
	p.Adjust([]present.PastPresentationTiming{onTime(1, uint64(time.Second))})

	p.Unsync()
	c.Assert(p.Stats().Phase, qt.Equals, present.PhaseUnsynced)
	c.Assert(p.Next(uint64(time.Second)).DesiredPresentTime, qt.Equals, uint64(0))
	c.Assert(p.Next(uint64(time.Second)).DesiredPresentTime, qt.Equals, uint64(0))

	p.Adjust([]present.PastPresentationTiming{onTime(6, uint64(2*time.Second))})
	c.Assert(p.Stats().Phase, qt.Equals, present.PhaseSynced)
	c.Assert(p.Next(0).DesiredPresentTime, qt.Not(qt.Equals), uint64(0))
}

func pacedEngine(c *qt.C, d *fakeDevice, now uint64) *present.Engine {
	d.extensions[present.DisplayTimingExtension] = true
	d.refresh = refresh
	e := newEngine(c, d, present.DefaultConfig(), present.WithClock(present.ClockFunc(func() uint64 { return now })))
	c.Assert(e.CreateSwapchain(), qt.IsNil)
	return e
}

func TestEnginePacing(t *testing.T) {
	c := qt.New(t)
	now := uint64(3 * time.Second)

	c.Run("desired times", func(c *qt.C) {
		d := newFakeDevice()
		e := pacedEngine(c, d, now)

		renderFrame(c, e, present.NullSemaphore)
		renderFrame(c, e, present.NullSemaphore)
		c.Assert(d.presents[0].Time, qt.DeepEquals, &present.PresentTime{PresentID: 1, DesiredPresentTime: now + refresh/2})
		c.Assert(d.presents[1].Time, qt.DeepEquals, &present.PresentTime{PresentID: 2, DesiredPresentTime: now + refresh/2 + refresh})

		stats, ok := e.PacingStats()
		c.Assert(ok, qt.IsTrue)
		c.Assert(stats.Refresh, qt.Equals, refresh)
	})

	c.Run("history feeds back", func(c *qt.C) {
		d := newFakeDevice()
		e := pacedEngine(c, d, now)
		for i := 0; i < 5; i++ {
			renderFrame(c, e, present.NullSemaphore)
		}
		d.timings = []present.PastPresentationTiming{onTime(1, now)}
		renderFrame(c, e, present.NullSemaphore)
		stats, _ := e.PacingStats()
		c.Assert(stats.Phase, qt.Equals, present.PhaseSynced)
		c.Assert(d.presents[5].Time.DesiredPresentTime, qt.Equals, now+refresh/2+(6-1)*refresh+refresh)
	})

	c.Run("timing query failure", func(c *qt.C) {
		d := newFakeDevice()
		e := pacedEngine(c, d, now)
		renderFrame(c, e, present.NullSemaphore)
		d.timingErr = errors.New("lost timing")
		renderFrame(c, e, present.NullSemaphore)
		c.Assert(d.presents[1].Time.DesiredPresentTime, qt.Equals, uint64(0))
		stats, _ := e.PacingStats()
		c.Assert(stats.Phase, qt.Equals, present.PhaseUnsynced)
	})

	c.Run("no refresh duration", func(c *qt.C) {
		d := newFakeDevice()
		d.extensions[present.DisplayTimingExtension] = true
		e := newEngine(c, d, present.DefaultConfig())
		c.Assert(e.CreateSwapchain(), qt.IsNil)
		renderFrame(c, e, present.NullSemaphore)
		c.Assert(d.presents[0].Time, qt.IsNil)
		_, ok := e.PacingStats()
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("prepared again while presenting", func(c *qt.C) {
		d := newFakeDevice()
		e := pacedEngine(c, d, now)
		renderFrame(c, e, present.NullSemaphore)
		renderFrame(c, e, present.NullSemaphore)

		c.Assert(e.PrepareForSwapchain(present.DefaultConfig()), qt.IsNil)
		stats, ok := e.PacingStats()
		c.Assert(ok, qt.IsTrue)
		c.Assert(stats.TargetIPD, qt.Equals, refresh)

		renderFrame(c, e, present.NullSemaphore)
		renderFrame(c, e, present.NullSemaphore)
		c.Assert(d.presents[2].Time, qt.DeepEquals, &present.PresentTime{PresentID: 1, DesiredPresentTime: now + refresh/2})
		c.Assert(d.presents[3].Time.DesiredPresentTime, qt.Equals, now+refresh/2+refresh)
	})

	c.Run("disabled", func(c *qt.C) {
		d := newFakeDevice()
		d.extensions[present.DisplayTimingExtension] = true
		d.refresh = refresh
		cfg := present.DefaultConfig()
		cfg.Pacing.Enabled = false
		e := newEngine(c, d, cfg)
		c.Assert(e.CreateSwapchain(), qt.IsNil)
		renderFrame(c, e, present.NullSemaphore)
		c.Assert(d.presents[0].Time, qt.IsNil)
	})
}
