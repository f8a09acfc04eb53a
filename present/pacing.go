// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

// Phase of the frame pacing control loop
type Phase int

// Pacing phases
const (
	// PhaseUnsynced has not yet seen an actual present time for the swapchain.
	PhaseUnsynced Phase = iota
	// PhaseSynced derives desired times from observed actual times.
	PhaseSynced
	// PhaseAdjusting has just changed the refresh multiplier.
	PhaseAdjusting
)

func (p Phase) String() string {
	switch p {
	case PhaseUnsynced:
		return "unsynced"
	case PhaseSynced:
		return "synced"
	case PhaseAdjusting:
		return "adjusting"
	}
	return "unknown"
}

// PacingStats is a snapshot of the pacing bookkeeping.
type PacingStats struct {
	Phase      Phase
	Refresh    uint64
	Multiplier uint64
	TargetIPD  uint64
	Early      uint64
	Late       uint64
	OnTime     uint64
}

// Pacer chooses desired present times from the display timing history.
// It targets an image present duration of a whole multiple of the
// refresh cycle, raising the multiplier when presents land late and
// lowering it after a sustained run of presents that could have been
// shown earlier.
type Pacer struct {
	cfg PacingConfig

	refresh     uint64
	multiplier  uint64
	targetIPD   uint64
	prevDesired uint64
	nextID      uint32
	lastEarlyID uint32
	lastLateID  uint32
	phase       Phase
	asap        bool

	early, late, onTime uint64
}

// NewPacer returns an unseeded Pacer, Reset must be called before use.
func NewPacer(cfg PacingConfig) *Pacer {
	return &Pacer{cfg: cfg, multiplier: 1, nextID: 1}
}

// Reset seeds the Pacer for a new swapchain with the given refresh
// cycle duration in nanoseconds.
func (p *Pacer) Reset(refresh uint64) {
	*p = Pacer{
		cfg:        p.cfg,
		refresh:    refresh,
		multiplier: 1,
		targetIPD:  refresh,
		nextID:     1,
	}
}

// Unsync drops the calibration, the next present goes out as soon as
// possible and the following history recalibrates.
func (p *Pacer) Unsync() {
	p.phase = PhaseUnsynced
	p.prevDesired = 0
	p.lastEarlyID = 0
	p.lastLateID = 0
	p.asap = true
}

// Adjust consumes the presentation history gathered since the last call.
func (p *Pacer) Adjust(timings []PastPresentationTiming) {
	if len(timings) == 0 || p.targetIPD == 0 {
		return
	}
	p.asap = false

	var early, late, calibrate bool
	for _, t := range timings {
		if p.phase == PhaseUnsynced {
			// Everything still in flight was timed without knowing where
			// the display is, none of it may count as late.
			calibrate = true
			p.lastLateID = p.nextID - 1
			p.lastEarlyID = 0
			p.phase = PhaseSynced
			break
		}

		switch {
		case p.canPresentEarlier(t):
			p.early++
			if p.lastEarlyID == t.PresentID {
				early = true
				p.lastEarlyID = 0
			} else if p.lastEarlyID == 0 {
				presents := uint64(p.cfg.EarlyWindow.Nanoseconds()) / p.targetIPD
				p.lastEarlyID = t.PresentID + uint32(presents)
			}
			late = false
			p.lastLateID = 0

		case p.presentedLate(t):
			p.late++
			// Presents still in flight are likely late as well, they all
			// share a single increase.
			if p.lastLateID == 0 || p.lastLateID < t.PresentID {
				late = true
				p.lastLateID = p.nextID - 1
			}
			early = false
			p.lastEarlyID = 0

		default:
			p.onTime++
			early, late = false, false
			calibrate = true
			p.lastEarlyID = 0
			p.lastLateID = 0
		}
	}

	switch {
	case early && p.multiplier > 1:
		p.multiplier--
		p.targetIPD = p.refresh * p.multiplier
		p.phase = PhaseAdjusting
	case late && (p.cfg.MaxMultiplier == 0 || p.multiplier < p.cfg.MaxMultiplier):
		p.multiplier++
		p.targetIPD = p.refresh * p.multiplier
		p.phase = PhaseAdjusting
	case calibrate && p.phase == PhaseAdjusting:
		p.phase = PhaseSynced
	}

	if calibrate {
		last := timings[len(timings)-1]
		multiple := uint64(p.nextID - last.PresentID)
		p.prevDesired = last.ActualPresentTime + multiple*p.targetIPD
	}
}

func (p *Pacer) canPresentEarlier(t PastPresentationTiming) bool {
	if t.EarliestPresentTime >= t.ActualPresentTime {
		return false
	}
	diff := t.ActualPresentTime - t.EarliestPresentTime
	return diff >= uint64(p.cfg.EarlyMinDelta.Nanoseconds()) &&
		t.PresentMargin >= uint64(p.cfg.EarlyMinMargin.Nanoseconds())
}

func (p *Pacer) presentedLate(t PastPresentationTiming) bool {
	if t.ActualPresentTime <= t.DesiredPresentTime {
		return false
	}
	refreshes := p.cfg.LateRefreshes
	if refreshes == 0 {
		refreshes = 1
	}
	return t.ActualPresentTime > t.DesiredPresentTime+refreshes*p.refresh
}

// Next returns the timing of the next present. now is the current
// monotonic time, 0 when unknown.
func (p *Pacer) Next(now uint64) PresentTime {
	var desired uint64
	switch {
	case p.asap:
	case p.prevDesired == 0:
		// First present of the swapchain: aim half an interval ahead
		// and let the history correct it.
		if now != 0 {
			desired = now + p.targetIPD/2
		}
	default:
		desired = p.prevDesired + p.targetIPD
	}

	t := PresentTime{PresentID: p.nextID, DesiredPresentTime: desired}
	p.nextID++
	p.prevDesired = desired
	return t
}

// Stats returns a snapshot of the bookkeeping.
func (p *Pacer) Stats() PacingStats {
	return PacingStats{
		Phase:      p.phase,
		Refresh:    p.refresh,
		Multiplier: p.multiplier,
		TargetIPD:  p.targetIPD,
		Early:      p.early,
		Late:       p.late,
		OnTime:     p.onTime,
	}
}
