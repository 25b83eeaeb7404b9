package device

import (
	"time"

	"cartridge_conditioner/internal/phase"
)

// State is the authoritative record of what the unit is doing. The worker is
// its only regular writer; the watchdog writes only when force-reverting.
// Every access goes through the Guard. The record is volatile: a restart
// always comes up Idle with outputs de-energized.
type State struct {
	guard *Guard

	currentPhase   phase.Phase
	phaseStart     time.Time
	phaseEnd       time.Time // zero means no deadline
	commandedVolts float64
	appliedPercent float64
}

// Snapshot is a point-in-time copy of the authoritative state, safe to hand
// to readers after the guard is released.
type Snapshot struct {
	Phase          phase.Phase `json:"-"`
	PhaseName      string      `json:"phase"`
	PhaseStart     time.Time   `json:"phase_start"`
	PhaseEnd       *time.Time  `json:"phase_end,omitempty"`
	RemainingSec   int         `json:"remaining_sec"`
	CommandedVolts float64     `json:"fan_volt"`
	AppliedPercent float64     `json:"fan_percent"`
}

// NewState returns the startup state: Idle, no deadline, zero outputs.
func NewState(guard *Guard) *State {
	return &State{
		guard:        guard,
		currentPhase: phase.Idle,
		phaseStart:   time.Now(),
	}
}

// Guard exposes the lock protecting this state.
func (s *State) Guard() *Guard { return s.guard }

// Phase returns the current phase. Caller must hold the guard.
func (s *State) Phase() phase.Phase { return s.currentPhase }

// Deadline returns the phase deadline and whether one is set. Caller must
// hold the guard.
func (s *State) Deadline() (time.Time, bool) {
	return s.phaseEnd, !s.phaseEnd.IsZero()
}

// SetPhase commits a phase change: the new phase, its start, and its deadline
// (zero duration means indefinite). Manual never carries a deadline. Caller
// must hold the guard. Returns the phase that was active before the change.
func (s *State) SetPhase(target phase.Phase, now time.Time, duration time.Duration) phase.Phase {
	prev := s.currentPhase
	s.currentPhase = target
	s.phaseStart = now
	if duration > 0 && target != phase.Manual {
		s.phaseEnd = now.Add(duration)
	} else {
		s.phaseEnd = time.Time{}
	}
	return prev
}

// RecordOutput stores the last values driven to the actuators. Best-effort
// observability; caller must hold the guard.
func (s *State) RecordOutput(volts, percent float64) {
	s.commandedVolts = volts
	s.appliedPercent = percent
}

// SnapshotLocked copies the state. Caller must hold the guard.
func (s *State) SnapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		Phase:          s.currentPhase,
		PhaseName:      s.currentPhase.String(),
		PhaseStart:     s.phaseStart,
		CommandedVolts: s.commandedVolts,
		AppliedPercent: s.appliedPercent,
	}
	if !s.phaseEnd.IsZero() {
		end := s.phaseEnd
		snap.PhaseEnd = &end
		if remaining := end.Sub(now); remaining > 0 {
			snap.RemainingSec = int(remaining.Seconds())
		}
	}
	return snap
}
