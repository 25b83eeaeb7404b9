package service

import (
	"context"
	"time"

	"cartridge_conditioner/internal/actuator"
	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/logger"
	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
	"cartridge_conditioner/internal/repository"
)

// DefaultWatchdogPeriod is how often the deadline audit runs. Independent of
// network activity: the watchdog must fire even when the host has gone
// completely silent.
const DefaultWatchdogPeriod = 100 * time.Millisecond

// WatchdogService is the fail-safe backstop, not the phase sequencer. Normal
// operation expects the orchestrator to command the next phase before the
// deadline; only when deadline plus grace passes without one does the
// watchdog force the unit to Idle with outputs de-energized.
type WatchdogService struct {
	state  *device.State
	driver *actuator.Driver
	events repository.EventRepo
	wait   time.Duration
	grace  time.Duration
	log    *logger.Logger
}

func NewWatchdogService(state *device.State, driver *actuator.Driver,
	events repository.EventRepo, opts Options, log *logger.Logger) *WatchdogService {
	wait := opts.GuardWait
	if wait <= 0 {
		wait = defaultGuardWait
	}
	return &WatchdogService{
		state:  state,
		driver: driver,
		events: events,
		wait:   wait,
		grace:  opts.Grace,
		log:    log,
	}
}

// Run ticks at the given period until ctx is canceled. Period <= 0 uses the
// default.
func (s *WatchdogService) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultWatchdogPeriod
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.audit(ctx, now)
		}
	}
}

// audit checks the deadline and force-reverts when it is overdue by more than
// the grace window. A contended guard skips the tick; the next one is at most
// one period away.
func (s *WatchdogService) audit(ctx context.Context, now time.Time) {
	guard := s.state.Guard()
	if !guard.Acquire(s.wait) {
		return
	}

	current := s.state.Phase()
	end, armed := s.state.Deadline()
	if current == phase.Manual || !armed || now.Before(end.Add(s.grace)) {
		guard.Unlock()
		return
	}

	// overdue: commit the safe state first, then de-energize
	s.state.SetPhase(phase.Idle, now, 0)
	guard.Unlock()

	if err := s.driver.Deenergize(); err != nil && s.log != nil {
		s.log.Errorw("watchdog_deenergize_failed", "err", err)
	}

	if s.log != nil {
		s.log.Warnw("watchdog_reverted_to_idle",
			"phase", current.String(), "deadline", end, "grace", s.grace, "overdue", now.Sub(end))
	}
	if err := s.events.Append(ctx, models.DeviceEvent{
		Type:        models.EventWatchdogRevert,
		Description: "phase deadline missed; reverted to idle",
		Metadata: map[string]any{
			"phase":       current.String(),
			"deadline":    end.UTC(),
			"grace_sec":   int(s.grace.Seconds()),
			"overdue_sec": int(now.Sub(end).Seconds()),
		},
	}); err != nil && s.log != nil {
		s.log.Errorw("event_append_failed", "err", err, "type", models.EventWatchdogRevert)
	}
}
