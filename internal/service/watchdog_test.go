package service

import (
	"context"
	"testing"
	"time"

	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
)

func startWatchdog(t *testing.T, fx *fixture, grace, period time.Duration) {
	t.Helper()
	wd := NewWatchdogService(fx.state, fx.driver, fx.events, Options{Grace: grace}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go wd.Run(ctx, period)
	t.Cleanup(cancel)
}

func (fx *fixture) currentPhase() phase.Phase {
	g := fx.state.Guard()
	g.Lock()
	defer g.Unlock()
	return fx.state.Phase()
}

func TestWatchdog_NoReversionBeforeDeadlinePlusGrace(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	duration := 80 * time.Millisecond
	grace := 80 * time.Millisecond
	fx.setPhase(t, phase.Scrubbing, duration)
	startWatchdog(t, fx, grace, 10*time.Millisecond)

	// well past the deadline but still inside the grace window
	time.Sleep(duration + grace/2)
	if got := fx.currentPhase(); got != phase.Scrubbing {
		t.Fatalf("reverted during grace window: phase=%v", got)
	}
}

func TestWatchdog_RevertsWithinOnePeriodAfterGrace(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	duration := 40 * time.Millisecond
	grace := 40 * time.Millisecond
	period := 10 * time.Millisecond
	fx.setPhase(t, phase.Regenerating, duration)
	startWatchdog(t, fx, grace, period)

	ok := waitFor(t, duration+grace+10*period, func() bool {
		return fx.currentPhase() == phase.Idle
	})
	if !ok {
		t.Fatalf("watchdog never reverted")
	}

	// reversion de-energizes the outputs
	if duty, driven := fx.out.LastDuty(); !driven || duty != 0 {
		t.Fatalf("fan duty=%d driven=%v, want 0", duty, driven)
	}

	g := fx.state.Guard()
	g.Lock()
	_, armed := fx.state.Deadline()
	g.Unlock()
	if armed {
		t.Fatalf("deadline must be cleared after reversion")
	}

	if got := fx.events.byType(models.EventWatchdogRevert); len(got) != 1 {
		t.Fatalf("expected one reversion event, got %d", len(got))
	}
}

func TestWatchdog_ZeroGraceRevertsAtDeadline(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	duration := 40 * time.Millisecond
	fx.setPhase(t, phase.Cooldown, duration)
	startWatchdog(t, fx, 0, 10*time.Millisecond)

	if !waitFor(t, duration+100*time.Millisecond, func() bool {
		return fx.currentPhase() == phase.Idle
	}) {
		t.Fatalf("zero-grace watchdog never reverted")
	}
}

func TestWatchdog_ManualIsExempt(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	// manual never carries a deadline, but even a stale one must not trip
	// the watchdog while the operator is in control
	fx.setPhase(t, phase.Manual, 0)
	startWatchdog(t, fx, 0, 10*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	if got := fx.currentPhase(); got != phase.Manual {
		t.Fatalf("watchdog disturbed manual mode: phase=%v", got)
	}
}

func TestWatchdog_IndefinitePhaseNeverReverts(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	fx.setPhase(t, phase.Scrubbing, 0) // indefinite
	startWatchdog(t, fx, 0, 10*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	if got := fx.currentPhase(); got != phase.Scrubbing {
		t.Fatalf("indefinite phase reverted: phase=%v", got)
	}
}
