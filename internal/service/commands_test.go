package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cartridge_conditioner/internal/actuator"
	"cartridge_conditioner/internal/calibration"
	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
)

// ---- shared fakes and fixtures ----

type fakeEventRepo struct {
	mu        sync.Mutex
	appendErr error
	events    []models.DeviceEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.DeviceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.appendErr
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.DeviceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeviceEvent
	for _, e := range f.events {
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) byType(typ string) []models.DeviceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeviceEvent
	for _, e := range f.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	state  *device.State
	queue  *device.Queue
	out    *actuator.MockOutput
	driver *actuator.Driver
	events *fakeEventRepo
	cmds   *CommandService
}

func newFixture(t *testing.T, opts Options, queueCap int) *fixture {
	t.Helper()
	state := device.NewState(device.NewGuard())
	queue := device.NewQueue(queueCap)
	out := actuator.NewMockOutput(255)
	driver, err := actuator.NewDriver(calibration.Default(), out, actuator.Config{})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	events := &fakeEventRepo{}
	matrix := phase.NewMatrix(opts.MatrixRevision)
	cmds := NewCommandService(state, queue, driver, events, matrix, opts, nil)
	return &fixture{state: state, queue: queue, out: out, driver: driver, events: events, cmds: cmds}
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
func boolp(b bool) *bool      { return &b }
func intp(i int) *int         { return &i }

func autoReq(phaseName string, volt float64, heater bool, durMin int) AutoRequest {
	return AutoRequest{Phase: strp(phaseName), FanVolt: f64p(volt), Heater: boolp(heater), DurationMin: intp(durMin)}
}

// setPhase moves the fixture's authoritative state directly, as if the worker
// had already applied a command.
func (fx *fixture) setPhase(t *testing.T, p phase.Phase, dur time.Duration) {
	t.Helper()
	g := fx.state.Guard()
	g.Lock()
	fx.state.SetPhase(p, time.Now(), dur)
	g.Unlock()
}

// ---- validation pipeline ----

func TestSubmitAuto_MissingFields(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	reqs := []AutoRequest{
		{},
		{Phase: strp("scrub")},
		{Phase: strp("scrub"), FanVolt: f64p(9)},
		{Phase: strp("scrub"), FanVolt: f64p(9), Heater: boolp(false)},
	}
	for i, req := range reqs {
		if _, err := fx.cmds.SubmitAuto(context.Background(), req); !errors.Is(err, ErrMissingField) {
			t.Fatalf("req %d: err=%v, want ErrMissingField", i, err)
		}
	}
	if fx.queue.Len() != 0 {
		t.Fatalf("rejected requests must not reach the queue")
	}
}

func TestSubmitAuto_InvalidPhaseName(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	for _, name := range []string{"purge", "SCRUB", "manual"} {
		if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq(name, 5, false, 1)); !errors.Is(err, ErrInvalidPhase) {
			t.Fatalf("phase %q: err=%v, want ErrInvalidPhase", name, err)
		}
	}
}

func TestSubmitAuto_VoltageOutOfRange(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	for _, v := range []float64{-0.1, 10.5, 11.0} {
		if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", v, false, 1)); !errors.Is(err, ErrVoltageRange) {
			t.Fatalf("volt %v: err=%v, want ErrVoltageRange", v, err)
		}
	}
	if fx.queue.Len() != 0 {
		t.Fatalf("out-of-range voltage must be rejected before the queue")
	}

	// boundary values pass
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 0, false, 1)); err != nil {
		t.Fatalf("0 V rejected: %v", err)
	}
	fx.setPhase(t, phase.Idle, 0)
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 10, false, 1)); err != nil {
		t.Fatalf("10 V rejected: %v", err)
	}
}

func TestSubmitAuto_DurationChecks(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, -1)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("negative duration: %v", err)
	}
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 2000)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("over-max duration: %v", err)
	}
	// zero means indefinite and is accepted
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 0)); err != nil {
		t.Fatalf("indefinite duration rejected: %v", err)
	}
}

func TestSubmitAuto_GuardContention(t *testing.T) {
	fx := newFixture(t, Options{GuardWait: 20 * time.Millisecond}, 0)

	fx.state.Guard().Lock()
	defer fx.state.Guard().Unlock()

	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 1)); !errors.Is(err, ErrGuardBusy) {
		t.Fatalf("err=%v, want ErrGuardBusy", err)
	}
}

func TestSubmitAuto_TransitionPolicy(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	// idle -> regen is legal in the canonical (rev2) matrix
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("regen", 8, true, 5)); err != nil {
		t.Fatalf("idle->regen: %v", err)
	}

	// scrub -> cooldown skips regen and is rejected
	fx.setPhase(t, phase.Scrubbing, 5*time.Minute)
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("cooldown", 3, false, 5)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("scrub->cooldown: err=%v, want ErrInvalidTransition", err)
	}

	// manual escape hatch: reachable from regen, exits anywhere
	fx.setPhase(t, phase.Regenerating, 5*time.Minute)
	if _, err := fx.cmds.SubmitManual(context.Background(), ManualRequest{FanVolt: f64p(4), Heater: boolp(false)}); err != nil {
		t.Fatalf("regen->manual: %v", err)
	}
	fx.setPhase(t, phase.Manual, 0)
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 5)); err != nil {
		t.Fatalf("manual->scrub: %v", err)
	}
}

func TestSubmitAuto_StrictRevisionRejectsIdleToRegen(t *testing.T) {
	fx := newFixture(t, Options{MatrixRevision: phase.RevisionStrict}, 0)

	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("regen", 8, true, 5)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err=%v, want ErrInvalidTransition under rev1", err)
	}
}

func TestSubmitAuto_IdleKeepAliveAccepted(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("idle", 0, false, 10)); err != nil {
		t.Fatalf("idle keep-alive rejected: %v", err)
	}
	if fx.queue.Len() != 1 {
		t.Fatalf("keep-alive must be enqueued to restart the timer")
	}
}

// The same-phase rejection still restarts the phase clock before returning
// the error. Surprising, but the firmware has always done it and the
// orchestrator leans on it; this test pins the behavior.
func TestSubmitAuto_SamePhaseRejectionRefreshesTimestamps(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	fx.setPhase(t, phase.Scrubbing, 10*time.Minute)
	g := fx.state.Guard()
	g.Lock()
	endBefore, _ := fx.state.Deadline()
	g.Unlock()

	time.Sleep(10 * time.Millisecond)
	_, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 20))
	if !errors.Is(err, ErrAlreadyInPhase) {
		t.Fatalf("err=%v, want ErrAlreadyInPhase", err)
	}
	if fx.queue.Len() != 0 {
		t.Fatalf("same-phase rejection must not enqueue")
	}

	g.Lock()
	endAfter, ok := fx.state.Deadline()
	stillScrubbing := fx.state.Phase() == phase.Scrubbing
	g.Unlock()

	if !stillScrubbing {
		t.Fatalf("phase must not change on rejection")
	}
	if !ok || !endAfter.After(endBefore) {
		t.Fatalf("deadline not refreshed: before=%v after=%v", endBefore, endAfter)
	}
}

func TestSubmitAuto_QueueFull(t *testing.T) {
	fx := newFixture(t, Options{}, 1)

	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("scrub", 9, false, 1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// second submit passes validation (idle->regen) but the queue is full
	if _, err := fx.cmds.SubmitAuto(context.Background(), autoReq("regen", 8, true, 1)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err=%v, want ErrQueueFull", err)
	}
}

// ---- manual commands ----

func TestSubmitManual_Validation(t *testing.T) {
	fx := newFixture(t, Options{}, 0)

	if _, err := fx.cmds.SubmitManual(context.Background(), ManualRequest{}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("missing fields: %v", err)
	}
	if _, err := fx.cmds.SubmitManual(context.Background(), ManualRequest{FanVolt: f64p(11), Heater: boolp(true)}); !errors.Is(err, ErrVoltageRange) {
		t.Fatalf("voltage range: %v", err)
	}

	target, err := fx.cmds.SubmitManual(context.Background(), ManualRequest{FanVolt: f64p(6.5), Heater: boolp(true)})
	if err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	if target != phase.Manual {
		t.Fatalf("target=%v, want manual", target)
	}

	cmd := <-fx.queue.Receive()
	if cmd.Target != phase.Manual || cmd.Duration != 0 {
		t.Fatalf("manual command must be indefinite: %+v", cmd)
	}
}

// ---- emergency stop ----

func TestEmergencyStop_BypassesQueueAndDeenergizes(t *testing.T) {
	fx := newFixture(t, Options{}, 2)

	fx.setPhase(t, phase.Regenerating, 10*time.Minute)
	// queued commands must not delay the stop
	fx.queue.TrySend(device.Command{Target: phase.Cooldown, FanVoltage: 3})

	if err := fx.cmds.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}

	g := fx.state.Guard()
	g.Lock()
	p := fx.state.Phase()
	_, armed := fx.state.Deadline()
	g.Unlock()
	if p != phase.Idle || armed {
		t.Fatalf("state after stop: phase=%v armed=%v", p, armed)
	}

	if duty, _ := fx.out.LastDuty(); duty != 0 {
		t.Fatalf("fan duty=%d, want 0", duty)
	}
	if got := fx.events.byType(models.EventEmergencyStop); len(got) != 1 {
		t.Fatalf("expected one emergency stop event, got %d", len(got))
	}
	if fx.queue.Len() != 1 {
		t.Fatalf("stop must not drain the queue; that is the worker's job")
	}
}
