package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
)

func startWorker(t *testing.T, fx *fixture) (*WorkerService, context.CancelFunc) {
	t.Helper()
	w := NewWorkerService(fx.state, fx.queue, fx.driver, fx.events, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)
	return w, cancel
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestWorker_AppliesCommandAndDrivesActuators(t *testing.T) {
	fx := newFixture(t, Options{}, 0)
	startWorker(t, fx)

	if !fx.queue.TrySend(device.Command{
		Target:     phase.Regenerating,
		Duration:   5 * time.Minute,
		FanVoltage: 7.6,
		HeaterOn:   true,
	}) {
		t.Fatalf("enqueue failed")
	}

	ok := waitFor(t, time.Second, func() bool {
		g := fx.state.Guard()
		g.Lock()
		defer g.Unlock()
		return fx.state.Phase() == phase.Regenerating
	})
	if !ok {
		t.Fatalf("worker never applied the command")
	}

	g := fx.state.Guard()
	g.Lock()
	end, armed := fx.state.Deadline()
	g.Unlock()
	if !armed || time.Until(end) <= 4*time.Minute {
		t.Fatalf("deadline not set from duration: end=%v armed=%v", end, armed)
	}

	// 7.6 V sits on the 75 % sample of the default table → duty 191
	if !waitFor(t, time.Second, func() bool {
		duty, ok := fx.out.LastDuty()
		return ok && duty == 191
	}) {
		duty, _ := fx.out.LastDuty()
		t.Fatalf("duty=%d, want 191", duty)
	}
	if level, ok := fx.out.LastHeater(); !ok || !level {
		t.Fatalf("heater line not driven")
	}

	if !waitFor(t, time.Second, func() bool {
		return len(fx.events.byType(models.EventPhaseChange)) == 1
	}) {
		t.Fatalf("phase change event not logged")
	}
}

func TestWorker_ManualCommandLoggedAsOverride(t *testing.T) {
	fx := newFixture(t, Options{}, 0)
	startWorker(t, fx)

	fx.queue.TrySend(device.Command{Target: phase.Manual, FanVoltage: 3.0})

	if !waitFor(t, time.Second, func() bool {
		return len(fx.events.byType(models.EventManualOverride)) == 1
	}) {
		t.Fatalf("manual override event not logged")
	}

	g := fx.state.Guard()
	g.Lock()
	_, armed := fx.state.Deadline()
	g.Unlock()
	if armed {
		t.Fatalf("manual phase must have no deadline")
	}
}

// N producers submitting concurrently result in exactly N applications, in an
// order consistent with each producer's own submission order. No command is
// lost, none applied twice.
func TestWorker_NConcurrentProducersNApplications(t *testing.T) {
	const producers = 6
	const perProducer = 4
	const total = producers * perProducer

	fx := newFixture(t, Options{}, total)
	startWorker(t, fx)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				// manual commands are always legal, so every submission
				// passes validation regardless of interleaving
				if !fx.queue.TrySend(device.Command{
					Target:     phase.Manual,
					FanVoltage: float64(p), // tag the producer
				}) {
					t.Errorf("producer %d: queue full", p)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	if !waitFor(t, 2*time.Second, func() bool {
		return len(fx.events.byType(models.EventManualOverride)) == total
	}) {
		t.Fatalf("applied %d commands, want %d",
			len(fx.events.byType(models.EventManualOverride)), total)
	}

	// heater line driven once per application
	if got := len(fx.out.HeaterLevels); got != total {
		t.Fatalf("actuator driven %d times, want %d", got, total)
	}
}

func TestWorker_StateCommittedBeforeActuation(t *testing.T) {
	fx := newFixture(t, Options{}, 0)
	fx.out.DutyErr = errors.New("bus fault")
	startWorker(t, fx)

	fx.queue.TrySend(device.Command{Target: phase.Scrubbing, Duration: time.Minute, FanVoltage: 9})

	// even though the hardware write fails, authoritative state reflects
	// the commanded intent
	ok := waitFor(t, time.Second, func() bool {
		g := fx.state.Guard()
		g.Lock()
		defer g.Unlock()
		return fx.state.Phase() == phase.Scrubbing
	})
	if !ok {
		t.Fatalf("state not committed despite actuator failure")
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	fx := newFixture(t, Options{}, 0)
	_, cancel := startWorker(t, fx)

	cancel()
	time.Sleep(20 * time.Millisecond)

	fx.queue.TrySend(device.Command{Target: phase.Scrubbing, FanVoltage: 9})
	time.Sleep(50 * time.Millisecond)

	g := fx.state.Guard()
	g.Lock()
	p := fx.state.Phase()
	g.Unlock()
	if p != phase.Idle {
		t.Fatalf("canceled worker still applying commands")
	}
}
