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

// WorkerService is the sole consumer of the command queue and the only
// regular writer of the authoritative state. Every dequeued command has
// already passed the full ingress pipeline, so the loop has no rejection
// branch; hardware I/O is fire-and-forget.
type WorkerService struct {
	state  *device.State
	queue  *device.Queue
	driver *actuator.Driver
	events repository.EventRepo
	log    *logger.Logger
}

func NewWorkerService(state *device.State, queue *device.Queue, driver *actuator.Driver,
	events repository.EventRepo, log *logger.Logger) *WorkerService {
	w := &WorkerService{state: state, queue: queue, driver: driver, events: events, log: log}

	// Observability hook: the driver reports what it actually drove. The
	// update is best-effort: if the guard is contended, skip rather than
	// stall an actuator write.
	driver.SetObserver(func(voltage, percent float64) {
		g := state.Guard()
		if g.Acquire(10 * time.Millisecond) {
			state.RecordOutput(voltage, percent)
			g.Unlock()
		}
	})
	return w
}

// Run blocks on the queue until the context is canceled. Blocking on an empty
// queue is the worker's idle state.
func (w *WorkerService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-w.queue.Receive():
			w.apply(ctx, cmd)
		}
	}
}

// apply commits the phase change, then drives the actuators. State is
// committed first so a failure mid-actuation leaves the authoritative record
// consistent with intent.
func (w *WorkerService) apply(ctx context.Context, cmd device.Command) {
	now := time.Now()

	guard := w.state.Guard()
	guard.Lock()
	prev := w.state.SetPhase(cmd.Target, now, cmd.Duration)
	guard.Unlock()

	if err := w.driver.Apply(cmd.FanVoltage, cmd.HeaterOn); err != nil && w.log != nil {
		w.log.Errorw("actuator_apply_failed", "err", err,
			"phase", cmd.Target.String(), "fan_volt", cmd.FanVoltage, "heater", cmd.HeaterOn)
	}

	evType := models.EventPhaseChange
	if cmd.Target == phase.Manual {
		evType = models.EventManualOverride
	}
	if err := w.events.Append(ctx, models.DeviceEvent{
		Type:        evType,
		Description: "applied " + cmd.Target.String(),
		Metadata: map[string]any{
			"from":         prev.String(),
			"to":           cmd.Target.String(),
			"fan_volt":     cmd.FanVoltage,
			"heater":       cmd.HeaterOn,
			"duration_min": int(cmd.Duration.Minutes()),
		},
	}); err != nil && w.log != nil {
		w.log.Errorw("event_append_failed", "err", err, "type", evType)
	}

	if w.log != nil {
		w.log.Infow("phase_applied", "from", prev.String(), "to", cmd.Target.String(),
			"fan_volt", cmd.FanVoltage, "heater", cmd.HeaterOn, "duration", cmd.Duration)
	}
}
