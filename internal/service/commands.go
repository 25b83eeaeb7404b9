package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cartridge_conditioner/internal/actuator"
	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/logger"
	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
	"cartridge_conditioner/internal/repository"
)

// Rejection classes surfaced by the ingress. Malformed-request and policy
// rejections mean the request itself is wrong; ErrGuardBusy and ErrQueueFull
// are contention, worth retrying. The worker never rejects: everything below
// runs before a command is enqueued.
var (
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidPhase      = errors.New("invalid phase")
	ErrVoltageRange      = errors.New("fan voltage out of range")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrGuardBusy         = errors.New("state lock busy")
	ErrAlreadyInPhase    = errors.New("already in target phase")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrQueueFull         = errors.New("command queue full")
)

// Hard limits of the device contract.
const (
	MinFanVoltage = 0.0
	MaxFanVoltage = 10.0

	defaultGuardWait   = 100 * time.Millisecond
	defaultMaxDuration = 1440 * time.Minute // 24 h
)

// AutoRequest is a structured /auto command. Pointer fields distinguish
// "absent" from zero values so the presence check stays explicit.
type AutoRequest struct {
	Phase       *string
	FanVolt     *float64
	Heater      *bool
	DurationMin *int
}

// ManualRequest is a structured /manual command: operator override, always
// indefinite.
type ManualRequest struct {
	FanVolt *float64
	Heater  *bool
}

type CommandService struct {
	state  *device.State
	queue  *device.Queue
	driver *actuator.Driver
	events repository.EventRepo
	matrix phase.Matrix
	wait   time.Duration
	maxDur time.Duration
	log    *logger.Logger
}

func NewCommandService(state *device.State, queue *device.Queue, driver *actuator.Driver,
	events repository.EventRepo, matrix phase.Matrix, opts Options, log *logger.Logger) *CommandService {
	wait := opts.GuardWait
	if wait <= 0 {
		wait = defaultGuardWait
	}
	maxDur := opts.MaxDuration
	if maxDur <= 0 {
		maxDur = defaultMaxDuration
	}
	return &CommandService{
		state:  state,
		queue:  queue,
		driver: driver,
		events: events,
		matrix: matrix,
		wait:   wait,
		maxDur: maxDur,
		log:    log,
	}
}

// SubmitAuto runs the full validation pipeline for an automatic-phase command
// and enqueues it. Validation reads the phase under the guard at submit time;
// the worker applies commands later, so a racing command may have changed the
// phase by then. That window is accepted: command rates are minutes apart and
// the matrix is checked against the freshest state available here.
func (s *CommandService) SubmitAuto(ctx context.Context, req AutoRequest) (phase.Phase, error) {
	// (a) required fields
	if req.Phase == nil || req.FanVolt == nil || req.Heater == nil || req.DurationMin == nil {
		return phase.Idle, fmt.Errorf("%w: need phase, fan_volt, heater, duration", ErrMissingField)
	}

	// (b) phase name
	target, ok := phase.Parse(*req.Phase)
	if !ok || target == phase.Manual {
		// manual goes through its own endpoint
		return phase.Idle, fmt.Errorf("%w: %q", ErrInvalidPhase, *req.Phase)
	}

	// (c) voltage range
	if err := checkVoltage(*req.FanVolt); err != nil {
		return target, err
	}

	// (d) duration
	if *req.DurationMin < 0 {
		return target, fmt.Errorf("%w: negative (%d min)", ErrInvalidDuration, *req.DurationMin)
	}
	duration := time.Duration(*req.DurationMin) * time.Minute
	if duration > s.maxDur {
		return target, fmt.Errorf("%w: %d min exceeds maximum %d min",
			ErrInvalidDuration, *req.DurationMin, int(s.maxDur.Minutes()))
	}

	// (e) bounded guard acquisition: contention, not a client error
	guard := s.state.Guard()
	if !guard.Acquire(s.wait) {
		return target, ErrGuardBusy
	}
	current := s.state.Phase()
	now := time.Now()

	// (f) same-phase rule. The rejection still restarts the phase clock with
	// the requested duration before returning; the field orchestrator relies
	// on this to refresh a running phase.
	if phase.SamePhase(current, target) {
		s.state.SetPhase(target, now, duration)
		guard.Unlock()
		return target, fmt.Errorf("%w: %s", ErrAlreadyInPhase, target)
	}

	// (g) transition legality
	if !s.matrix.Allowed(current, target) {
		guard.Unlock()
		return target, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	guard.Unlock()

	cmd := device.Command{
		Target:     target,
		Duration:   duration,
		FanVoltage: *req.FanVolt,
		HeaterOn:   *req.Heater,
	}
	if !s.queue.TrySend(cmd) {
		return target, ErrQueueFull
	}
	return target, nil
}

// SubmitManual enqueues an operator override. Manual skips the phase and
// duration checks entirely: the override is always legal and always
// indefinite. The voltage range still applies.
func (s *CommandService) SubmitManual(ctx context.Context, req ManualRequest) (phase.Phase, error) {
	if req.FanVolt == nil || req.Heater == nil {
		return phase.Manual, fmt.Errorf("%w: need fan_volt, heater", ErrMissingField)
	}
	if err := checkVoltage(*req.FanVolt); err != nil {
		return phase.Manual, err
	}

	cmd := device.Command{
		Target:     phase.Manual,
		Duration:   0,
		FanVoltage: *req.FanVolt,
		HeaterOn:   *req.Heater,
	}
	if !s.queue.TrySend(cmd) {
		return phase.Manual, ErrQueueFull
	}
	return phase.Manual, nil
}

// EmergencyStop forces the unit to Idle with outputs de-energized, right now.
// It bypasses the queue: the stop must not wait behind queued commands, and it
// is legal from every phase. Every guard holder releases within microseconds,
// so the blocking lock cannot stall.
func (s *CommandService) EmergencyStop(ctx context.Context) error {
	guard := s.state.Guard()
	guard.Lock()
	prev := s.state.SetPhase(phase.Idle, time.Now(), 0)
	guard.Unlock()

	if err := s.driver.Deenergize(); err != nil {
		// state is already committed safe; report the hardware fault
		if s.log != nil {
			s.log.Errorw("emergency_stop_actuator_failed", "err", err)
		}
		return fmt.Errorf("de-energize outputs: %w", err)
	}

	if err := s.events.Append(ctx, models.DeviceEvent{
		Type:        models.EventEmergencyStop,
		Description: "emergency stop, outputs de-energized",
		Metadata:    map[string]any{"from": prev.String()},
	}); err != nil && s.log != nil {
		s.log.Errorw("event_append_failed", "err", err, "type", models.EventEmergencyStop)
	}
	return nil
}

func checkVoltage(v float64) error {
	if v < MinFanVoltage || v > MaxFanVoltage {
		return fmt.Errorf("%w: %.2f V not in [%.0f, %.0f]", ErrVoltageRange, v, MinFanVoltage, MaxFanVoltage)
	}
	return nil
}
