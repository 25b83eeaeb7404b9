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

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Commands is the ingress boundary: it validates structured requests and
// either enqueues a phase command or returns a typed rejection. EmergencyStop
// bypasses the queue entirely.
type Commands interface {
	SubmitAuto(ctx context.Context, req AutoRequest) (phase.Phase, error)
	SubmitManual(ctx context.Context, req ManualRequest) (phase.Phase, error)
	EmergencyStop(ctx context.Context) error
}

// Monitoring exposes read-only views of the authoritative state and the
// running configuration.
type Monitoring interface {
	Snapshot(ctx context.Context) (device.Snapshot, error)
	DeviceConfig() ConfigInfo
}

// EventLog exposes the append-only device log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

// Worker is the single consumer of the command queue; it owns all regular
// writes to the authoritative state. Stop via context cancellation.
type Worker interface {
	Run(ctx context.Context)
}

// Watchdog periodically audits the phase deadline and force-reverts to Idle
// when deadline plus grace is exceeded. Stop via context cancellation.
type Watchdog interface {
	Run(ctx context.Context, period time.Duration)
}

// Options are the tunables of the control core, loaded from configuration.
type Options struct {
	// GuardWait bounds how long request handlers and the watchdog wait for
	// the state guard before reporting contention.
	GuardWait time.Duration
	// Grace is the window past a phase deadline before the watchdog
	// force-reverts. Zero restores the earlier firmware's
	// revert-exactly-at-deadline behavior.
	Grace time.Duration
	// MaxDuration caps a commanded phase duration.
	MaxDuration time.Duration
	// MatrixRevision selects the transition rule set.
	MatrixRevision string
}

// Service aggregates all sub-services.
type Service struct {
	Commands
	Monitoring
	EventLog
	Worker
	Watchdog
	Authorization
}

// Deps carries the shared control primitives into the service layer. State,
// queue, and driver are created once in main and injected so ownership and
// locking discipline stay visible at every call site.
type Deps struct {
	Repos  *repository.Repository
	State  *device.State
	Queue  *device.Queue
	Driver *actuator.Driver
	Log    *logger.Logger
	Opts   Options
}

// NewService wires the control core and its boundary services.
func NewService(d Deps) *Service {
	matrix := phase.NewMatrix(d.Opts.MatrixRevision)
	return &Service{
		Commands:      NewCommandService(d.State, d.Queue, d.Driver, d.Repos.EventRepo, matrix, d.Opts, d.Log),
		Monitoring:    NewMonitoringService(d.State, d.Queue, d.Opts),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Worker:        NewWorkerService(d.State, d.Queue, d.Driver, d.Repos.EventRepo, d.Log),
		Watchdog:      NewWatchdogService(d.State, d.Driver, d.Repos.EventRepo, d.Opts, d.Log),
		Authorization: NewAuthService(d.Repos.Auth),
	}
}
