package service

import (
	"context"
	"time"

	"cartridge_conditioner/internal/device"
)

// ConfigInfo is the running configuration exposed on the inspection API.
type ConfigInfo struct {
	MatrixRevision string  `json:"matrix_revision"`
	GraceSec       int     `json:"watchdog_grace_sec"`
	GuardWaitMs    int     `json:"guard_wait_ms"`
	MaxDurationMin int     `json:"max_duration_min"`
	QueueCapacity  int     `json:"queue_capacity"`
	MaxFanVoltage  float64 `json:"max_fan_voltage"`
}

type MonitoringService struct {
	state *device.State
	wait  time.Duration
	info  ConfigInfo
}

func NewMonitoringService(state *device.State, queue *device.Queue, opts Options) *MonitoringService {
	wait := opts.GuardWait
	if wait <= 0 {
		wait = defaultGuardWait
	}
	maxDur := opts.MaxDuration
	if maxDur <= 0 {
		maxDur = defaultMaxDuration
	}
	return &MonitoringService{
		state: state,
		wait:  wait,
		info: ConfigInfo{
			MatrixRevision: opts.MatrixRevision,
			GraceSec:       int(opts.Grace.Seconds()),
			GuardWaitMs:    int(wait.Milliseconds()),
			MaxDurationMin: int(maxDur.Minutes()),
			QueueCapacity:  queue.Cap(),
			MaxFanVoltage:  MaxFanVoltage,
		},
	}
}

// Snapshot copies the authoritative state under a bounded guard acquisition.
func (s *MonitoringService) Snapshot(ctx context.Context) (device.Snapshot, error) {
	guard := s.state.Guard()
	if !guard.Acquire(s.wait) {
		return device.Snapshot{}, ErrGuardBusy
	}
	snap := s.state.SnapshotLocked(time.Now())
	guard.Unlock()
	return snap, nil
}

// DeviceConfig returns the running configuration.
func (s *MonitoringService) DeviceConfig() ConfigInfo { return s.info }
