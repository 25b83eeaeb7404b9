package models

import "time"

// Event types recorded in the device log.
const (
	EventPhaseChange    = "PHASE_CHANGE"
	EventManualOverride = "MANUAL_OVERRIDE"
	EventWatchdogRevert = "WATCHDOG_REVERT"
	EventEmergencyStop  = "EMERGENCY_STOP"
	EventError          = "ERROR"
)

// DeviceEvent is a single log entry: a command applied, a watchdog reversion,
// or an emergency stop. The log is history only; it never feeds back into
// control decisions.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
