package phase

import "fmt"

// Phase is the operating mode of the conditioning unit. Exactly one phase is
// active at any instant.
type Phase int

const (
	Idle Phase = iota
	Scrubbing
	Regenerating
	Cooldown
	Manual
)

// Wire names used by the device JSON contract.
const (
	nameIdle     = "idle"
	nameScrub    = "scrub"
	nameRegen    = "regen"
	nameCooldown = "cooldown"
	nameManual   = "manual"
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return nameIdle
	case Scrubbing:
		return nameScrub
	case Regenerating:
		return nameRegen
	case Cooldown:
		return nameCooldown
	case Manual:
		return nameManual
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Parse resolves a wire name into a Phase. The boolean is false for
// unrecognized names.
func Parse(name string) (Phase, bool) {
	switch name {
	case nameIdle:
		return Idle, true
	case nameScrub:
		return Scrubbing, true
	case nameRegen:
		return Regenerating, true
	case nameCooldown:
		return Cooldown, true
	case nameManual:
		return Manual, true
	}
	return Idle, false
}
