package phase

// Matrix decides whether a requested phase change is legal. Two revisions of
// the rule set shipped on real hardware; both are kept selectable so a
// deployment can stay behaviorally compatible with the earlier firmware.
type Matrix struct {
	// forward lists the legal non-manual successors of each phase.
	forward map[Phase][]Phase
}

// Revision names accepted in configuration.
const (
	RevisionStrict     = "rev1"
	RevisionPermissive = "rev2"
)

// NewMatrix returns the transition matrix for the named revision. Unknown
// names fall back to the permissive revision, which is canonical.
func NewMatrix(revision string) Matrix {
	if revision == RevisionStrict {
		return Matrix{forward: map[Phase][]Phase{
			Idle:         {Scrubbing},
			Scrubbing:    {Regenerating, Idle},
			Regenerating: {Cooldown, Idle},
			Cooldown:     {Idle},
		}}
	}
	return Matrix{forward: map[Phase][]Phase{
		Idle:         {Scrubbing, Regenerating},
		Scrubbing:    {Regenerating, Idle},
		Regenerating: {Cooldown, Idle},
		Cooldown:     {Idle},
	}}
}

// Allowed reports whether a transition from one phase to another is legal.
// Manual is an operator override: it is reachable from any phase and may exit
// to any phase. Re-entering Idle is the keep-alive no-op and restarts the
// phase timer; every other same-phase request is rejected by SamePhase before
// this check runs.
func (m Matrix) Allowed(from, to Phase) bool {
	if from == Manual || to == Manual {
		return true
	}
	if from == Idle && to == Idle {
		return true
	}
	for _, next := range m.forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SamePhase reports whether a request targets the phase the unit is already
// in, in a way that must be rejected. Idle→Idle (keep-alive) and re-entering
// Manual are the two permitted exceptions.
func SamePhase(current, target Phase) bool {
	if current != target {
		return false
	}
	return target != Idle && target != Manual
}
