package device

import "time"

// Guard is a mutual-exclusion lock that supports a bounded-wait acquisition.
// Request handlers and the watchdog take it with a timeout so a wedged holder
// surfaces as a contention error instead of a hung request; the worker takes
// it unconditionally because its critical sections are a few field writes.
type Guard struct {
	sem chan struct{}
}

// NewGuard returns an unlocked guard.
func NewGuard() *Guard {
	g := &Guard{sem: make(chan struct{}, 1)}
	g.sem <- struct{}{}
	return g
}

// Acquire takes the guard, giving up after the timeout. It reports whether
// the guard was acquired.
func (g *Guard) Acquire(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-g.sem:
		return true
	case <-timer.C:
		return false
	}
}

// Lock takes the guard unconditionally.
func (g *Guard) Lock() {
	<-g.sem
}

// Unlock releases the guard. Unlocking an unlocked guard panics.
func (g *Guard) Unlock() {
	select {
	case g.sem <- struct{}{}:
	default:
		panic("device: unlock of unlocked guard")
	}
}
