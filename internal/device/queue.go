package device

import (
	"time"

	"cartridge_conditioner/internal/phase"
)

// Command is a validated, immutable phase-change request. Produced by the
// ingress after the full validation pipeline, consumed exactly once by the
// worker.
type Command struct {
	Target     phase.Phase
	Duration   time.Duration // 0 = indefinite
	FanVoltage float64       // 0.0-10.0 V
	HeaterOn   bool
}

// DefaultQueueCapacity bounds how many validated commands may be in flight.
// Command rates are low relative to phase durations, so a small bound is
// plenty; a full queue means the worker is wedged or the host is flooding.
const DefaultQueueCapacity = 10

// Queue is the fan-in channel between concurrent request handlers and the
// single worker. Producers never block: TrySend fails fast on a full queue so
// the caller can surface a busy condition. The worker is the only receiver,
// which serializes all state mutation without fine-grained locking around
// actuator writes.
type Queue struct {
	ch chan Command
}

// NewQueue returns a bounded queue. Capacity <= 0 uses the default.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Command, capacity)}
}

// TrySend offers a command without blocking. It reports whether the command
// was accepted.
func (q *Queue) TrySend(cmd Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Receive exposes the consumer side. FIFO, single consumer.
func (q *Queue) Receive() <-chan Command {
	return q.ch
}

// Len reports how many commands are waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue bound.
func (q *Queue) Cap() int { return cap(q.ch) }
