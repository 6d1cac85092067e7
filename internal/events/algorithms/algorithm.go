// Package algorithms implements the per-event-type evaluators that
// classify monitored samples into proposed event states.
package algorithms

import (
	events "bacnet-events/internal/events/domain"
)

// Result is the outcome of evaluating one sample.
type Result struct {
	// State is the proposed event state.
	State events.EventState
	// Immediate commits the transition without time-delay debounce.
	Immediate bool
	// Renotify requests a notification even when State equals the
	// current state (buffer-ready and life-safety mode changes).
	Renotify bool
	// Values become the notification's event values when the proposed
	// transition commits.
	Values events.AlgorithmPayload
}

// Evaluator proposes event states from samples. Evaluators hold their
// configuration and any per-algorithm accumulator; they perform no I/O
// and never read the clock. Callers serialize access per monitored
// object.
type Evaluator interface {
	EventType() events.EventType
	Validate() error
	Evaluate(current events.EventState, sample events.Sample) Result
}

// FaultDetector decides whether a sample indicates a fault. It runs
// independently of the event algorithm and its verdict pre-empts any
// pending transition.
type FaultDetector interface {
	Detect(sample events.Sample) (events.Reliability, bool)
}
