package algorithms

import (
	events "bacnet-events/internal/events/domain"
)

// FaultOnly is the placeholder event algorithm for objects whose
// reporting is driven entirely by the fault detector. Samples never
// produce an off-normal state.
type FaultOnly struct{}

// NewFaultOnly constructs the evaluator.
func NewFaultOnly() *FaultOnly { return &FaultOnly{} }

// EventType implements Evaluator.
func (e *FaultOnly) EventType() events.EventType { return events.EventChangeOfReliability }

// Validate implements Evaluator.
func (e *FaultOnly) Validate() error { return nil }

// Evaluate implements Evaluator.
func (e *FaultOnly) Evaluate(_ events.EventState, _ events.Sample) Result {
	return Result{State: events.StateNormal}
}
