package algorithms

import (
	events "bacnet-events/internal/events/domain"
)

// CommandFailure reports off-normal while the monitored feedback value
// disagrees with the commanded value. The time-delay debounce supplies
// the evaluation window.
type CommandFailure struct{}

// NewCommandFailure constructs the evaluator.
func NewCommandFailure() *CommandFailure { return &CommandFailure{} }

// EventType implements Evaluator.
func (e *CommandFailure) EventType() events.EventType { return events.EventCommandFailure }

// Validate implements Evaluator.
func (e *CommandFailure) Validate() error { return nil }

// Evaluate implements Evaluator.
func (e *CommandFailure) Evaluate(_ events.EventState, sample events.Sample) Result {
	values := events.AlgorithmPayload{
		CommandFailure: &events.CommandFailureValues{
			CommandValue:  sample.Command,
			StatusFlags:   sample.StatusFlags,
			FeedbackValue: sample.Feedback,
		},
	}
	if !sample.Feedback.Equal(sample.Command) {
		return Result{State: events.StateOffNormal, Values: values}
	}
	return Result{State: events.StateNormal, Values: values}
}
