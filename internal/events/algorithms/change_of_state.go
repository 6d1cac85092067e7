package algorithms

import (
	"errors"

	events "bacnet-events/internal/events/domain"
)

// ChangeOfState reports off-normal while the sample equals one of the
// configured alarm values. Equality only; a different alarm value while
// already off-normal does not re-notify.
type ChangeOfState struct {
	AlarmValues []events.Value
}

// NewChangeOfState constructs the evaluator.
func NewChangeOfState(alarmValues []events.Value) *ChangeOfState {
	return &ChangeOfState{AlarmValues: alarmValues}
}

// EventType implements Evaluator.
func (e *ChangeOfState) EventType() events.EventType { return events.EventChangeOfState }

// Validate implements Evaluator.
func (e *ChangeOfState) Validate() error {
	if len(e.AlarmValues) == 0 {
		return errors.New("change-of-state: no alarm values")
	}
	for _, v := range e.AlarmValues {
		if v.IsZero() {
			return errors.New("change-of-state: unset alarm value")
		}
	}
	return nil
}

// Evaluate implements Evaluator.
func (e *ChangeOfState) Evaluate(_ events.EventState, sample events.Sample) Result {
	values := events.AlgorithmPayload{
		ChangeOfState: &events.ChangeOfStateValues{
			NewValue:    sample.Value,
			StatusFlags: sample.StatusFlags,
		},
	}
	for _, alarm := range e.AlarmValues {
		if sample.Value.Equal(alarm) {
			return Result{State: events.StateOffNormal, Values: values}
		}
	}
	return Result{State: events.StateNormal, Values: values}
}
