package algorithms

import (
	"errors"

	events "bacnet-events/internal/events/domain"
)

// ChangeOfLifeSafety classifies life-safety states into off-normal and
// life-safety-alarm. A mode change on the governing object while
// already off-normal re-evaluates and re-notifies immediately, even
// when the resulting state is unchanged.
type ChangeOfLifeSafety struct {
	AlarmValues           []events.LifeSafetyState
	LifeSafetyAlarmValues []events.LifeSafetyState

	prevMode events.LifeSafetyMode
	modeSeen bool
}

// NewChangeOfLifeSafety constructs the evaluator.
func NewChangeOfLifeSafety(alarmValues, lifeSafetyAlarmValues []events.LifeSafetyState) *ChangeOfLifeSafety {
	return &ChangeOfLifeSafety{
		AlarmValues:           alarmValues,
		LifeSafetyAlarmValues: lifeSafetyAlarmValues,
	}
}

// EventType implements Evaluator.
func (e *ChangeOfLifeSafety) EventType() events.EventType { return events.EventChangeOfLifeSafety }

// Validate implements Evaluator.
func (e *ChangeOfLifeSafety) Validate() error {
	if len(e.AlarmValues) == 0 && len(e.LifeSafetyAlarmValues) == 0 {
		return errors.New("change-of-life-safety: no alarm values")
	}
	return nil
}

// Evaluate implements Evaluator.
func (e *ChangeOfLifeSafety) Evaluate(current events.EventState, sample events.Sample) Result {
	state := events.LifeSafetyState(sample.Value.Enumerated)

	target := events.StateNormal
	if containsState(e.AlarmValues, state) {
		target = events.StateOffNormal
	}
	if containsState(e.LifeSafetyAlarmValues, state) {
		target = events.StateLifeSafetyAlarm
	}

	modeChanged := e.modeSeen && sample.Mode != e.prevMode
	e.prevMode = sample.Mode
	e.modeSeen = true

	res := Result{
		State: target,
		Values: events.AlgorithmPayload{
			ChangeOfLifeSafety: &events.ChangeOfLifeSafetyValues{
				NewState:    state,
				NewMode:     sample.Mode,
				StatusFlags: sample.StatusFlags,
			},
		},
	}
	// Operator mode changes re-confirm the alarm without delay.
	if modeChanged && current.IsOffNormal() {
		res.Immediate = true
		if target == current {
			res.Renotify = true
		}
	}
	return res
}

func containsState(set []events.LifeSafetyState, state events.LifeSafetyState) bool {
	for _, s := range set {
		if s == state {
			return true
		}
	}
	return false
}
