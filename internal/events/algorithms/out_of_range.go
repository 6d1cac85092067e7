package algorithms

import (
	"errors"

	events "bacnet-events/internal/events/domain"
)

// OutOfRange reports high-limit or low-limit when the numeric sample
// exceeds the configured bounds, with deadband hysteresis on the return
// to normal. Either bound may be disabled independently; disabling a
// bound while in that limit state forces an immediate return to normal.
type OutOfRange struct {
	HighLimit       float64
	LowLimit        float64
	Deadband        float64
	HighLimitEnable bool
	LowLimitEnable  bool
}

// NewOutOfRange constructs the evaluator with both bounds enabled.
func NewOutOfRange(lowLimit, highLimit, deadband float64) *OutOfRange {
	return &OutOfRange{
		HighLimit:       highLimit,
		LowLimit:        lowLimit,
		Deadband:        deadband,
		HighLimitEnable: true,
		LowLimitEnable:  true,
	}
}

// EventType implements Evaluator.
func (e *OutOfRange) EventType() events.EventType { return events.EventOutOfRange }

// Validate implements Evaluator.
func (e *OutOfRange) Validate() error {
	if e.Deadband < 0 {
		return errors.New("out-of-range: negative deadband")
	}
	if e.HighLimit < e.LowLimit {
		return errors.New("out-of-range: high limit below low limit")
	}
	if e.LowLimit+e.Deadband > e.HighLimit-e.Deadband {
		return errors.New("out-of-range: deadband wider than limit span")
	}
	return nil
}

// SetLimitEnable updates the per-bound enable flags.
func (e *OutOfRange) SetLimitEnable(low, high bool) {
	e.LowLimitEnable = low
	e.HighLimitEnable = high
}

// Evaluate implements Evaluator.
func (e *OutOfRange) Evaluate(current events.EventState, sample events.Sample) Result {
	v, ok := sample.Value.Float()
	if !ok {
		return Result{State: events.StateNormal, Values: e.payload(0, 0, sample)}
	}

	switch current {
	case events.StateHighLimit:
		if !e.HighLimitEnable {
			return Result{State: events.StateNormal, Immediate: true, Values: e.payload(v, e.HighLimit, sample)}
		}
		if e.LowLimitEnable && v < e.LowLimit {
			return Result{State: events.StateLowLimit, Values: e.payload(v, e.LowLimit, sample)}
		}
		// Hysteresis: hold high-limit until the value drops below
		// high_limit - deadband.
		if v < e.HighLimit-e.Deadband {
			return Result{State: events.StateNormal, Values: e.payload(v, e.HighLimit, sample)}
		}
		return Result{State: events.StateHighLimit, Values: e.payload(v, e.HighLimit, sample)}

	case events.StateLowLimit:
		if !e.LowLimitEnable {
			return Result{State: events.StateNormal, Immediate: true, Values: e.payload(v, e.LowLimit, sample)}
		}
		if e.HighLimitEnable && v > e.HighLimit {
			return Result{State: events.StateHighLimit, Values: e.payload(v, e.HighLimit, sample)}
		}
		if v > e.LowLimit+e.Deadband {
			return Result{State: events.StateNormal, Values: e.payload(v, e.LowLimit, sample)}
		}
		return Result{State: events.StateLowLimit, Values: e.payload(v, e.LowLimit, sample)}
	}

	if e.HighLimitEnable && v > e.HighLimit {
		return Result{State: events.StateHighLimit, Values: e.payload(v, e.HighLimit, sample)}
	}
	if e.LowLimitEnable && v < e.LowLimit {
		return Result{State: events.StateLowLimit, Values: e.payload(v, e.LowLimit, sample)}
	}
	return Result{State: events.StateNormal, Values: e.payload(v, 0, sample)}
}

func (e *OutOfRange) payload(value, limit float64, sample events.Sample) events.AlgorithmPayload {
	return events.AlgorithmPayload{
		OutOfRange: &events.OutOfRangeValues{
			ExceedingValue: value,
			StatusFlags:    sample.StatusFlags,
			Deadband:       e.Deadband,
			ExceededLimit:  limit,
		},
	}
}
