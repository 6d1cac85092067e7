package algorithms

import (
	"errors"

	events "bacnet-events/internal/events/domain"
)

// Extended is a pass-through for vendor-defined alerts. Samples never
// change the event state; notifications are issued externally through
// the engine's alert path.
type Extended struct {
	VendorID     uint32
	ExtendedType uint32
}

// NewExtended constructs the evaluator.
func NewExtended(vendorID, extendedType uint32) *Extended {
	return &Extended{VendorID: vendorID, ExtendedType: extendedType}
}

// EventType implements Evaluator.
func (e *Extended) EventType() events.EventType { return events.EventExtended }

// Validate implements Evaluator.
func (e *Extended) Validate() error {
	if e.VendorID == 0 {
		return errors.New("extended: zero vendor id")
	}
	return nil
}

// Evaluate implements Evaluator.
func (e *Extended) Evaluate(_ events.EventState, _ events.Sample) Result {
	return Result{State: events.StateNormal}
}

// AlertValues builds the payload for an externally issued alert.
func (e *Extended) AlertValues(parameters []events.Value) events.AlgorithmPayload {
	return events.AlgorithmPayload{
		Extended: &events.ExtendedValues{
			VendorID:     e.VendorID,
			ExtendedType: e.ExtendedType,
			Parameters:   parameters,
		},
	}
}
