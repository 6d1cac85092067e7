package algorithms

import (
	events "bacnet-events/internal/events/domain"
)

// ChangeOfReliability is the fault detector driven by the monitored
// reliability property. Fault transitions bypass the time delay in both
// directions and discard any pending non-fault transition.
type ChangeOfReliability struct{}

// NewChangeOfReliability constructs the detector.
func NewChangeOfReliability() *ChangeOfReliability { return &ChangeOfReliability{} }

// Detect implements FaultDetector.
func (d *ChangeOfReliability) Detect(sample events.Sample) (events.Reliability, bool) {
	rel := sample.Reliability
	if rel == "" {
		rel = events.ReliabilityNoFaultDetected
	}
	return rel, rel.Faulted()
}
