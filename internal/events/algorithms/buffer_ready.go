package algorithms

import (
	"errors"

	events "bacnet-events/internal/events/domain"
)

// BufferReady notifies when a log buffer's total record count advances
// by at least the notification threshold since the last notification.
// The state never leaves normal; the comparison uses modular uint32
// arithmetic so counter wraparound yields a correct delta.
type BufferReady struct {
	BufferObject string
	Threshold    uint32

	lastNotify uint32
}

// NewBufferReady constructs the evaluator.
func NewBufferReady(bufferObject string, threshold, lastNotify uint32) *BufferReady {
	return &BufferReady{BufferObject: bufferObject, Threshold: threshold, lastNotify: lastNotify}
}

// EventType implements Evaluator.
func (e *BufferReady) EventType() events.EventType { return events.EventBufferReady }

// Validate implements Evaluator.
func (e *BufferReady) Validate() error {
	if e.BufferObject == "" {
		return errors.New("buffer-ready: empty buffer object")
	}
	if e.Threshold == 0 {
		return errors.New("buffer-ready: zero notification threshold")
	}
	return nil
}

// LastNotifyRecord returns the record count of the last notification.
func (e *BufferReady) LastNotifyRecord() uint32 { return e.lastNotify }

// Evaluate implements Evaluator.
func (e *BufferReady) Evaluate(_ events.EventState, sample events.Sample) Result {
	total := sample.RecordCount
	if total-e.lastNotify >= e.Threshold {
		prev := e.lastNotify
		e.lastNotify = total
		return Result{
			State:    events.StateNormal,
			Renotify: true,
			Values: events.AlgorithmPayload{
				BufferReady: &events.BufferReadyValues{
					BufferObject:         e.BufferObject,
					PreviousNotification: prev,
					CurrentNotification:  total,
				},
			},
		}
	}
	return Result{State: events.StateNormal}
}
