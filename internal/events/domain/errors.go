package events

import "errors"

// ErrNotFound indicates a monitored object without an event record.
var ErrNotFound = errors.New("events: not found")

// ErrStaleAcknowledgment indicates an ack whose timestamp does not match
// the recorded occurrence of that transition kind.
var ErrStaleAcknowledgment = errors.New("events: stale acknowledgment")

// ErrReportingDisabled indicates an operation on an object whose
// event reporting is not enabled.
var ErrReportingDisabled = errors.New("events: reporting disabled")

// ErrAlreadyEnabled indicates reporting was already enabled for the object.
var ErrAlreadyEnabled = errors.New("events: reporting already enabled")

// ErrUnknownClass indicates an unresolvable notification class.
var ErrUnknownClass = errors.New("events: unknown notification class")

// ErrInvalidConfig indicates a malformed algorithm configuration.
var ErrInvalidConfig = errors.New("events: invalid configuration")
