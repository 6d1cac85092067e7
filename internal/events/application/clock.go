package application

import "time"

// Clock provides time. Production uses SystemClock; tests inject a
// manually advanced clock, and all due-transition arithmetic works on
// absolute instants so coarse jumps behave like fine-grained time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
