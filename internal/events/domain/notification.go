package events

import (
	"time"
)

// NotificationClass bundles per-transition priorities, ack-required
// flags and the recipient list shared by multiple monitored objects.
// Owned externally; read-only to the engine.
type NotificationClass struct {
	ID          uint32         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Priorities  Priorities     `json:"priorities"`
	AckRequired TransitionBits `json:"ack_required"`
	Recipients  []Destination  `json:"recipients"`
}

// WeekdaySet is a bitmask of weekdays a destination is valid on, bit
// positions following time.Weekday (Sunday = 0).
type WeekdaySet uint8

// EveryDay covers all seven weekdays.
const EveryDay WeekdaySet = 0x7f

// Contains reports whether the weekday is in the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	return s&(1<<uint(day)) != 0
}

// WithDay returns a copy of the set including day.
func (s WeekdaySet) WithDay(day time.Weekday) WeekdaySet {
	return s | 1<<uint(day)
}

// Destination is one recipient entry within a notification class,
// consulted as an immutable snapshot per dispatch.
type Destination struct {
	Recipient   string         `json:"recipient"`
	ProcessID   uint32         `json:"process_id"`
	Confirmed   bool           `json:"confirmed"`
	Days        WeekdaySet     `json:"days"`
	FromTime    time.Duration  `json:"from_time"` // offset from midnight
	ToTime      time.Duration  `json:"to_time"`   // offset from midnight; 0 means no window
	Transitions TransitionBits `json:"transitions"`
}

// CoversTime reports whether the destination's valid-days/times window
// matches the given instant. A zero window covers all times of day.
func (d Destination) CoversTime(t time.Time) bool {
	days := d.Days
	if days == 0 {
		days = EveryDay
	}
	if !days.Contains(t.Weekday()) {
		return false
	}
	if d.FromTime == 0 && d.ToTime == 0 {
		return true
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)
	return offset >= d.FromTime && offset <= d.ToTime
}

// Notification is the routed event message handed to the transport, one
// per eligible destination.
type Notification struct {
	ProcessID         uint32           `json:"process_id"`
	InitiatingDevice  string           `json:"initiating_device"`
	EventObject       string           `json:"event_object"`
	Timestamp         time.Time        `json:"timestamp"`
	NotificationClass uint32           `json:"notification_class"`
	Priority          Priority         `json:"priority"`
	Sequence          uint32           `json:"sequence"`
	EventType         EventType        `json:"event_type"`
	MessageText       string           `json:"message_text,omitempty"`
	NotifyType        NotifyType       `json:"notify_type"`
	AckRequired       *bool            `json:"ack_required,omitempty"`
	FromState         EventState       `json:"from_state,omitempty"`
	ToState           EventState       `json:"to_state"`
	EventValues       AlgorithmPayload `json:"event_values,omitempty"`
}

// AlgorithmPayload is the per-algorithm notification parameter union;
// exactly one member is set for alarm/event notifications and none for
// ack notifications.
type AlgorithmPayload struct {
	ChangeOfState       *ChangeOfStateValues       `json:"change_of_state,omitempty"`
	OutOfRange          *OutOfRangeValues          `json:"out_of_range,omitempty"`
	CommandFailure      *CommandFailureValues      `json:"command_failure,omitempty"`
	ChangeOfReliability *ChangeOfReliabilityValues `json:"change_of_reliability,omitempty"`
	ChangeOfLifeSafety  *ChangeOfLifeSafetyValues  `json:"change_of_life_safety,omitempty"`
	BufferReady         *BufferReadyValues         `json:"buffer_ready,omitempty"`
	Extended            *ExtendedValues            `json:"extended,omitempty"`
}

// IsZero reports whether no payload member is set.
func (p AlgorithmPayload) IsZero() bool {
	return p.ChangeOfState == nil && p.OutOfRange == nil && p.CommandFailure == nil &&
		p.ChangeOfReliability == nil && p.ChangeOfLifeSafety == nil &&
		p.BufferReady == nil && p.Extended == nil
}

// ChangeOfStateValues carries the new state and status flags.
type ChangeOfStateValues struct {
	NewValue    Value       `json:"new_value"`
	StatusFlags StatusFlags `json:"status_flags"`
}

// OutOfRangeValues carries the exceeding value and the violated limit.
type OutOfRangeValues struct {
	ExceedingValue float64     `json:"exceeding_value"`
	StatusFlags    StatusFlags `json:"status_flags"`
	Deadband       float64     `json:"deadband"`
	ExceededLimit  float64     `json:"exceeded_limit"`
}

// CommandFailureValues carries the disagreeing command and feedback.
type CommandFailureValues struct {
	CommandValue  Value       `json:"command_value"`
	StatusFlags   StatusFlags `json:"status_flags"`
	FeedbackValue Value       `json:"feedback_value"`
}

// ChangeOfReliabilityValues carries the detected reliability code.
type ChangeOfReliabilityValues struct {
	Reliability Reliability `json:"reliability"`
	StatusFlags StatusFlags `json:"status_flags"`
}

// ChangeOfLifeSafetyValues carries the life-safety state and mode.
type ChangeOfLifeSafetyValues struct {
	NewState    LifeSafetyState `json:"new_state"`
	NewMode     LifeSafetyMode  `json:"new_mode"`
	StatusFlags StatusFlags     `json:"status_flags"`
}

// BufferReadyValues carries the log buffer record counters.
type BufferReadyValues struct {
	BufferObject         string `json:"buffer_object"`
	PreviousNotification uint32 `json:"previous_notification"`
	CurrentNotification  uint32 `json:"current_notification"`
}

// ExtendedValues carries an opaque vendor payload.
type ExtendedValues struct {
	VendorID     uint32  `json:"vendor_id"`
	ExtendedType uint32  `json:"extended_type"`
	Parameters   []Value `json:"parameters,omitempty"`
}
