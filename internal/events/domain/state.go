package events

// EventState is the alarm/fault classification of a monitored object.
type EventState string

const (
	StateNormal          EventState = "normal"
	StateOffNormal       EventState = "offnormal"
	StateFault           EventState = "fault"
	StateHighLimit       EventState = "high-limit"
	StateLowLimit        EventState = "low-limit"
	StateLifeSafetyAlarm EventState = "life-safety-alarm"
)

// IsOffNormal reports whether the state is an off-normal variant.
func (s EventState) IsOffNormal() bool {
	switch s {
	case StateOffNormal, StateHighLimit, StateLowLimit, StateLifeSafetyAlarm:
		return true
	}
	return false
}

// Valid reports whether the state is a known value.
func (s EventState) Valid() bool {
	return s == StateNormal || s == StateFault || s.IsOffNormal()
}

// TransitionKind classifies a committed state change for enable/ack
// bitsets and priority lookup.
type TransitionKind int

const (
	TransitionToOffNormal TransitionKind = iota
	TransitionToFault
	TransitionToNormal
)

// TransitionKinds lists all kinds in array-index order.
var TransitionKinds = [3]TransitionKind{TransitionToOffNormal, TransitionToFault, TransitionToNormal}

// KindOf classifies a target state into its transition kind.
func KindOf(to EventState) TransitionKind {
	switch {
	case to == StateFault:
		return TransitionToFault
	case to == StateNormal:
		return TransitionToNormal
	default:
		return TransitionToOffNormal
	}
}

// String implements fmt.Stringer.
func (k TransitionKind) String() string {
	switch k {
	case TransitionToOffNormal:
		return "to-offnormal"
	case TransitionToFault:
		return "to-fault"
	case TransitionToNormal:
		return "to-normal"
	}
	return "unknown"
}

// TransitionBits is the three-bit set indexed by transition kind, used
// for event-enable, acked-transitions and ack-required records.
type TransitionBits struct {
	ToOffNormal bool `json:"to_offnormal" yaml:"to_offnormal"`
	ToFault     bool `json:"to_fault" yaml:"to_fault"`
	ToNormal    bool `json:"to_normal" yaml:"to_normal"`
}

// AllTransitions returns a bitset with every kind set.
func AllTransitions() TransitionBits {
	return TransitionBits{ToOffNormal: true, ToFault: true, ToNormal: true}
}

// Has reports whether the bit for kind is set.
func (b TransitionBits) Has(kind TransitionKind) bool {
	switch kind {
	case TransitionToOffNormal:
		return b.ToOffNormal
	case TransitionToFault:
		return b.ToFault
	case TransitionToNormal:
		return b.ToNormal
	}
	return false
}

// Set returns a copy with the bit for kind set to value.
func (b TransitionBits) Set(kind TransitionKind, value bool) TransitionBits {
	switch kind {
	case TransitionToOffNormal:
		b.ToOffNormal = value
	case TransitionToFault:
		b.ToFault = value
	case TransitionToNormal:
		b.ToNormal = value
	}
	return b
}

// All reports whether every bit is set.
func (b TransitionBits) All() bool {
	return b.ToOffNormal && b.ToFault && b.ToNormal
}

// NotifyType distinguishes alarm, event and ack notifications.
type NotifyType string

const (
	NotifyAlarm           NotifyType = "alarm"
	NotifyEvent           NotifyType = "event"
	NotifyAckNotification NotifyType = "ack-notification"
)

// EventType identifies the event algorithm of a monitored object.
type EventType string

const (
	EventChangeOfState       EventType = "change-of-state"
	EventOutOfRange          EventType = "out-of-range"
	EventCommandFailure      EventType = "command-failure"
	EventChangeOfReliability EventType = "change-of-reliability"
	EventChangeOfLifeSafety  EventType = "change-of-life-safety"
	EventBufferReady         EventType = "buffer-ready"
	EventExtended            EventType = "extended"
)

// Priority is a BACnet notification priority (0 is highest).
type Priority uint8

// Priorities holds one priority per transition kind.
type Priorities [3]Priority

// For returns the priority for a transition kind.
func (p Priorities) For(kind TransitionKind) Priority {
	if kind < 0 || int(kind) >= len(p) {
		return 0
	}
	return p[kind]
}
