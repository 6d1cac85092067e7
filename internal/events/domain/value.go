package events

import (
	"fmt"
	"strconv"
)

// ValueKind tags the concrete type carried by a Value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindReal
	KindUnsigned
	KindBoolean
	KindEnumerated
)

// Value is a monitored property sample value. BACnet present-values are
// real, unsigned, boolean or enumerated depending on the object type;
// the tagged union keeps comparison semantics explicit.
type Value struct {
	Kind       ValueKind `json:"kind"`
	Real       float64   `json:"real,omitempty"`
	Unsigned   uint32    `json:"unsigned,omitempty"`
	Boolean    bool      `json:"boolean,omitempty"`
	Enumerated uint32    `json:"enumerated,omitempty"`
}

// RealValue wraps a float sample.
func RealValue(v float64) Value { return Value{Kind: KindReal, Real: v} }

// UnsignedValue wraps an unsigned sample.
func UnsignedValue(v uint32) Value { return Value{Kind: KindUnsigned, Unsigned: v} }

// BooleanValue wraps a boolean sample.
func BooleanValue(v bool) Value { return Value{Kind: KindBoolean, Boolean: v} }

// EnumeratedValue wraps an enumerated sample.
func EnumeratedValue(v uint32) Value { return Value{Kind: KindEnumerated, Enumerated: v} }

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool { return v.Kind == KindNone }

// Equal compares two values; values of different kinds never compare equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindReal:
		return v.Real == o.Real
	case KindUnsigned:
		return v.Unsigned == o.Unsigned
	case KindBoolean:
		return v.Boolean == o.Boolean
	case KindEnumerated:
		return v.Enumerated == o.Enumerated
	}
	return true
}

// Float returns the numeric magnitude for real and unsigned values.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindReal:
		return v.Real, true
	case KindUnsigned:
		return float64(v.Unsigned), true
	}
	return 0, false
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.Kind {
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case KindUnsigned:
		return strconv.FormatUint(uint64(v.Unsigned), 10)
	case KindBoolean:
		return strconv.FormatBool(v.Boolean)
	case KindEnumerated:
		return fmt.Sprintf("enum(%d)", v.Enumerated)
	}
	return "none"
}

// StatusFlags mirrors the BACnet status-flags bitstring.
type StatusFlags struct {
	InAlarm      bool `json:"in_alarm"`
	Fault        bool `json:"fault"`
	Overridden   bool `json:"overridden"`
	OutOfService bool `json:"out_of_service"`
}

// LimitEnable mirrors the BACnet limit-enable bitstring.
type LimitEnable struct {
	LowLimitEnable  bool `json:"low_limit_enable" yaml:"low_limit_enable"`
	HighLimitEnable bool `json:"high_limit_enable" yaml:"high_limit_enable"`
}

// Reliability is the BACnet reliability enumeration subset used by the
// fault algorithms.
type Reliability string

const (
	ReliabilityNoFaultDetected      Reliability = "no-fault-detected"
	ReliabilityNoSensor             Reliability = "no-sensor"
	ReliabilityOverRange            Reliability = "over-range"
	ReliabilityUnderRange           Reliability = "under-range"
	ReliabilityOpenLoop             Reliability = "open-loop"
	ReliabilityShortedLoop          Reliability = "shorted-loop"
	ReliabilityUnreliableOther      Reliability = "unreliable-other"
	ReliabilityConfigurationError   Reliability = "configuration-error"
	ReliabilityCommunicationFailure Reliability = "communication-failure"
)

// Faulted reports whether the reliability indicates a fault.
func (r Reliability) Faulted() bool {
	return r != "" && r != ReliabilityNoFaultDetected
}

// LifeSafetyState is the monitored state of a life-safety point or zone.
type LifeSafetyState uint32

// LifeSafetyMode is the operating mode of the governing life-safety object.
type LifeSafetyMode uint32

// Sample is one candidate evaluation input. A property write or a poll
// tick produces one; only the fields relevant to the configured
// algorithm are populated.
type Sample struct {
	Value       Value
	StatusFlags StatusFlags
	Reliability Reliability
	Mode        LifeSafetyMode
	Command     Value
	Feedback    Value
	RecordCount uint32
}
