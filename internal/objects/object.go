// Package objects provides the object/property store the event engine
// evaluates against and writes its mirrored properties into.
package objects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ObjectType identifies a BACnet object type.
type ObjectType string

const (
	TypeAnalogInput     ObjectType = "analog-input"
	TypeAnalogOutput    ObjectType = "analog-output"
	TypeAnalogValue     ObjectType = "analog-value"
	TypeBinaryInput     ObjectType = "binary-input"
	TypeBinaryOutput    ObjectType = "binary-output"
	TypeBinaryValue     ObjectType = "binary-value"
	TypeMultiStateInput ObjectType = "multi-state-input"
	TypeMultiStateValue ObjectType = "multi-state-value"
	TypeAccumulator     ObjectType = "accumulator"
	TypePulseConverter  ObjectType = "pulse-converter"
	TypeLifeSafetyPoint ObjectType = "life-safety-point"
	TypeLifeSafetyZone  ObjectType = "life-safety-zone"
	TypeEventEnrollment ObjectType = "event-enrollment"
	TypeTrendLog        ObjectType = "trend-log"
	TypeDevice          ObjectType = "device"
)

// ObjectRef identifies one object instance.
type ObjectRef struct {
	Type     ObjectType
	Instance uint32
}

// String renders the reference as "type.instance".
func (r ObjectRef) String() string {
	return fmt.Sprintf("%s.%d", r.Type, r.Instance)
}

// ParseRef parses a "type.instance" reference.
func ParseRef(s string) (ObjectRef, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return ObjectRef{}, fmt.Errorf("objects: malformed reference %q", s)
	}
	instance, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("objects: malformed instance in %q", s)
	}
	return ObjectRef{Type: ObjectType(s[:idx]), Instance: uint32(instance)}, nil
}

// Property identifies an object property.
type Property string

const (
	PropPresentValue          Property = "present-value"
	PropEventState            Property = "event-state"
	PropStatusFlags           Property = "status-flags"
	PropReliability           Property = "reliability"
	PropEventTimeStamps       Property = "event-time-stamps"
	PropAckedTransitions      Property = "acked-transitions"
	PropEventEnable           Property = "event-enable"
	PropFeedbackValue         Property = "feedback-value"
	PropMode                  Property = "mode"
	PropRecordCount           Property = "record-count"
	PropTotalRecordCount      Property = "total-record-count"
	PropLimitEnable           Property = "limit-enable"
	PropHighLimit             Property = "high-limit"
	PropLowLimit              Property = "low-limit"
	PropDeadband              Property = "deadband"
	PropEventAlgorithmInhibit Property = "event-algorithm-inhibit"
	PropNotificationClass     Property = "notification-class"
	PropPriorities            Property = "priorities"
)

// ErrUnknownObject indicates a reference to an object not in the store.
var ErrUnknownObject = errors.New("objects: unknown object")

// ErrUnknownProperty indicates a read of a property never written.
var ErrUnknownProperty = errors.New("objects: unknown property")
