package algorithms

import (
	"testing"

	events "bacnet-events/internal/events/domain"
)

func TestOutOfRange_HighLimitAndHysteresis(t *testing.T) {
	e := NewOutOfRange(0, 100, 5)

	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(110)})
	if res.State != events.StateHighLimit {
		t.Fatalf("expected high-limit, got %s", res.State)
	}
	if res.Values.OutOfRange == nil {
		t.Fatalf("expected out-of-range payload")
	}
	if res.Values.OutOfRange.ExceedingValue != 110 || res.Values.OutOfRange.ExceededLimit != 100 || res.Values.OutOfRange.Deadband != 5 {
		t.Fatalf("unexpected payload: %+v", res.Values.OutOfRange)
	}

	// 96 is inside the deadband: hold high-limit.
	res = e.Evaluate(events.StateHighLimit, events.Sample{Value: events.RealValue(96)})
	if res.State != events.StateHighLimit {
		t.Fatalf("expected high-limit held at 96, got %s", res.State)
	}
	// 95 equals high_limit - deadband: still held.
	res = e.Evaluate(events.StateHighLimit, events.Sample{Value: events.RealValue(95)})
	if res.State != events.StateHighLimit {
		t.Fatalf("expected high-limit held at 95, got %s", res.State)
	}
	// 94 is strictly below the hysteresis bound.
	res = e.Evaluate(events.StateHighLimit, events.Sample{Value: events.RealValue(94)})
	if res.State != events.StateNormal {
		t.Fatalf("expected normal at 94, got %s", res.State)
	}
	if res.Immediate {
		t.Fatalf("hysteresis return must honour the time delay")
	}
}

func TestOutOfRange_ExactLimitIsNotExceeded(t *testing.T) {
	e := NewOutOfRange(0, 100, 5)
	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(100)})
	if res.State != events.StateNormal {
		t.Fatalf("value equal to high limit must stay normal, got %s", res.State)
	}
	res = e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(0)})
	if res.State != events.StateNormal {
		t.Fatalf("value equal to low limit must stay normal, got %s", res.State)
	}
}

func TestOutOfRange_LowLimit(t *testing.T) {
	e := NewOutOfRange(10, 100, 5)
	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(9)})
	if res.State != events.StateLowLimit {
		t.Fatalf("expected low-limit, got %s", res.State)
	}
	res = e.Evaluate(events.StateLowLimit, events.Sample{Value: events.RealValue(15)})
	if res.State != events.StateLowLimit {
		t.Fatalf("expected low-limit held inside deadband, got %s", res.State)
	}
	res = e.Evaluate(events.StateLowLimit, events.Sample{Value: events.RealValue(16)})
	if res.State != events.StateNormal {
		t.Fatalf("expected normal above low_limit+deadband, got %s", res.State)
	}
}

func TestOutOfRange_DisabledLimitForcesImmediateNormal(t *testing.T) {
	e := NewOutOfRange(0, 100, 5)
	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(120)})
	if res.State != events.StateHighLimit {
		t.Fatalf("expected high-limit, got %s", res.State)
	}

	e.SetLimitEnable(true, false)
	res = e.Evaluate(events.StateHighLimit, events.Sample{Value: events.RealValue(120)})
	if res.State != events.StateNormal || !res.Immediate {
		t.Fatalf("disabling high limit must force immediate normal, got %s immediate=%v", res.State, res.Immediate)
	}

	// With the high bound disabled, 120 never triggers again.
	res = e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(120)})
	if res.State != events.StateNormal {
		t.Fatalf("disabled bound must not trigger, got %s", res.State)
	}
}

func TestOutOfRange_Validate(t *testing.T) {
	if err := (&OutOfRange{HighLimit: 10, LowLimit: 20}).Validate(); err == nil {
		t.Fatalf("expected error for high below low")
	}
	if err := (&OutOfRange{HighLimit: 10, LowLimit: 0, Deadband: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative deadband")
	}
	if err := (&OutOfRange{HighLimit: 10, LowLimit: 0, Deadband: 6}).Validate(); err == nil {
		t.Fatalf("expected error for deadband wider than span")
	}
	if err := NewOutOfRange(0, 100, 5).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChangeOfState_AlarmValueMembership(t *testing.T) {
	e := NewChangeOfState([]events.Value{events.BooleanValue(true)})

	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.BooleanValue(true)})
	if res.State != events.StateOffNormal {
		t.Fatalf("expected offnormal, got %s", res.State)
	}
	res = e.Evaluate(events.StateOffNormal, events.Sample{Value: events.BooleanValue(false)})
	if res.State != events.StateNormal {
		t.Fatalf("expected normal, got %s", res.State)
	}
	// Values of a different kind never match.
	res = e.Evaluate(events.StateNormal, events.Sample{Value: events.EnumeratedValue(1)})
	if res.State != events.StateNormal {
		t.Fatalf("kind mismatch must not trigger, got %s", res.State)
	}
}

func TestCommandFailure_FeedbackDisagreement(t *testing.T) {
	e := NewCommandFailure()
	res := e.Evaluate(events.StateNormal, events.Sample{
		Command:  events.EnumeratedValue(1),
		Feedback: events.EnumeratedValue(0),
	})
	if res.State != events.StateOffNormal {
		t.Fatalf("expected offnormal on disagreement, got %s", res.State)
	}
	res = e.Evaluate(events.StateOffNormal, events.Sample{
		Command:  events.EnumeratedValue(1),
		Feedback: events.EnumeratedValue(1),
	})
	if res.State != events.StateNormal {
		t.Fatalf("expected normal on agreement, got %s", res.State)
	}
}

func TestChangeOfLifeSafety_ModeChangeRenotifies(t *testing.T) {
	e := NewChangeOfLifeSafety([]events.LifeSafetyState{3}, []events.LifeSafetyState{7})

	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.EnumeratedValue(3), Mode: 1})
	if res.State != events.StateOffNormal || res.Immediate {
		t.Fatalf("expected delayed offnormal, got %s immediate=%v", res.State, res.Immediate)
	}

	// Same state, changed mode: immediate re-notification.
	res = e.Evaluate(events.StateOffNormal, events.Sample{Value: events.EnumeratedValue(3), Mode: 2})
	if res.State != events.StateOffNormal || !res.Immediate || !res.Renotify {
		t.Fatalf("expected immediate renotify, got %+v", res)
	}

	// Unchanged mode: no re-notification.
	res = e.Evaluate(events.StateOffNormal, events.Sample{Value: events.EnumeratedValue(3), Mode: 2})
	if res.Renotify || res.Immediate {
		t.Fatalf("expected plain result, got %+v", res)
	}

	res = e.Evaluate(events.StateOffNormal, events.Sample{Value: events.EnumeratedValue(7), Mode: 2})
	if res.State != events.StateLifeSafetyAlarm {
		t.Fatalf("expected life-safety-alarm, got %s", res.State)
	}
}

func TestChangeOfLifeSafety_ModeChangeWhileNormalIsQuiet(t *testing.T) {
	e := NewChangeOfLifeSafety([]events.LifeSafetyState{3}, nil)
	e.Evaluate(events.StateNormal, events.Sample{Value: events.EnumeratedValue(0), Mode: 1})
	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.EnumeratedValue(0), Mode: 2})
	if res.Immediate || res.Renotify {
		t.Fatalf("mode change in normal must not notify, got %+v", res)
	}
}

func TestBufferReady_ThresholdAndWrap(t *testing.T) {
	e := NewBufferReady("trend-log.1", 10, 0)

	res := e.Evaluate(events.StateNormal, events.Sample{RecordCount: 9})
	if res.Renotify {
		t.Fatalf("below threshold must not notify")
	}
	res = e.Evaluate(events.StateNormal, events.Sample{RecordCount: 10})
	if !res.Renotify {
		t.Fatalf("expected notification at threshold")
	}
	if res.State != events.StateNormal {
		t.Fatalf("buffer-ready never leaves normal, got %s", res.State)
	}
	if res.Values.BufferReady.PreviousNotification != 0 || res.Values.BufferReady.CurrentNotification != 10 {
		t.Fatalf("unexpected counters: %+v", res.Values.BufferReady)
	}
}

func TestBufferReady_CounterWraparound(t *testing.T) {
	e := NewBufferReady("trend-log.1", 5, 0xFFFFFFFD)

	// Wrapped delta: (3 - 0xFFFFFFFD) mod 2^32 = 6 >= 5.
	res := e.Evaluate(events.StateNormal, events.Sample{RecordCount: 3})
	if !res.Renotify {
		t.Fatalf("expected notification across wraparound")
	}
	if res.Values.BufferReady.PreviousNotification != 0xFFFFFFFD || res.Values.BufferReady.CurrentNotification != 3 {
		t.Fatalf("unexpected counters: %+v", res.Values.BufferReady)
	}
	if e.LastNotifyRecord() != 3 {
		t.Fatalf("last notify record not advanced: %d", e.LastNotifyRecord())
	}
}

func TestChangeOfReliability_Detect(t *testing.T) {
	d := NewChangeOfReliability()

	rel, faulted := d.Detect(events.Sample{})
	if faulted || rel != events.ReliabilityNoFaultDetected {
		t.Fatalf("empty reliability must default to no-fault, got %s %v", rel, faulted)
	}
	rel, faulted = d.Detect(events.Sample{Reliability: events.ReliabilityOpenLoop})
	if !faulted || rel != events.ReliabilityOpenLoop {
		t.Fatalf("expected open-loop fault, got %s %v", rel, faulted)
	}
}

func TestExtended_SamplesNeverChangeState(t *testing.T) {
	e := NewExtended(555, 1)
	res := e.Evaluate(events.StateNormal, events.Sample{Value: events.RealValue(1e9)})
	if res.State != events.StateNormal {
		t.Fatalf("extended must stay normal, got %s", res.State)
	}
	payload := e.AlertValues([]events.Value{events.RealValue(1)})
	if payload.Extended == nil || payload.Extended.VendorID != 555 {
		t.Fatalf("unexpected alert payload: %+v", payload.Extended)
	}
}
