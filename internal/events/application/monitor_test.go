package application

import (
	"errors"
	"testing"
	"time"

	"bacnet-events/internal/events/algorithms"
	events "bacnet-events/internal/events/domain"
)

type stubClasses struct {
	class events.NotificationClass
	err   error
}

func (s stubClasses) Resolve(classID uint32) (events.NotificationClass, error) {
	if s.err != nil {
		return events.NotificationClass{}, s.err
	}
	return s.class, nil
}

func testClasses() stubClasses {
	return stubClasses{class: events.NotificationClass{
		ID:          1,
		Priorities:  events.Priorities{32, 8, 200},
		AckRequired: events.AllTransitions(),
	}}
}

func analogMonitor(t *testing.T, delay, delayNormal time.Duration) *Monitor {
	t.Helper()
	m, err := NewMonitor("analog-input.1",
		algorithms.NewOutOfRange(0, 100, 5),
		algorithms.NewChangeOfReliability(),
		MonitorConfig{
			NotificationClass: 1,
			EventEnable:       events.AllTransitions(),
			TimeDelay:         delay,
			TimeDelayNormal:   delayNormal,
		},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func realSample(v float64) events.Sample {
	return events.Sample{Value: events.RealValue(v), Reliability: events.ReliabilityNoFaultDetected}
}

func TestMonitor_TimeDelayDebounce(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)

	if got := m.Process(t0, realSample(110)); len(got) != 0 {
		t.Fatalf("expected no immediate commit, got %d", len(got))
	}
	// One nanosecond early: not due yet.
	if got := m.Tick(t0.Add(time.Second - time.Nanosecond)); len(got) != 0 {
		t.Fatalf("committed before the delay elapsed")
	}
	got := m.Tick(t0.Add(time.Second))
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	c := got[0]
	if c.To != events.StateHighLimit || c.From != events.StateNormal {
		t.Fatalf("unexpected transition %s -> %s", c.From, c.To)
	}
	if !c.At.Equal(t0.Add(time.Second)) {
		t.Fatalf("commit timestamp must be the due instant, got %s", c.At)
	}
	if c.Values.OutOfRange == nil || c.Values.OutOfRange.ExceedingValue != 110 ||
		c.Values.OutOfRange.Deadband != 5 || c.Values.OutOfRange.ExceededLimit != 100 {
		t.Fatalf("unexpected payload: %+v", c.Values.OutOfRange)
	}
	if c.Priority != 32 {
		t.Fatalf("expected to-offnormal priority 32, got %d", c.Priority)
	}
	if c.AckRequired == nil || !*c.AckRequired {
		t.Fatalf("expected ack required")
	}
}

func TestMonitor_CoarseClockCommitsAtDueInstant(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	m.Process(t0, realSample(110))

	// The scheduler was stalled; the observation arrives a minute late.
	got := m.Tick(t0.Add(time.Minute))
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	if !got[0].At.Equal(t0.Add(time.Second)) {
		t.Fatalf("late tick must still stamp the due instant, got %s", got[0].At)
	}
}

func TestMonitor_ReversionCancelsPending(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)

	m.Process(t0, realSample(110))
	if got := m.Process(t0.Add(500*time.Millisecond), realSample(50)); len(got) != 0 {
		t.Fatalf("reversion must not commit")
	}
	if got := m.Tick(t0.Add(2 * time.Second)); len(got) != 0 {
		t.Fatalf("cancelled pending must not fire")
	}
	if m.Snapshot().State != events.StateNormal {
		t.Fatalf("state changed without commit")
	}
}

func TestMonitor_PendingKeepsOriginalTimer(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)

	m.Process(t0, realSample(110))
	// Still exceeding at +800ms; delay runs from first detection but the
	// candidate value tracks the latest sample.
	m.Process(t0.Add(800*time.Millisecond), realSample(120))
	got := m.Tick(t0.Add(time.Second))
	if len(got) != 1 {
		t.Fatalf("expected commit at original due instant")
	}
	if got[0].Values.OutOfRange.ExceedingValue != 120 {
		t.Fatalf("payload must carry the latest value, got %v", got[0].Values.OutOfRange.ExceedingValue)
	}
}

func TestMonitor_HysteresisReturnTiming(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	m.Process(t0, realSample(110))
	m.Tick(t0.Add(time.Second))

	// 95 is not below high_limit - deadband: still high-limit, no timer.
	if got := m.Process(t0.Add(2*time.Second), realSample(95)); len(got) != 0 {
		t.Fatalf("95 must not start a return")
	}
	if got := m.Tick(t0.Add(10 * time.Second)); len(got) != 0 {
		t.Fatalf("no pending expected at 95")
	}

	// 94 starts the return-to-normal delay.
	t1 := t0.Add(11 * time.Second)
	m.Process(t1, realSample(94))
	if got := m.Tick(t1.Add(time.Second - time.Millisecond)); len(got) != 0 {
		t.Fatalf("return committed early")
	}
	got := m.Tick(t1.Add(time.Second))
	if len(got) != 1 || got[0].To != events.StateNormal {
		t.Fatalf("expected return to normal, got %+v", got)
	}
	if got[0].Priority != 200 {
		t.Fatalf("expected to-normal priority 200, got %d", got[0].Priority)
	}
}

func TestMonitor_TimeDelayNormalOverridesReturnDelay(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 3*time.Second)
	m.Process(t0, realSample(110))
	m.Tick(t0.Add(time.Second))

	t1 := t0.Add(5 * time.Second)
	m.Process(t1, realSample(50))
	if got := m.Tick(t1.Add(time.Second)); len(got) != 0 {
		t.Fatalf("return must use time_delay_normal")
	}
	if got := m.Tick(t1.Add(3 * time.Second)); len(got) != 1 {
		t.Fatalf("expected return after time_delay_normal")
	}
}

func TestMonitor_ZeroDelayCommitsImmediately(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, 0, 0)
	got := m.Process(t0, realSample(110))
	if len(got) != 1 || got[0].To != events.StateHighLimit {
		t.Fatalf("expected immediate commit, got %+v", got)
	}
}

func TestMonitor_FaultPreemptsPendingTransition(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	m.Process(t0, realSample(110))

	faulty := events.Sample{Value: events.RealValue(110), Reliability: events.ReliabilityOpenLoop}
	got := m.Process(t0.Add(200*time.Millisecond), faulty)
	if len(got) != 1 || got[0].To != events.StateFault {
		t.Fatalf("expected immediate fault commit, got %+v", got)
	}
	if got[0].Values.ChangeOfReliability == nil || got[0].Values.ChangeOfReliability.Reliability != events.ReliabilityOpenLoop {
		t.Fatalf("unexpected fault payload: %+v", got[0].Values.ChangeOfReliability)
	}
	if !got[0].Values.ChangeOfReliability.StatusFlags.Fault {
		t.Fatalf("fault status flag not set")
	}

	// The discarded pending transition must never fire.
	if got := m.Tick(t0.Add(5 * time.Second)); len(got) != 0 {
		t.Fatalf("pre-empted pending fired")
	}

	// Staying faulted is quiet.
	if got := m.Process(t0.Add(time.Second), faulty); len(got) != 0 {
		t.Fatalf("repeated fault sample must not re-commit")
	}
}

func TestMonitor_FaultClearReevaluatesImmediately(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	faulty := events.Sample{Value: events.RealValue(50), Reliability: events.ReliabilityNoSensor}
	m.Process(t0, faulty)

	// Fault clears while the value violates the high limit: the new
	// state commits without any delay.
	got := m.Process(t0.Add(time.Second), realSample(110))
	if len(got) != 1 {
		t.Fatalf("expected one commit, got %d", len(got))
	}
	if got[0].From != events.StateFault || got[0].To != events.StateHighLimit {
		t.Fatalf("unexpected transition %s -> %s", got[0].From, got[0].To)
	}
}

func TestMonitor_FaultClearToNormal(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	m.Process(t0, events.Sample{Value: events.RealValue(50), Reliability: events.ReliabilityNoSensor})

	got := m.Process(t0.Add(time.Second), realSample(50))
	if len(got) != 1 || got[0].To != events.StateNormal {
		t.Fatalf("expected fault -> normal, got %+v", got)
	}
}

func TestMonitor_AcknowledgeExactTimestamp(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, 0, 0)
	committed := m.Process(t0, realSample(110))
	if len(committed) != 1 {
		t.Fatalf("expected commit")
	}
	snap := m.Snapshot()
	if snap.Acked.ToOffNormal {
		t.Fatalf("new occurrence must be unacknowledged")
	}

	// Wrong timestamp: stale.
	_, err := m.Acknowledge(7, events.StateHighLimit, t0.Add(time.Millisecond), "late", t0.Add(time.Minute))
	if !errors.Is(err, events.ErrStaleAcknowledgment) {
		t.Fatalf("expected stale ack, got %v", err)
	}

	ack, err := m.Acknowledge(7, events.StateHighLimit, committed[0].At, "seen", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.NotifyType != events.NotifyAckNotification {
		t.Fatalf("expected ack notification, got %s", ack.NotifyType)
	}
	if ack.MessageText != "7: seen" {
		t.Fatalf("unexpected message: %q", ack.MessageText)
	}
	if !m.Snapshot().Acked.ToOffNormal {
		t.Fatalf("ack bit not set")
	}
}

func TestMonitor_AckBitClearsOnNewOccurrence(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, 0, 0)
	committed := m.Process(t0, realSample(110))
	if _, err := m.Acknowledge(1, events.StateHighLimit, committed[0].At, "", t0); err != nil {
		t.Fatalf("ack: %v", err)
	}
	m.Process(t0.Add(time.Second), realSample(50))

	// Second occurrence resets the ack bit.
	m.Process(t0.Add(2*time.Second), realSample(110))
	if m.Snapshot().Acked.ToOffNormal {
		t.Fatalf("ack bit must clear on a new occurrence")
	}
}

func TestMonitor_EventEnableGatesNotifyOnly(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMonitor("analog-input.2",
		algorithms.NewOutOfRange(0, 100, 5), nil,
		MonitorConfig{
			NotificationClass: 1,
			EventEnable:       events.TransitionBits{ToOffNormal: true},
		},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	got := m.Process(t0, realSample(110))
	if len(got) != 1 || !got[0].Notify {
		t.Fatalf("to-offnormal must notify, got %+v", got)
	}
	got = m.Process(t0.Add(time.Second), realSample(50))
	if len(got) != 1 {
		t.Fatalf("expected silent state change")
	}
	if got[0].Notify {
		t.Fatalf("to-normal must be suppressed")
	}
	if m.Snapshot().State != events.StateNormal {
		t.Fatalf("state must still track silently")
	}
	if m.Snapshot().Timestamps[events.TransitionToNormal].IsZero() {
		t.Fatalf("timestamp must record silent transitions")
	}
}

func TestMonitor_InhibitForcesNormalAndSuppresses(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, 0, 0)
	m.Process(t0, realSample(110))

	got := m.SetInhibited(t0.Add(time.Second), true)
	if len(got) != 1 || got[0].To != events.StateNormal {
		t.Fatalf("inhibit must force normal, got %+v", got)
	}
	if got := m.Process(t0.Add(2*time.Second), realSample(120)); len(got) != 0 {
		t.Fatalf("inhibited monitor must not evaluate")
	}

	// Clearing the inhibit re-evaluates the retained sample.
	got = m.SetInhibited(t0.Add(3*time.Second), false)
	if len(got) != 1 || got[0].To != events.StateHighLimit {
		t.Fatalf("expected re-trigger on uninhibit, got %+v", got)
	}
}

// countingEvaluator stands in for a stateful evaluator: every Evaluate
// call advances its accumulator, so paths that only need the last
// payload must not run it.
type countingEvaluator struct {
	calls int
}

func (c *countingEvaluator) EventType() events.EventType { return events.EventChangeOfState }
func (c *countingEvaluator) Validate() error             { return nil }
func (c *countingEvaluator) Evaluate(_ events.EventState, sample events.Sample) algorithms.Result {
	c.calls++
	if sample.Value.Boolean {
		return algorithms.Result{
			State: events.StateOffNormal,
			Values: events.AlgorithmPayload{ChangeOfState: &events.ChangeOfStateValues{
				NewValue:    sample.Value,
				StatusFlags: sample.StatusFlags,
			}},
		}
	}
	return algorithms.Result{State: events.StateNormal}
}

func TestMonitor_InhibitReusesLastPayloadWithoutReevaluating(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evaluator := &countingEvaluator{}
	m, err := NewMonitor("binary-input.2", evaluator, nil,
		MonitorConfig{NotificationClass: 1, EventEnable: events.AllTransitions()},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	m.Process(t0, events.Sample{Value: events.BooleanValue(true)})
	if evaluator.calls != 1 {
		t.Fatalf("expected one evaluation, got %d", evaluator.calls)
	}

	got := m.SetInhibited(t0.Add(time.Second), true)
	if len(got) != 1 || got[0].To != events.StateNormal {
		t.Fatalf("inhibit must force normal, got %+v", got)
	}
	if evaluator.calls != 1 {
		t.Fatalf("inhibit must not re-run the evaluator, got %d calls", evaluator.calls)
	}
	cos := got[0].Values.ChangeOfState
	if cos == nil || !cos.NewValue.Boolean {
		t.Fatalf("inhibit commit must carry the last evaluated payload, got %+v", got[0].Values)
	}
}

func TestMonitor_HasPending(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	if m.HasPending() {
		t.Fatalf("fresh monitor reported a pending transition")
	}

	m.Process(t0, realSample(110))
	if !m.HasPending() {
		t.Fatalf("armed delay not reported")
	}
	m.Tick(t0.Add(time.Second))
	if m.HasPending() {
		t.Fatalf("committed transition still reported pending")
	}

	m.Process(t0.Add(2*time.Second), realSample(50))
	if !m.HasPending() {
		t.Fatalf("armed return delay not reported")
	}
	m.Disable()
	if m.HasPending() {
		t.Fatalf("disabled monitor reported a pending transition")
	}
}

func TestMonitor_DisableCancelsPending(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := analogMonitor(t, time.Second, 0)
	m.Process(t0, realSample(110))
	m.Disable()
	if got := m.Tick(t0.Add(2 * time.Second)); len(got) != 0 {
		t.Fatalf("disabled monitor committed")
	}
	if got := m.Process(t0.Add(2*time.Second), realSample(110)); len(got) != 0 {
		t.Fatalf("disabled monitor evaluated")
	}
}

func TestMonitor_BinaryChangeOfStateFiveSecondDelay(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMonitor("binary-input.1",
		algorithms.NewChangeOfState([]events.Value{events.BooleanValue(true)}),
		algorithms.NewChangeOfReliability(),
		MonitorConfig{
			NotificationClass: 1,
			EventEnable:       events.AllTransitions(),
			TimeDelay:         5 * time.Second,
		},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	m.Process(t0, events.Sample{Value: events.BooleanValue(true)})
	if got := m.Tick(t0.Add(5*time.Second - time.Millisecond)); len(got) != 0 {
		t.Fatalf("committed before 5s")
	}
	got := m.Tick(t0.Add(5 * time.Second))
	if len(got) != 1 || got[0].To != events.StateOffNormal {
		t.Fatalf("expected offnormal after 5s, got %+v", got)
	}

	t1 := t0.Add(10 * time.Second)
	m.Process(t1, events.Sample{Value: events.BooleanValue(false)})
	got = m.Tick(t1.Add(5 * time.Second))
	if len(got) != 1 || got[0].To != events.StateNormal {
		t.Fatalf("expected return after 5s, got %+v", got)
	}
}

func TestMonitor_BufferReadyRenotifiesInNormal(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMonitor("trend-log.1",
		algorithms.NewBufferReady("trend-log.1", 10, 0), nil,
		MonitorConfig{
			NotificationClass: 1,
			EventEnable:       events.AllTransitions(),
			NotifyType:        events.NotifyEvent,
			TimeDelay:         time.Second,
		},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	if got := m.Process(t0, events.Sample{RecordCount: 5}); len(got) != 0 {
		t.Fatalf("below threshold must be quiet")
	}
	got := m.Process(t0.Add(time.Second), events.Sample{RecordCount: 12})
	if len(got) != 1 {
		t.Fatalf("expected buffer-ready notification")
	}
	c := got[0]
	if c.From != events.StateNormal || c.To != events.StateNormal {
		t.Fatalf("buffer-ready must stay normal, got %s -> %s", c.From, c.To)
	}
	if !c.Notify || c.Values.BufferReady == nil {
		t.Fatalf("unexpected commit: %+v", c)
	}
}

func TestMonitor_IssueAlertLeavesStateUntouched(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMonitor("device.1",
		algorithms.NewExtended(555, 2), nil,
		MonitorConfig{NotificationClass: 1, EventEnable: events.AllTransitions(), NotifyType: events.NotifyEvent},
		testClasses(),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	before := m.Snapshot()

	alert, err := m.IssueAlert(t0, []events.Value{events.RealValue(42)}, "vendor alert")
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	if alert.Values.Extended == nil || alert.Values.Extended.ExtendedType != 2 {
		t.Fatalf("unexpected alert payload: %+v", alert.Values.Extended)
	}
	after := m.Snapshot()
	if after.State != before.State || after.Timestamps != before.Timestamps || after.Acked != before.Acked {
		t.Fatalf("alert mutated the event state record")
	}
}

func TestMonitor_IssueAlertRequiresExtendedAlgorithm(t *testing.T) {
	m := analogMonitor(t, 0, 0)
	if _, err := m.IssueAlert(time.Now(), nil, ""); err == nil {
		t.Fatalf("expected error for non-extended monitor")
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	classes := testClasses()
	if _, err := NewMonitor("", algorithms.NewCommandFailure(), nil, MonitorConfig{}, classes); err == nil {
		t.Fatalf("expected error for empty object")
	}
	if _, err := NewMonitor("x.1", nil, nil, MonitorConfig{}, classes); err == nil {
		t.Fatalf("expected error for nil evaluator")
	}
	_, err := NewMonitor("x.1", &algorithms.OutOfRange{HighLimit: 1, LowLimit: 2}, nil, MonitorConfig{}, classes)
	if !errors.Is(err, events.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	_, err = NewMonitor("x.1", algorithms.NewCommandFailure(), nil, MonitorConfig{TimeDelay: -time.Second}, classes)
	if !errors.Is(err, events.ErrInvalidConfig) {
		t.Fatalf("expected invalid config for negative delay, got %v", err)
	}
	_, err = NewMonitor("x.1", algorithms.NewCommandFailure(), nil, MonitorConfig{}, stubClasses{err: events.ErrUnknownClass})
	if !errors.Is(err, events.ErrUnknownClass) {
		t.Fatalf("expected unknown class, got %v", err)
	}
}
