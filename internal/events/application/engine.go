package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"bacnet-events/internal/events/algorithms"
	events "bacnet-events/internal/events/domain"
	"bacnet-events/internal/objects"
	"bacnet-events/internal/observability/metrics"
)

// Notifier dispatches committed transitions and ack notifications.
// Delivery is fire-and-forget relative to the state machine.
type Notifier interface {
	Dispatch(ctx context.Context, committed Committed)
}

// PropertyStore is the engine's view of the object/property store.
type PropertyStore interface {
	Has(ref objects.ObjectRef) bool
	Read(ref objects.ObjectRef, property objects.Property) (any, error)
	WriteInternal(ref objects.ObjectRef, property objects.Property, value any)
}

// ValueFetcher fetches polled property values, locally or across the
// network.
type ValueFetcher interface {
	Fetch(ctx context.Context, ref objects.PropertyRef) (events.Value, error)
}

type monitorEntry struct {
	ref        objects.ObjectRef
	monitor    *Monitor
	eventType  events.EventType
	enrollment *objects.PropertyRef
}

// Engine owns the monitors for all reporting-enabled objects and routes
// property changes, poll samples, timer expirations and acknowledgments
// into them. Cross-object evaluation may run concurrently; each object
// serializes on its monitor lock.
type Engine struct {
	classes  ClassResolver
	store    PropertyStore
	notifier Notifier
	clock    Clock
	logger   *zap.Logger
	tick     time.Duration

	mu       sync.RWMutex
	monitors map[objects.ObjectRef]*monitorEntry
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithClock assigns a clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTickInterval overrides the pending-transition check interval.
func WithTickInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.tick = interval
		}
	}
}

// NewEngine constructs an engine.
func NewEngine(classes ClassResolver, store PropertyStore, notifier Notifier, opts ...EngineOption) (*Engine, error) {
	if classes == nil {
		return nil, errors.New("events: nil class resolver")
	}
	if store == nil {
		return nil, errors.New("events: nil property store")
	}
	if notifier == nil {
		return nil, errors.New("events: nil notifier")
	}
	engine := &Engine{
		classes:  classes,
		store:    store,
		notifier: notifier,
		clock:    SystemClock{},
		logger:   zap.NewNop(),
		tick:     100 * time.Millisecond,
		monitors: make(map[objects.ObjectRef]*monitorEntry),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// EnableIntrinsicReporting starts event reporting on an object that
// evaluates its own properties on every write.
func (e *Engine) EnableIntrinsicReporting(ref objects.ObjectRef, evaluator algorithms.Evaluator, fault algorithms.FaultDetector, cfg MonitorConfig) error {
	if !e.store.Has(ref) {
		return fmt.Errorf("%w: %s", events.ErrNotFound, ref)
	}
	return e.register(ref, evaluator, fault, cfg, nil)
}

// EnableAlgorithmicReporting starts event-enrollment style reporting:
// the monitored value is a property of a different object, re-fetched
// on every poll tick. A missing fault detector defaults to
// change-of-reliability so fetch failures surface as faults.
func (e *Engine) EnableAlgorithmicReporting(ref objects.ObjectRef, monitored objects.PropertyRef, evaluator algorithms.Evaluator, fault algorithms.FaultDetector, cfg MonitorConfig) error {
	if fault == nil {
		fault = algorithms.NewChangeOfReliability()
	}
	return e.register(ref, evaluator, fault, cfg, &monitored)
}

func (e *Engine) register(ref objects.ObjectRef, evaluator algorithms.Evaluator, fault algorithms.FaultDetector, cfg MonitorConfig, enrollment *objects.PropertyRef) error {
	monitor, err := NewMonitor(ref.String(), evaluator, fault, cfg, e.classes)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if _, ok := e.monitors[ref]; ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", events.ErrAlreadyEnabled, ref)
	}
	entry := &monitorEntry{ref: ref, monitor: monitor, eventType: evaluator.EventType(), enrollment: enrollment}
	e.monitors[ref] = entry
	e.mu.Unlock()

	e.mirror(entry)
	e.logger.Info("event reporting enabled",
		zap.String("object", ref.String()),
		zap.String("event_type", string(entry.eventType)),
	)
	return nil
}

// DisableReporting stops reporting and cancels any pending transition.
func (e *Engine) DisableReporting(ref objects.ObjectRef) {
	e.mu.Lock()
	entry := e.monitors[ref]
	delete(e.monitors, ref)
	e.mu.Unlock()
	if entry == nil {
		return
	}
	entry.monitor.Disable()
	e.logger.Info("event reporting disabled", zap.String("object", ref.String()))
}

// OnPropertyChanged is invoked by the property store after every
// committed external write. Irrelevant properties are ignored.
func (e *Engine) OnPropertyChanged(ref objects.ObjectRef, property objects.Property, _, newValue any) {
	entry := e.entry(ref)
	if entry == nil || entry.enrollment != nil {
		return
	}
	now := e.clock.Now()

	switch property {
	case objects.PropPresentValue, objects.PropReliability, objects.PropStatusFlags,
		objects.PropFeedbackValue, objects.PropMode,
		objects.PropRecordCount, objects.PropTotalRecordCount:
		sample, err := e.buildSample(entry)
		if err != nil {
			e.logger.Warn("sample build failed", zap.String("object", ref.String()), zap.Error(err))
			return
		}
		e.commitAll(context.Background(), entry, entry.monitor.Process(now, sample))

	case objects.PropLimitEnable:
		limits, ok := newValue.(events.LimitEnable)
		if !ok {
			return
		}
		committed := entry.monitor.UpdateEvaluator(now, func(ev algorithms.Evaluator) {
			if outOfRange, ok := ev.(*algorithms.OutOfRange); ok {
				outOfRange.SetLimitEnable(limits.LowLimitEnable, limits.HighLimitEnable)
			}
		})
		e.commitAll(context.Background(), entry, committed)

	case objects.PropEventAlgorithmInhibit:
		inhibited, ok := newValue.(bool)
		if !ok {
			return
		}
		e.commitAll(context.Background(), entry, entry.monitor.SetInhibited(now, inhibited))
	}
}

// Acknowledge records an operator acknowledgment. Internal and network
// acks follow this same path.
func (e *Engine) Acknowledge(ctx context.Context, ref objects.ObjectRef, processID uint32, toState events.EventState, eventTimestamp time.Time, note string, ackTime time.Time) error {
	entry := e.entry(ref)
	if entry == nil {
		return fmt.Errorf("%w: %s", events.ErrNotFound, ref)
	}
	committed, err := entry.monitor.Acknowledge(processID, toState, eventTimestamp, note, ackTime)
	if err != nil {
		metrics.IncAck("rejected")
		return err
	}
	metrics.IncAck("accepted")
	e.mirror(entry)
	e.notifier.Dispatch(ctx, committed)
	return nil
}

// IssueAlert dispatches an extended (vendor) alert for the object.
func (e *Engine) IssueAlert(ctx context.Context, ref objects.ObjectRef, parameters []events.Value, message string) error {
	entry := e.entry(ref)
	if entry == nil {
		return fmt.Errorf("%w: %s", events.ErrNotFound, ref)
	}
	committed, err := entry.monitor.IssueAlert(e.clock.Now(), parameters, message)
	if err != nil {
		return err
	}
	e.notifier.Dispatch(ctx, committed)
	return nil
}

// PollEnrollments fetches every enrollment's monitored value and feeds
// it through the pipeline. Fetch failures become synthetic fault
// samples; polling never stops, so fault clearing is detected.
func (e *Engine) PollEnrollments(ctx context.Context, fetcher ValueFetcher) {
	if fetcher == nil {
		return
	}
	now := e.clock.Now()
	for _, entry := range e.entries() {
		if entry.enrollment == nil {
			continue
		}
		var sample events.Sample
		value, err := fetcher.Fetch(ctx, *entry.enrollment)
		if err != nil {
			rel := events.ReliabilityCommunicationFailure
			if errors.Is(err, objects.ErrUnknownObject) || errors.Is(err, objects.ErrUnknownProperty) {
				rel = events.ReliabilityConfigurationError
			}
			sample = events.Sample{
				Reliability: rel,
				StatusFlags: events.StatusFlags{Fault: true},
			}
			metrics.IncPoll("error")
			e.logger.Warn("enrollment poll failed",
				zap.String("object", entry.ref.String()),
				zap.String("monitored", entry.enrollment.String()),
				zap.Error(err),
			)
		} else {
			sample = events.Sample{Value: value, Reliability: events.ReliabilityNoFaultDetected}
			metrics.IncPoll("success")
		}
		e.commitAll(ctx, entry, entry.monitor.Process(now, sample))
	}
}

// TickOnce commits all due pending transitions.
func (e *Engine) TickOnce(ctx context.Context) {
	now := e.clock.Now()
	pending := 0
	for _, entry := range e.entries() {
		e.commitAll(ctx, entry, entry.monitor.Tick(now))
		if entry.monitor.HasPending() {
			pending++
		}
	}
	metrics.SetPendingTransitions(pending)
}

// Run drives the pending-transition scheduler until the context ends.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TickOnce(ctx)
		}
	}
}

// AlarmSummaryEntry is one row of the alarm summary.
type AlarmSummaryEntry struct {
	Object string                `json:"object"`
	State  events.EventState     `json:"state"`
	Acked  events.TransitionBits `json:"acked_transitions"`
}

// AlarmSummary lists objects that are not normal and whose class
// requires an ack for their current state.
func (e *Engine) AlarmSummary() []AlarmSummaryEntry {
	var out []AlarmSummaryEntry
	for _, snap := range e.EventInformation() {
		if snap.State == events.StateNormal {
			continue
		}
		class, err := e.classes.Resolve(snap.ClassID)
		if err != nil || !class.AckRequired.Has(events.KindOf(snap.State)) {
			continue
		}
		out = append(out, AlarmSummaryEntry{Object: snap.Object, State: snap.State, Acked: snap.Acked})
	}
	return out
}

// EventInformation returns a snapshot of every event state record,
// sorted by object reference.
func (e *Engine) EventInformation() []Snapshot {
	entries := e.entries()
	out := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.monitor.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object < out[j].Object })
	return out
}

// AckFilter selects entries by acknowledgment status.
type AckFilter string

const (
	AckFilterAll      AckFilter = "all"
	AckFilterAcked    AckFilter = "acked"
	AckFilterNotAcked AckFilter = "not-acked"
)

// EnrollmentFilter narrows the enrollment summary.
type EnrollmentFilter struct {
	Ack         AckFilter
	State       *events.EventState
	EventType   *events.EventType
	MinPriority *events.Priority
	MaxPriority *events.Priority
	ClassID     *uint32
}

// EnrollmentEntry is one row of the enrollment summary.
type EnrollmentEntry struct {
	Object    string            `json:"object"`
	EventType events.EventType  `json:"event_type"`
	State     events.EventState `json:"state"`
	Priority  events.Priority   `json:"priority"`
	ClassID   uint32            `json:"notification_class"`
}

// EnrollmentSummary lists reporting-enabled objects matching the filter.
func (e *Engine) EnrollmentSummary(filter EnrollmentFilter) []EnrollmentEntry {
	var out []EnrollmentEntry
	for _, snap := range e.EventInformation() {
		priority := snap.Priorities.For(events.KindOf(snap.State))
		switch filter.Ack {
		case AckFilterAcked:
			if !snap.Acked.All() {
				continue
			}
		case AckFilterNotAcked:
			if snap.Acked.All() {
				continue
			}
		}
		if filter.State != nil && snap.State != *filter.State {
			continue
		}
		if filter.EventType != nil && snap.EventType != *filter.EventType {
			continue
		}
		if filter.MinPriority != nil && priority < *filter.MinPriority {
			continue
		}
		if filter.MaxPriority != nil && priority > *filter.MaxPriority {
			continue
		}
		if filter.ClassID != nil && snap.ClassID != *filter.ClassID {
			continue
		}
		out = append(out, EnrollmentEntry{
			Object:    snap.Object,
			EventType: snap.EventType,
			State:     snap.State,
			Priority:  priority,
			ClassID:   snap.ClassID,
		})
	}
	return out
}

func (e *Engine) entry(ref objects.ObjectRef) *monitorEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.monitors[ref]
}

func (e *Engine) entries() []*monitorEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*monitorEntry, 0, len(e.monitors))
	for _, entry := range e.monitors {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].monitor.Object() < out[j].monitor.Object() })
	return out
}

func (e *Engine) commitAll(ctx context.Context, entry *monitorEntry, committed []Committed) {
	for _, c := range committed {
		e.mirror(entry)
		metrics.IncTransition(c.Kind.String())
		e.logger.Info("event transition",
			zap.String("object", c.Object),
			zap.String("from", string(c.From)),
			zap.String("to", string(c.To)),
			zap.String("kind", c.Kind.String()),
			zap.Bool("notify", c.Notify),
		)
		e.notifier.Dispatch(ctx, c)
	}
}

// mirror writes the engine-owned reporting properties back into the
// property store.
func (e *Engine) mirror(entry *monitorEntry) {
	snap := entry.monitor.Snapshot()
	e.store.WriteInternal(entry.ref, objects.PropEventState, snap.State)
	e.store.WriteInternal(entry.ref, objects.PropStatusFlags, events.StatusFlags{
		InAlarm: snap.State.IsOffNormal(),
		Fault:   snap.State == events.StateFault,
	})
	e.store.WriteInternal(entry.ref, objects.PropAckedTransitions, snap.Acked)
	e.store.WriteInternal(entry.ref, objects.PropEventTimeStamps, snap.Timestamps)
}

func (e *Engine) buildSample(entry *monitorEntry) (events.Sample, error) {
	ref := entry.ref
	var sample events.Sample

	if raw, err := e.store.Read(ref, objects.PropPresentValue); err == nil {
		if value, ok := raw.(events.Value); ok {
			sample.Value = value
		}
	}
	if raw, err := e.store.Read(ref, objects.PropStatusFlags); err == nil {
		if flags, ok := raw.(events.StatusFlags); ok {
			sample.StatusFlags = flags
		}
	}
	if raw, err := e.store.Read(ref, objects.PropReliability); err == nil {
		if rel, ok := raw.(events.Reliability); ok {
			sample.Reliability = rel
		}
	}

	switch entry.eventType {
	case events.EventCommandFailure:
		sample.Command = sample.Value
		feedback, err := e.store.Read(ref, objects.PropFeedbackValue)
		if err != nil {
			return sample, fmt.Errorf("events: %s missing feedback value: %w", ref, err)
		}
		if value, ok := feedback.(events.Value); ok {
			sample.Feedback = value
		}
	case events.EventChangeOfLifeSafety:
		if raw, err := e.store.Read(ref, objects.PropMode); err == nil {
			if mode, ok := raw.(events.LifeSafetyMode); ok {
				sample.Mode = mode
			}
		}
	case events.EventBufferReady:
		raw, err := e.store.Read(ref, objects.PropTotalRecordCount)
		if err != nil {
			return sample, fmt.Errorf("events: %s missing record count: %w", ref, err)
		}
		if value, ok := raw.(events.Value); ok {
			sample.RecordCount = value.Unsigned
		}
	}
	return sample, nil
}
