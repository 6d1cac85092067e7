package application

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"bacnet-events/internal/events/algorithms"
	events "bacnet-events/internal/events/domain"
)

// ClassResolver resolves notification classes by id. Implementations
// return read-only snapshots; the engine never mutates a class.
type ClassResolver interface {
	Resolve(classID uint32) (events.NotificationClass, error)
}

// MonitorConfig is the reporting configuration shared by all algorithms.
type MonitorConfig struct {
	NotificationClass uint32
	EventEnable       events.TransitionBits
	NotifyType        events.NotifyType
	TimeDelay         time.Duration
	// TimeDelayNormal debounces the return to normal; zero falls back
	// to TimeDelay.
	TimeDelayNormal time.Duration
}

// Committed is one committed state transition (or ack notification),
// captured under the monitor lock and dispatched outside it.
type Committed struct {
	Object      string
	From        events.EventState
	To          events.EventState
	Kind        events.TransitionKind
	At          time.Time
	EventType   events.EventType
	NotifyType  events.NotifyType
	Notify      bool
	Priority    events.Priority
	AckRequired *bool
	ClassID     uint32
	MessageText string
	Values      events.AlgorithmPayload
}

type pendingTransition struct {
	target  events.EventState
	armedAt time.Time
	dueAt   time.Time
	values  events.AlgorithmPayload
}

// Monitor owns the event state of one monitored object and sequences
// evaluator results through the debounce and fault-priority rules. All
// methods serialize on the monitor's lock.
type Monitor struct {
	mu sync.Mutex

	object    string
	evaluator algorithms.Evaluator
	fault     algorithms.FaultDetector
	cfg       MonitorConfig
	classes   ClassResolver

	state       events.EventState
	timestamps  [3]time.Time
	acked       events.TransitionBits
	priorities  events.Priorities
	pending     *pendingTransition
	lastSample  events.Sample
	haveSample  bool
	// lastValues is the payload of the most recent evaluator run,
	// reused on paths that must not run the evaluator again (stateful
	// evaluators advance their accumulators on every Evaluate call).
	lastValues  events.AlgorithmPayload
	inhibited   bool
	enabled     bool
	reliability events.Reliability
}

// NewMonitor validates the configuration and constructs a monitor in
// the normal state. Configuration errors fail fast; no partial state is
// created.
func NewMonitor(object string, evaluator algorithms.Evaluator, fault algorithms.FaultDetector, cfg MonitorConfig, classes ClassResolver) (*Monitor, error) {
	if object == "" {
		return nil, errors.New("events: empty object reference")
	}
	if evaluator == nil {
		return nil, errors.New("events: nil evaluator")
	}
	if classes == nil {
		return nil, errors.New("events: nil class resolver")
	}
	if err := evaluator.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrInvalidConfig, err)
	}
	if cfg.TimeDelay < 0 || cfg.TimeDelayNormal < 0 {
		return nil, fmt.Errorf("%w: negative time delay", events.ErrInvalidConfig)
	}
	if _, err := classes.Resolve(cfg.NotificationClass); err != nil {
		return nil, fmt.Errorf("%w: class %d", events.ErrUnknownClass, cfg.NotificationClass)
	}
	if cfg.NotifyType == "" {
		cfg.NotifyType = events.NotifyAlarm
	}
	return &Monitor{
		object:      object,
		evaluator:   evaluator,
		fault:       fault,
		cfg:         cfg,
		classes:     classes,
		state:       events.StateNormal,
		acked:       events.AllTransitions(),
		enabled:     true,
		reliability: events.ReliabilityNoFaultDetected,
	}, nil
}

// Object returns the monitored object reference.
func (m *Monitor) Object() string { return m.object }

// Process feeds one candidate sample through the state machine and
// returns the transitions committed by it.
func (m *Monitor) Process(now time.Time, sample events.Sample) []Committed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return nil
	}
	m.lastSample = sample
	m.haveSample = true
	if m.inhibited {
		return nil
	}
	return m.evaluateLocked(now, sample)
}

// Tick commits a due pending transition. Idempotent under arbitrarily
// coarse clock advancement: the commit timestamp is the armed due-at
// instant, not the observation time.
func (m *Monitor) Tick(now time.Time) []Committed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.pending == nil || now.Before(m.pending.dueAt) {
		return nil
	}
	p := m.pending
	m.pending = nil
	return []Committed{m.commitLocked(p.target, p.dueAt, p.values)}
}

// HasPending reports whether a delayed transition is armed.
func (m *Monitor) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled && m.pending != nil
}

// Reevaluate re-runs the state machine against the last sample, used
// after configuration changes.
func (m *Monitor) Reevaluate(now time.Time) []Committed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.inhibited || !m.haveSample {
		return nil
	}
	return m.evaluateLocked(now, m.lastSample)
}

// UpdateEvaluator mutates the evaluator configuration under the monitor
// lock and re-evaluates the last sample.
func (m *Monitor) UpdateEvaluator(now time.Time, fn func(algorithms.Evaluator)) []Committed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != nil {
		fn(m.evaluator)
	}
	if !m.enabled || m.inhibited || !m.haveSample {
		return nil
	}
	return m.evaluateLocked(now, m.lastSample)
}

// SetInhibited toggles event-algorithm-inhibit. Inhibiting suppresses
// evaluation and forces off-normal states back to normal immediately;
// clearing re-arms evaluation from the last sample under the normal
// delay rules.
func (m *Monitor) SetInhibited(now time.Time, inhibited bool) []Committed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.inhibited == inhibited {
		return nil
	}
	m.inhibited = inhibited
	m.pending = nil
	if inhibited {
		if m.state.IsOffNormal() {
			return []Committed{m.commitLocked(events.StateNormal, now, m.lastValues)}
		}
		return nil
	}
	if m.haveSample {
		return m.evaluateLocked(now, m.lastSample)
	}
	return nil
}

// Disable stops evaluation and cancels any pending transition. A timer
// firing concurrently observes the disabled flag before committing.
func (m *Monitor) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
	m.pending = nil
}

// Acknowledge records an acknowledgment for the given transition kind
// and returns the ack notification to dispatch. The event timestamp
// must exactly match the recorded occurrence.
func (m *Monitor) Acknowledge(processID uint32, toState events.EventState, eventTimestamp time.Time, note string, ackTime time.Time) (Committed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !toState.Valid() {
		return Committed{}, fmt.Errorf("events: invalid ack state %q", toState)
	}
	kind := events.KindOf(toState)
	if m.timestamps[kind].IsZero() || !m.timestamps[kind].Equal(eventTimestamp) {
		return Committed{}, events.ErrStaleAcknowledgment
	}
	m.acked = m.acked.Set(kind, true)
	return Committed{
		Object:      m.object,
		To:          toState,
		Kind:        kind,
		At:          ackTime,
		EventType:   m.evaluator.EventType(),
		NotifyType:  events.NotifyAckNotification,
		Notify:      true,
		Priority:    m.priorities.For(kind),
		ClassID:     m.cfg.NotificationClass,
		MessageText: fmt.Sprintf("%d: %s", processID, note),
	}, nil
}

// IssueAlert returns a notification-only record for an externally
// triggered extended alert. The event state, timestamps and
// acked-transitions are untouched.
func (m *Monitor) IssueAlert(now time.Time, parameters []events.Value, message string) (Committed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ext, ok := m.evaluator.(*algorithms.Extended)
	if !ok {
		return Committed{}, errors.New("events: object has no extended algorithm")
	}
	kind := events.KindOf(m.state)
	priority := events.Priority(0)
	if class, err := m.classes.Resolve(m.cfg.NotificationClass); err == nil {
		priority = class.Priorities.For(kind)
	}
	return Committed{
		Object:      m.object,
		From:        m.state,
		To:          m.state,
		Kind:        kind,
		At:          now,
		EventType:   m.evaluator.EventType(),
		NotifyType:  events.NotifyEvent,
		Notify:      m.cfg.EventEnable.Has(kind),
		Priority:    priority,
		ClassID:     m.cfg.NotificationClass,
		MessageText: message,
		Values:      ext.AlertValues(parameters),
	}, nil
}

// Snapshot is a point-in-time copy of the event state record.
type Snapshot struct {
	Object      string                `json:"object"`
	EventType   events.EventType      `json:"event_type"`
	State       events.EventState     `json:"state"`
	Timestamps  [3]time.Time          `json:"event_timestamps"`
	Acked       events.TransitionBits `json:"acked_transitions"`
	EventEnable events.TransitionBits `json:"event_enable"`
	NotifyType  events.NotifyType     `json:"notify_type"`
	ClassID     uint32                `json:"notification_class"`
	Priorities  events.Priorities     `json:"priorities"`
	Reliability events.Reliability    `json:"reliability"`
	Inhibited   bool                  `json:"inhibited"`
	Pending     events.EventState     `json:"pending,omitempty"`
}

// Snapshot copies the current record.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Object:      m.object,
		EventType:   m.evaluator.EventType(),
		State:       m.state,
		Timestamps:  m.timestamps,
		Acked:       m.acked,
		EventEnable: m.cfg.EventEnable,
		NotifyType:  m.cfg.NotifyType,
		ClassID:     m.cfg.NotificationClass,
		Priorities:  m.priorities,
		Reliability: m.reliability,
		Inhibited:   m.inhibited,
	}
	if m.pending != nil {
		snap.Pending = m.pending.target
	}
	return snap
}

func (m *Monitor) evaluateLocked(now time.Time, sample events.Sample) []Committed {
	if m.fault != nil {
		rel, faulted := m.fault.Detect(sample)
		if faulted {
			m.reliability = rel
			if m.state != events.StateFault {
				// Fault entry pre-empts and discards any pending
				// transition.
				m.pending = nil
				return []Committed{m.commitLocked(events.StateFault, now, faultValues(rel, sample))}
			}
			return nil
		}
		if m.state == events.StateFault {
			// Fault exit commits immediately to whatever the event
			// algorithm says about the live sample.
			m.reliability = events.ReliabilityNoFaultDetected
			res := m.evaluator.Evaluate(m.state, sample)
			m.lastValues = res.Values
			return []Committed{m.commitLocked(res.State, now, res.Values)}
		}
		m.reliability = events.ReliabilityNoFaultDetected
	}

	res := m.evaluator.Evaluate(m.state, sample)
	m.lastValues = res.Values
	if res.State == m.state {
		if res.Renotify {
			m.pending = nil
			return []Committed{m.commitLocked(res.State, now, res.Values)}
		}
		// Condition reverted (or never left); any armed delay is void.
		m.pending = nil
		return nil
	}

	if res.Immediate {
		m.pending = nil
		return []Committed{m.commitLocked(res.State, now, res.Values)}
	}

	delay := m.cfg.TimeDelay
	if res.State == events.StateNormal && m.cfg.TimeDelayNormal > 0 {
		delay = m.cfg.TimeDelayNormal
	}
	if delay <= 0 {
		m.pending = nil
		return []Committed{m.commitLocked(res.State, now, res.Values)}
	}

	if m.pending != nil && m.pending.target == res.State {
		// Delay runs from first detection; only the candidate value
		// follows the latest sample.
		m.pending.values = res.Values
		return nil
	}
	m.pending = &pendingTransition{
		target:  res.State,
		armedAt: now,
		dueAt:   now.Add(delay),
		values:  res.Values,
	}
	return nil
}

func (m *Monitor) commitLocked(target events.EventState, at time.Time, values events.AlgorithmPayload) Committed {
	kind := events.KindOf(target)
	from := m.state
	m.state = target
	if at.After(m.timestamps[kind]) {
		m.timestamps[kind] = at
	}

	ackRequired := true
	priority := events.Priority(0)
	class, err := m.classes.Resolve(m.cfg.NotificationClass)
	if err == nil {
		ackRequired = class.AckRequired.Has(kind)
		priority = class.Priorities.For(kind)
		m.priorities = class.Priorities
	}
	// A new occurrence is unacknowledged unless the class never
	// requires an ack for this kind.
	m.acked = m.acked.Set(kind, !ackRequired)

	ar := ackRequired
	return Committed{
		Object:      m.object,
		From:        from,
		To:          target,
		Kind:        kind,
		At:          at,
		EventType:   m.evaluator.EventType(),
		NotifyType:  m.cfg.NotifyType,
		Notify:      m.cfg.EventEnable.Has(kind),
		Priority:    priority,
		AckRequired: &ar,
		ClassID:     m.cfg.NotificationClass,
		Values:      values,
	}
}

func faultValues(rel events.Reliability, sample events.Sample) events.AlgorithmPayload {
	flags := sample.StatusFlags
	flags.Fault = true
	return events.AlgorithmPayload{
		ChangeOfReliability: &events.ChangeOfReliabilityValues{
			Reliability: rel,
			StatusFlags: flags,
		},
	}
}
