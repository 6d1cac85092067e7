// Package notify fans committed event transitions out to the
// notification-class recipient lists and publishes the results on the
// in-process bus, where transports, the SSE broker and the history
// recorder pick them up.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	eventapp "bacnet-events/internal/events/application"
	events "bacnet-events/internal/events/domain"
	"bacnet-events/internal/eventing"
	"bacnet-events/internal/observability/metrics"
)

// TransitionEvent is published for every committed transition,
// including ones whose notifications are suppressed by event-enable.
// Subscribers that mirror state (history, SSE) see the full stream.
type TransitionEvent struct {
	Object     string            `json:"object"`
	From       events.EventState `json:"from"`
	To         events.EventState `json:"to"`
	Kind       string            `json:"kind"`
	At         time.Time         `json:"at"`
	EventType  events.EventType  `json:"event_type"`
	Suppressed bool              `json:"suppressed"`
}

// NotificationEvent is one notification addressed to one destination.
type NotificationEvent struct {
	Destination  events.Destination  `json:"destination"`
	Notification events.Notification `json:"notification"`
}

// Dispatcher builds per-destination notifications from committed
// transitions.
type Dispatcher struct {
	classes eventapp.ClassResolver
	bus     eventing.EventBus
	device  string
	clock   eventapp.Clock
	logger  *zap.Logger
	seq     atomic.Uint32
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the default clock.
func WithClock(clock eventapp.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher. device identifies the
// initiating device in outgoing notifications.
func NewDispatcher(classes eventapp.ClassResolver, bus eventing.EventBus, device string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		classes: classes,
		bus:     bus,
		device:  device,
		clock:   eventapp.SystemClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch implements the engine's Notifier. The transition record is
// always published; notifications only when event-enable allows and the
// destination's transition and time filters match. A failing recipient
// never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, committed eventapp.Committed) {
	if d == nil || d.bus == nil {
		return
	}
	transition := TransitionEvent{
		Object:     committed.Object,
		From:       committed.From,
		To:         committed.To,
		Kind:       committed.Kind.String(),
		At:         committed.At,
		EventType:  committed.EventType,
		Suppressed: !committed.Notify,
	}
	if err := d.bus.Publish(ctx, transition); err != nil {
		d.logger.Warn("transition publish failed", zap.String("object", committed.Object), zap.Error(err))
	}
	if !committed.Notify {
		return
	}

	class, err := d.classes.Resolve(committed.ClassID)
	if err != nil {
		metrics.IncNotification(metrics.ResultError)
		d.logger.Warn("notification class unresolved",
			zap.String("object", committed.Object),
			zap.Uint32("class", committed.ClassID),
			zap.Error(err),
		)
		return
	}

	for _, dest := range class.Recipients {
		if !dest.Transitions.Has(committed.Kind) {
			continue
		}
		// Ack notifications bypass the valid-time window; the operator
		// who acked is owed the confirmation regardless of schedule.
		if committed.NotifyType != events.NotifyAckNotification && !dest.CoversTime(committed.At) {
			continue
		}
		notification := d.build(dest, class, committed)
		started := d.clock.Now()
		if err := d.bus.Publish(ctx, notification); err != nil {
			metrics.IncNotification(metrics.ResultError)
			metrics.ObserveDispatch(metrics.ResultError, d.clock.Now().Sub(started))
			d.logger.Warn("notification delivery failed",
				zap.String("object", committed.Object),
				zap.String("recipient", dest.Recipient),
				zap.Error(err),
			)
			continue
		}
		metrics.IncNotification(metrics.ResultSuccess)
		metrics.ObserveDispatch(metrics.ResultSuccess, d.clock.Now().Sub(started))
	}
}

func (d *Dispatcher) build(dest events.Destination, class events.NotificationClass, committed eventapp.Committed) NotificationEvent {
	return NotificationEvent{
		Destination: dest,
		Notification: events.Notification{
			ProcessID:         dest.ProcessID,
			InitiatingDevice:  d.device,
			EventObject:       committed.Object,
			Timestamp:         committed.At,
			NotificationClass: class.ID,
			Priority:          committed.Priority,
			Sequence:          d.seq.Add(1),
			EventType:         committed.EventType,
			MessageText:       committed.MessageText,
			NotifyType:        committed.NotifyType,
			AckRequired:       committed.AckRequired,
			FromState:         committed.From,
			ToState:           committed.To,
			EventValues:       committed.Values,
		},
	}
}
