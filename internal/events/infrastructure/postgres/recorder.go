package postgres

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bacnet-events/internal/eventing"
	"bacnet-events/internal/events/notify"
)

// Recorder subscribes to the bus and appends every transition and
// notification to the history tables. Insert failures are logged and
// swallowed so persistence problems never stall dispatch.
type Recorder struct {
	repo   *HistoryRepository
	logger *zap.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(repo *HistoryRepository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Attach subscribes the recorder to the bus.
func (r *Recorder) Attach(bus eventing.EventBus) {
	eventing.SubscribeTo(bus, func(ctx context.Context, event notify.TransitionEvent) error {
		rec := TransitionRecord{
			Object:     event.Object,
			FromState:  event.From,
			ToState:    event.To,
			Kind:       event.Kind,
			OccurredAt: event.At,
			EventType:  event.EventType,
			Suppressed: event.Suppressed,
		}
		if err := r.repo.InsertTransition(ctx, rec); err != nil {
			r.logger.Warn("transition history insert failed", zap.String("object", event.Object), zap.Error(err))
		}
		return nil
	})
	eventing.SubscribeTo(bus, func(ctx context.Context, event notify.NotificationEvent) error {
		payload, err := json.Marshal(event.Notification)
		if err != nil {
			payload = []byte("{}")
		}
		n := event.Notification
		rec := NotificationRecord{
			Object:     n.EventObject,
			Recipient:  event.Destination.Recipient,
			ProcessID:  n.ProcessID,
			Sequence:   n.Sequence,
			NotifyType: n.NotifyType,
			ToState:    n.ToState,
			Priority:   n.Priority,
			Payload:    payload,
			SentAt:     n.Timestamp,
		}
		if err := r.repo.InsertNotification(ctx, rec); err != nil {
			r.logger.Warn("notification history insert failed", zap.String("object", n.EventObject), zap.Error(err))
		}
		return nil
	})
}
