package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	events "bacnet-events/internal/events/domain"
)

// TransitionRecord is one persisted event transition.
type TransitionRecord struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	FromState  events.EventState `json:"from"`
	ToState    events.EventState `json:"to"`
	Kind       string            `json:"kind"`
	OccurredAt time.Time         `json:"occurred_at"`
	EventType  events.EventType  `json:"event_type"`
	Suppressed bool              `json:"suppressed"`
}

// NotificationRecord is one persisted notification.
type NotificationRecord struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	Recipient  string            `json:"recipient"`
	ProcessID  uint32            `json:"process_id"`
	Sequence   uint32            `json:"sequence"`
	NotifyType events.NotifyType `json:"notify_type"`
	ToState    events.EventState `json:"to_state"`
	Priority   events.Priority   `json:"priority"`
	Payload    json.RawMessage   `json:"payload"`
	SentAt     time.Time         `json:"sent_at"`
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	Object string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// HistoryRepository persists event transitions and notifications.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository constructs a repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// InsertTransition appends a transition record. A zero ID is assigned.
func (r *HistoryRepository) InsertTransition(ctx context.Context, rec TransitionRecord) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if rec.Object == "" {
		return errors.New("history repo: empty object")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO event_log (
	id, object_ref, from_state, to_state, kind, occurred_at, event_type, suppressed
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)`, rec.ID, rec.Object, string(rec.FromState), string(rec.ToState), rec.Kind,
		rec.OccurredAt.UTC(), string(rec.EventType), rec.Suppressed)
	return err
}

// InsertNotification appends a notification record.
func (r *HistoryRepository) InsertNotification(ctx context.Context, rec NotificationRecord) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if rec.Object == "" {
		return errors.New("history repo: empty object")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	payload := rec.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notification_log (
	id, object_ref, recipient, process_id, sequence, notify_type, to_state, priority, payload, sent_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, rec.ID, rec.Object, rec.Recipient, rec.ProcessID, rec.Sequence,
		string(rec.NotifyType), string(rec.ToState), uint8(rec.Priority), []byte(payload), rec.SentAt.UTC())
	return err
}

// ListTransitions returns transitions matching the filter, newest first.
func (r *HistoryRepository) ListTransitions(ctx context.Context, filter HistoryFilter) ([]TransitionRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	since := filter.Since
	until := filter.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}
	object := filter.Object

	rows, err := r.db.QueryContext(ctx, `
SELECT id, object_ref, from_state, to_state, kind, occurred_at, event_type, suppressed
FROM event_log
WHERE ($1 = '' OR object_ref = $1)
  AND occurred_at >= $2 AND occurred_at <= $3
ORDER BY occurred_at DESC
LIMIT $4`, object, since.UTC(), until.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		var from, to, eventType string
		if err := rows.Scan(
			&rec.ID,
			&rec.Object,
			&from,
			&to,
			&rec.Kind,
			&rec.OccurredAt,
			&eventType,
			&rec.Suppressed,
		); err != nil {
			return nil, err
		}
		rec.FromState = events.EventState(from)
		rec.ToState = events.EventState(to)
		rec.EventType = events.EventType(eventType)
		rec.OccurredAt = rec.OccurredAt.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListNotifications returns notifications matching the filter, newest
// first.
func (r *HistoryRepository) ListNotifications(ctx context.Context, filter HistoryFilter) ([]NotificationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	since := filter.Since
	until := filter.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, object_ref, recipient, process_id, sequence, notify_type, to_state, priority, payload, sent_at
FROM notification_log
WHERE ($1 = '' OR object_ref = $1)
  AND sent_at >= $2 AND sent_at <= $3
ORDER BY sent_at DESC
LIMIT $4`, filter.Object, since.UTC(), until.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var notifyType, toState string
		var priority uint8
		var payload []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.Object,
			&rec.Recipient,
			&rec.ProcessID,
			&rec.Sequence,
			&notifyType,
			&toState,
			&priority,
			&payload,
			&rec.SentAt,
		); err != nil {
			return nil, err
		}
		rec.NotifyType = events.NotifyType(notifyType)
		rec.ToState = events.EventState(toState)
		rec.Priority = events.Priority(priority)
		rec.Payload = json.RawMessage(payload)
		rec.SentAt = rec.SentAt.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
