// Package http exposes the event engine over a JSON API: summary
// queries, acknowledgment, alert injection, history and exports.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bacnet-events/internal/audit"
	"bacnet-events/internal/auth"
	eventapp "bacnet-events/internal/events/application"
	events "bacnet-events/internal/events/domain"
	"bacnet-events/internal/events/infrastructure/postgres"
	"bacnet-events/internal/objects"
	"bacnet-events/internal/observability/metrics"
)

const timeLayout = time.RFC3339Nano

// HistoryReader reads persisted transition and notification history.
type HistoryReader interface {
	ListTransitions(ctx context.Context, filter postgres.HistoryFilter) ([]postgres.TransitionRecord, error)
	ListNotifications(ctx context.Context, filter postgres.HistoryFilter) ([]postgres.NotificationRecord, error)
}

// Handler provides the event HTTP endpoints.
type Handler struct {
	engine   *eventapp.Engine
	history  HistoryReader
	auditLog audit.Logger
}

// NewHandler constructs a handler. history may be nil when no database
// is configured; history endpoints then return 503.
func NewHandler(engine *eventapp.Engine, history HistoryReader) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("events handler: nil engine")
	}
	return &Handler{engine: engine, history: history}, nil
}

// SetAuditLogger enables best-effort audit logging of operator actions.
func (h *Handler) SetAuditLogger(logger audit.Logger) {
	h.auditLog = logger
}

func (h *Handler) recordAudit(r *http.Request, action, object string, metadata any) {
	if h.auditLog == nil {
		return
	}
	raw, _ := json.Marshal(metadata)
	_ = h.auditLog.Log(r.Context(), audit.Entry{
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    action,
		Object:    object,
		Metadata:  raw,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}

// ServeHTTP handles /api/v1/events and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/events/alarm-summary":
		h.requireGet(w, r, h.handleAlarmSummary)
	case r.URL.Path == "/api/v1/events/information":
		h.requireGet(w, r, h.handleInformation)
	case r.URL.Path == "/api/v1/events/enrollment-summary":
		h.requireGet(w, r, h.handleEnrollmentSummary)
	case r.URL.Path == "/api/v1/events/history":
		h.requireGet(w, r, h.handleHistory)
	case r.URL.Path == "/api/v1/events/history/notifications":
		h.requireGet(w, r, h.handleNotificationHistory)
	case r.URL.Path == "/api/v1/events/history/export":
		h.requireGet(w, r, h.handleExport)
	case strings.HasPrefix(r.URL.Path, "/api/v1/events/"):
		h.handleAction(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) requireGet(w http.ResponseWriter, r *http.Request, fn func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

func (h *Handler) handleAlarmSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.AlarmSummary())
}

func (h *Handler) handleInformation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.EventInformation())
}

func (h *Handler) handleEnrollmentSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEnrollmentFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.engine.EnrollmentSummary(filter))
}

type ackRequest struct {
	ProcessID      uint32 `json:"process_id"`
	ToState        string `json:"to_state"`
	EventTimestamp string `json:"event_timestamp"`
	Note           string `json:"note"`
}

type alertRequest struct {
	Parameters []events.Value `json:"parameters"`
	Message    string         `json:"message"`
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	ref, err := objects.ParseRef(parts[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "ack":
		h.handleAck(w, r, ref)
	case "alert":
		h.handleAlert(w, r, ref)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request, ref objects.ObjectRef) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	eventTimestamp, err := time.Parse(timeLayout, req.EventTimestamp)
	if err != nil {
		http.Error(w, "event_timestamp must be RFC3339", http.StatusBadRequest)
		return
	}
	err = h.engine.Acknowledge(r.Context(), ref, req.ProcessID,
		events.EventState(req.ToState), eventTimestamp.UTC(), req.Note, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, events.ErrStaleAcknowledgment):
			http.Error(w, "acknowledgment does not match the current occurrence", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	h.recordAudit(r, "acknowledge", ref.String(), req)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAlert(w http.ResponseWriter, r *http.Request, ref objects.ObjectRef) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.engine.IssueAlert(r.Context(), ref, req.Parameters, req.Message); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.recordAudit(r, "alert", ref.String(), req)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	filter, err := parseHistoryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.history.ListTransitions(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleNotificationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	filter, err := parseHistoryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.history.ListNotifications(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	filter, err := parseHistoryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.history.ListTransitions(r.Context(), filter)
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var (
		body        []byte
		contentType string
		filename    string
	)
	switch format {
	case "xlsx":
		body, err = BuildHistoryXLSX(list)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "event-history.xlsx"
	case "pdf":
		body, err = BuildHistoryPDF(list)
		contentType = "application/pdf"
		filename = "event-history.pdf"
	default:
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.IncExport(format, metrics.ResultSuccess)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	_, _ = w.Write(body)
}

func parseEnrollmentFilter(r *http.Request) (eventapp.EnrollmentFilter, error) {
	query := r.URL.Query()
	filter := eventapp.EnrollmentFilter{Ack: eventapp.AckFilterAll}

	switch ack := query.Get("ack"); ack {
	case "", "all":
	case "acked":
		filter.Ack = eventapp.AckFilterAcked
	case "not-acked":
		filter.Ack = eventapp.AckFilterNotAcked
	default:
		return filter, errors.New("ack must be all, acked or not-acked")
	}
	if raw := query.Get("state"); raw != "" {
		state := events.EventState(raw)
		if !state.Valid() {
			return filter, errors.New("invalid state filter")
		}
		filter.State = &state
	}
	if raw := query.Get("event_type"); raw != "" {
		eventType := events.EventType(raw)
		filter.EventType = &eventType
	}
	if raw := query.Get("min_priority"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return filter, errors.New("min_priority must be 0-255")
		}
		priority := events.Priority(value)
		filter.MinPriority = &priority
	}
	if raw := query.Get("max_priority"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return filter, errors.New("max_priority must be 0-255")
		}
		priority := events.Priority(value)
		filter.MaxPriority = &priority
	}
	if raw := query.Get("class"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, errors.New("class must be an unsigned integer")
		}
		classID := uint32(value)
		filter.ClassID = &classID
	}
	return filter, nil
}

func parseHistoryFilter(r *http.Request) (postgres.HistoryFilter, error) {
	query := r.URL.Query()
	filter := postgres.HistoryFilter{Object: query.Get("object")}

	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("from must be RFC3339")
		}
		filter.Since = parsed.UTC()
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("to must be RFC3339")
		}
		filter.Until = parsed.UTC()
	}
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = value
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
