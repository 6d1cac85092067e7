package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"bacnet-events/internal/eventing"
	"bacnet-events/internal/events/notify"
)

// SSEBroker fans out event transitions and notifications to connected
// clients.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan sseMessage]struct{}
}

type sseMessage struct {
	event   string
	payload []byte
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan sseMessage]struct{})}
}

// Attach subscribes the broker to the bus.
func (b *SSEBroker) Attach(bus eventing.EventBus) {
	eventing.SubscribeTo(bus, func(_ context.Context, event notify.TransitionEvent) error {
		b.broadcast("transition", event)
		return nil
	})
	eventing.SubscribeTo(bus, func(_ context.Context, event notify.NotificationEvent) error {
		b.broadcast("notification", event)
		return nil
	})
}

// Subscribe registers a new client channel.
func (b *SSEBroker) Subscribe() chan sseMessage {
	if b == nil {
		return nil
	}
	ch := make(chan sseMessage, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan sseMessage) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *SSEBroker) broadcast(event string, body any) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	b.mu.Lock()
	clients := make([]chan sseMessage, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	// Slow clients drop messages rather than stall the bus.
	for _, ch := range clients {
		select {
		case ch <- sseMessage{event: event, payload: payload}:
		default:
		}
	}
}

// StreamHandler serves the SSE event stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/events/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: " + msg.event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg.payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
