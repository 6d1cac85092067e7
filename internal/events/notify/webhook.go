package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bacnet-events/internal/eventing"
)

// WebhookTransport delivers notifications over HTTP POST. Recipients
// whose address starts with http:// or https:// are handled; everything
// else is left to other transports.
type WebhookTransport struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebhookTransport constructs a transport.
func NewWebhookTransport(logger *zap.Logger) *WebhookTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookTransport{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Attach subscribes the transport to notification events on the bus.
func (t *WebhookTransport) Attach(bus eventing.EventBus) {
	eventing.SubscribeTo(bus, func(_ context.Context, event NotificationEvent) error {
		return t.deliver(event)
	})
}

func (t *WebhookTransport) deliver(event NotificationEvent) error {
	url := event.Destination.Recipient
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil
	}
	body, err := json.Marshal(event.Notification)
	if err != nil {
		return err
	}
	// The POST runs off the dispatcher's goroutine so a slow recipient
	// never stalls the evaluation loop behind it. A confirmed
	// destination differs only in that its outcome is logged per
	// delivery; there is no retry of a missed notification either way.
	confirmed := event.Destination.Confirmed
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.post(ctx, url, body); err != nil {
			t.logger.Warn("webhook delivery failed",
				zap.String("recipient", url),
				zap.Bool("confirmed", confirmed),
				zap.Error(err))
			return
		}
		if confirmed {
			t.logger.Debug("webhook delivered", zap.String("recipient", url))
		}
	}()
	return nil
}

func (t *WebhookTransport) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("notify: webhook non-2xx")
	}
	return nil
}
