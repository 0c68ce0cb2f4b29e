package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-pool-monitor/internal/domain"
)

// Webhook POSTs each event as a JSON body to a configured URL. Any non-2xx
// response is a delivery error, retried by the dispatcher.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook sink with the given request timeout.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Compile-time interface check.
var _ Sink = (*Webhook)(nil)

// Name identifies the sink.
func (w *Webhook) Name() string { return "webhook" }

// Deliver POSTs the event as JSON.
func (w *Webhook) Deliver(ctx context.Context, event *domain.PoolCreationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
