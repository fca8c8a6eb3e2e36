// Package notify delivers human-facing alerts for escalations, safety
// violations, and flapping signals.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/escalate"
	"vigil/internal/health"
)

// Severity levels carried on notifications.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const webhookTimeout = 10 * time.Second

var _ escalate.Notifier = (*Webhook)(nil)

// Webhook POSTs notifications as JSON to a single endpoint.
type Webhook struct {
	url        string
	httpClient *http.Client
	clock      health.Clock
}

// NewWebhook creates a webhook notifier for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		clock:      health.RealClock{},
	}
}

type webhookPayload struct {
	Channel   string    `json:"channel"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (w *Webhook) Notify(ctx context.Context, channel, severity, message string) error {
	payload, err := json.Marshal(webhookPayload{
		Channel:   channel,
		Severity:  severity,
		Message:   message,
		Timestamp: w.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver notification: unexpected status %s", resp.Status)
	}
	return nil
}

var _ escalate.Notifier = (*Log)(nil)

// Log writes notifications to the process log. Used when no webhook is
// configured so alerts are never silently dropped.
type Log struct{}

func (Log) Notify(_ context.Context, channel, severity, message string) error {
	slog.Warn("notification", "channel", channel, "severity", severity, "message", message)
	return nil
}
