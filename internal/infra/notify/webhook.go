// Package notify delivers session reports to the configured notification
// channel. Delivery is best-effort and never influences session outcomes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"genflow-agent/internal/domain/repository"
	"genflow-agent/pkg/backoff"
	"genflow-agent/pkg/log"
)

const maxSendAttempts = 3

// WebhookNotifier posts reports as JSON to an HTTP endpoint. Transient
// failures are retried a few times with exponential pauses; the retry loop
// is bounded so a dead webhook can never wedge the agent.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	retryBase  time.Duration
}

var _ repository.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryBase: time.Second,
	}
}

type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the message, retrying transient failures.
func (n *WebhookNotifier) Send(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(webhookPayload{Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pause := backoff.New(n.retryBase, 10*n.retryBase)
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		lastErr = n.post(ctx, payload)
		if lastErr == nil {
			return nil
		}

		log.Warn("notification delivery failed", "attempt", attempt, "error", lastErr)
		if attempt == maxSendAttempts {
			break
		}

		select {
		case <-time.After(pause.Next()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("notification not delivered after %d attempts: %w", maxSendAttempts, lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes reports to the agent log. It is the fallback channel
// when no webhook is configured, so every terminal session still surfaces
// its outcome somewhere visible.
type LogNotifier struct{}

var _ repository.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send writes the report to the log.
func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	log.Info("session report", "subject", subject, "report", body)
	return nil
}
