package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for outbound webhook delivery.
var (
	ErrWebhookRejected = errors.New("webhook endpoint rejected delivery")
)

// EventHeader names the outcome in every outbound webhook request.
const EventHeader = "X-AutomateFlow-Event"

// WebhookPayload is the JSON envelope POSTed to a job's webhookUrl on
// terminal transitions.
type WebhookPayload struct {
	Event         string          `json:"event"`
	JobID         string          `json:"jobId"`
	Status        string          `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *string         `json:"error,omitempty"`
	ExecutionTime *int64          `json:"executionTime,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// WebhookSender delivers one payload per terminal transition. One attempt, no
// retry; the caller logs failures and moves on.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload WebhookPayload) error
}

// HTTPWebhookSender implements WebhookSender over plain HTTP POST.
type HTTPWebhookSender struct {
	client *http.Client
}

func NewHTTPWebhookSender(timeout time.Duration) *HTTPWebhookSender {
	return &HTTPWebhookSender{client: &http.Client{Timeout: timeout}}
}

func (s *HTTPWebhookSender) Send(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, payload.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode)
	}
	return nil
}
