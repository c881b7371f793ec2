// Package notify fans one job state change out to the realtime hub,
// conditional email, and the job's outbound webhook. Every sink is
// best-effort: one attempt, failures logged, nothing surfaced to workers.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/automateflow/automateflow/internal/realtime"
	"github.com/automateflow/automateflow/pkg/models"
)

const webhookTimeout = 15 * time.Second

// Publisher pushes an event to a realtime room. Implemented by realtime.Hub.
type Publisher interface {
	Publish(room, event string, payload any)
}

// Delta carries only the log and screenshot entries appended by the current
// callback, not the accumulated history.
type Delta struct {
	Logs        []string
	Screenshots []string
}

// Handoff signals that the worker paused for human intervention.
type Handoff struct {
	Reason string `json:"reason"`
}

type jobUpdatedPayload struct {
	JobID         uuid.UUID `json:"jobId"`
	Status        string    `json:"status"`
	Logs          []string  `json:"logs"`
	Screenshots   []string  `json:"screenshots"`
	Result        any       `json:"result,omitempty"`
	Error         *string   `json:"error,omitempty"`
	ExecutionTime *int64    `json:"executionTime,omitempty"`
}

type handoffPayload struct {
	JobID  uuid.UUID `json:"jobId"`
	Reason string    `json:"reason"`
}

// Notifier is the fan-out entry point.
type Notifier struct {
	publisher Publisher
	mailer    Mailer
	webhooks  WebhookSender

	wg sync.WaitGroup
}

func NewNotifier(publisher Publisher, mailer Mailer, webhooks WebhookSender) *Notifier {
	return &Notifier{publisher: publisher, mailer: mailer, webhooks: webhooks}
}

// JobUpdated broadcasts one state change. The realtime publish happens inline
// (it never blocks on slow clients); email and webhook delivery run on their
// own goroutines so a slow SMTP relay cannot delay a webhook or vice versa.
func (n *Notifier) JobUpdated(job *models.Job, owner *models.User, delta Delta, handoff *Handoff) {
	payload := jobUpdatedPayload{
		JobID:         job.ID,
		Status:        job.Status,
		Logs:          emptyIfNil(delta.Logs),
		Screenshots:   emptyIfNil(delta.Screenshots),
		Error:         job.Error,
		ExecutionTime: job.ExecutionTime,
	}
	if job.Result != nil {
		payload.Result = job.Result
	}

	n.publisher.Publish(realtime.JobRoom(job.ID), realtime.EventJobUpdated, payload)
	n.publisher.Publish(realtime.UserRoom(job.UserID), realtime.EventJobUpdated, payload)

	if handoff != nil {
		n.publisher.Publish(realtime.UserRoom(job.UserID), realtime.EventHandoffRequested,
			handoffPayload{JobID: job.ID, Reason: handoff.Reason})
	}

	if !job.IsTerminal() {
		return
	}

	n.sendEmail(job, owner)
	n.sendWebhook(job)
}

// HandoffResolved tells the worker subscribed to the job room to resume.
func (n *Notifier) HandoffResolved(jobID uuid.UUID) {
	n.publisher.Publish(realtime.JobRoom(jobID), realtime.EventHandoffResolved,
		map[string]uuid.UUID{"jobId": jobID})
}

func (n *Notifier) sendEmail(job *models.Job, owner *models.User) {
	if n.mailer == nil || owner == nil {
		return
	}

	var send func(*models.User, *models.Job) error
	switch {
	case job.Status == models.JobStatusCompleted && owner.Notifications.EmailOnComplete:
		send = n.mailer.SendJobComplete
	case job.Status == models.JobStatusFailed && owner.Notifications.EmailOnFailure:
		send = n.mailer.SendJobFailed
	default:
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := send(owner, job); err != nil {
			slog.Error("job email delivery failed", "job_id", job.ID, "status", job.Status, "error", err)
		}
	}()
}

func (n *Notifier) sendWebhook(job *models.Job) {
	if n.webhooks == nil || job.WebhookURL == nil || *job.WebhookURL == "" {
		return
	}

	event := "job.completed"
	if job.Status == models.JobStatusFailed {
		event = "job.failed"
	}
	if job.Status == models.JobStatusCanceled {
		// Cancellation is owner-initiated; third parties only hear about
		// worker outcomes.
		return
	}

	payload := WebhookPayload{
		Event:         event,
		JobID:         job.ID.String(),
		Status:        job.Status,
		Result:        job.Result,
		Error:         job.Error,
		ExecutionTime: job.ExecutionTime,
		CompletedAt:   job.CompletedAt,
	}
	url := *job.WebhookURL

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := n.webhooks.Send(ctx, url, payload); err != nil {
			slog.Error("webhook delivery failed", "job_id", job.ID, "url", url, "error", err)
		}
	}()
}

// Flush waits for in-flight email and webhook deliveries. Called on shutdown
// and by tests.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
