// Package jobs holds the job lifecycle: submission, cancellation, handoff
// signaling, and the worker callback ingest that is the sole mutator of
// in-flight job state.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/automateflow/automateflow/internal/queue"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

var (
	ErrNameRequired     = errors.New("job name is required")
	ErrInvalidPriority  = errors.New("priority must be between 1 and 10")
	ErrQueueUnavailable = errors.New("work queue unavailable")
)

// HandoffNotifier publishes the resume signal for a paused job.
type HandoffNotifier interface {
	HandoffResolved(jobID uuid.UUID)
}

// SubmitParams are the validated inputs for one job submission.
type SubmitParams struct {
	UserID          uuid.UUID
	Name            string
	TemplateID      *uuid.UUID
	TaskDescription *string
	Parameters      json.RawMessage
	WebhookURL      *string
	Priority        int // 0 means default
}

// Service orchestrates job creation and cancellation against the store and
// the work queue, enforcing legal transitions on the cancel path.
type Service struct {
	store    store.Store
	queue    queue.Queue
	notifier HandoffNotifier
	now      func() time.Time
}

func NewService(s store.Store, q queue.Queue, notifier HandoffNotifier) *Service {
	return &Service{store: s, queue: q, notifier: notifier, now: time.Now}
}

// Submit persists a new queued job and enqueues its descriptor. The store
// write and the enqueue are both attempted; if the enqueue fails the row
// stays queued with no queue entry and the failure is surfaced — there is no
// compensating delete.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.Job, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	priority := p.Priority
	if priority == 0 {
		priority = models.DefaultPriority
	}
	if priority < models.MinPriority || priority > models.MaxPriority {
		return nil, ErrInvalidPriority
	}

	params := p.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	var template *models.Template
	if p.TemplateID != nil {
		t, err := s.store.GetTemplateByID(ctx, *p.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("resolve template: %w", err)
		}
		template = t
	}

	now := s.now().UTC()
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      p.UserID,
		TemplateID:  p.TemplateID,
		Name:        name,
		Status:      models.JobStatusQueued,
		Parameters:  params,
		Logs:        []string{},
		Screenshots: []string{},
		Priority:    priority,
		WebhookURL:  p.WebhookURL,
		MaxRetries:  models.DefaultMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.TaskDescription = p.TaskDescription

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	descriptor := queue.Descriptor{
		JobID:      job.ID,
		UserID:     job.UserID,
		TemplateID: job.TemplateID,
		Name:       job.Name,
		Parameters: job.Parameters,
		Priority:   job.Priority,
		MaxRetries: job.MaxRetries,
	}
	if p.TaskDescription != nil {
		descriptor.TaskDescription = *p.TaskDescription
	}
	if template != nil {
		descriptor.TemplateSlug = template.Slug
	}

	if err := s.queue.Enqueue(ctx, descriptor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	if template != nil {
		if err := s.store.IncrementTemplateUsage(ctx, template.ID); err != nil {
			// Usage counters are advisory; the job is already live.
			slog.Warn("increment template usage failed", "template_id", template.ID, "error", err)
		}
	}

	return job, nil
}

// Cancel removes the queue entry when it has not been claimed yet, then
// unconditionally moves the job to canceled. The store transition is
// authoritative; a worker that already claimed the descriptor may still race
// to finish, and the terminal-state guard settles that race.
func (s *Service) Cancel(ctx context.Context, jobID, userID uuid.UUID) (*models.Job, error) {
	current, err := s.store.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot cancel %s job", store.ErrInvalidTransition, current.Status)
	}

	removed, err := s.queue.Cancel(ctx, jobID)
	if err != nil {
		slog.Warn("queue removal failed during cancel", "job_id", jobID, "error", err)
	} else if !removed {
		slog.Info("queue entry already claimed, canceling store record only", "job_id", jobID)
	}

	return s.store.CancelJob(ctx, jobID, userID)
}

// Get reads one job scoped to its owner.
func (s *Service) Get(ctx context.Context, jobID, userID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID, userID)
}

// List reads the owner's jobs with status/date filters and pagination.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}

// SignalHandoffResolved forwards the resume signal for a paused job to its
// realtime room. No job state changes.
func (s *Service) SignalHandoffResolved(ctx context.Context, jobID, userID uuid.UUID) error {
	if _, err := s.store.GetJob(ctx, jobID, userID); err != nil {
		return err
	}
	s.notifier.HandoffResolved(jobID)
	return nil
}
