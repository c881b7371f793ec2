package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/automateflow/automateflow/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrStaleCallback     = errors.New("stale callback sequence")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs models.NotificationPreferences) error

	ListTemplates(ctx context.Context, category string) ([]*models.Template, error)
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*models.Template, error)
	IncrementTemplateUsage(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	CancelJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error)
	ApplyCallback(ctx context.Context, id uuid.UUID, update CallbackUpdate) (*models.Job, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	CountActiveAPIKeys(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows ListJobs. Zero values mean "no constraint".
type JobFilter struct {
	UserID uuid.UUID
	Status string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// CallbackUpdate is a partial, worker-reported job mutation. Nil fields are
// untouched; Logs and Screenshots are appended, never replaced. Seq, when set,
// must exceed the job's last applied sequence or the whole update is dropped.
type CallbackUpdate struct {
	Status        *string
	Result        json.RawMessage
	Error         *string
	Logs          []string
	Screenshots   []string
	ExecutionTime *int64
	RetryCount    *int
	Seq           *int64
}

// ApplyTo merges the update into job in place. Workers are trusted on
// outcomes, with two guards: terminal states are sticky (re-sending the same
// terminal status is idempotent, moving off one is ErrInvalidTransition), and
// a non-increasing Seq rejects the whole update with ErrStaleCallback.
func (u CallbackUpdate) ApplyTo(job *models.Job, now time.Time) error {
	if u.Seq != nil && *u.Seq <= job.CallbackSeq {
		return fmt.Errorf("%w: seq %d <= %d", ErrStaleCallback, *u.Seq, job.CallbackSeq)
	}
	if u.Status != nil && job.IsTerminal() && *u.Status != job.Status {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *u.Status)
	}

	if u.Status != nil {
		job.Status = *u.Status
		if *u.Status == models.JobStatusProcessing && job.StartedAt == nil {
			t := now
			job.StartedAt = &t
		}
		if *u.Status == models.JobStatusCompleted || *u.Status == models.JobStatusFailed {
			t := now
			job.CompletedAt = &t
		}
	}
	if u.Result != nil {
		job.Result = u.Result
	}
	if u.Error != nil {
		job.Error = u.Error
	}
	if u.ExecutionTime != nil {
		job.ExecutionTime = u.ExecutionTime
	}
	if u.RetryCount != nil {
		job.RetryCount = *u.RetryCount
	}
	if len(u.Logs) > 0 {
		job.Logs = append(job.Logs, u.Logs...)
	}
	if len(u.Screenshots) > 0 {
		job.Screenshots = append(job.Screenshots, u.Screenshots...)
	}
	if u.Seq != nil {
		job.CallbackSeq = *u.Seq
	}
	job.UpdatedAt = now
	return nil
}
