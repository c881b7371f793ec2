package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCanceled   = "canceled"
)

const (
	DefaultPriority   = 5
	MinPriority       = 1
	MaxPriority       = 10
	DefaultMaxRetries = 3
)

// Job is one requested unit of automation work, tracked from submission to a
// terminal state. Workers mutate it exclusively through the callback endpoint;
// owners can only cancel. parameters and result are opaque JSON passed through
// to and from the worker.
type Job struct {
	ID              uuid.UUID       `db:"id"               json:"id"`
	UserID          uuid.UUID       `db:"user_id"          json:"userId"`
	TemplateID      *uuid.UUID      `db:"template_id"      json:"templateId,omitempty"`
	Name            string          `db:"name"             json:"name"`
	Status          string          `db:"status"           json:"status"`
	TaskDescription *string         `db:"task_description" json:"taskDescription,omitempty"`
	Parameters      json.RawMessage `db:"parameters"       json:"parameters"`
	Result          json.RawMessage `db:"result"           json:"result,omitempty"`
	Error           *string         `db:"error"            json:"error,omitempty"`
	Logs            []string        `db:"logs"             json:"logs"`
	Screenshots     []string        `db:"screenshots"      json:"screenshots"`
	ExecutionTime   *int64          `db:"execution_time"   json:"executionTime,omitempty"`
	Priority        int             `db:"priority"         json:"priority"`
	WebhookURL      *string         `db:"webhook_url"      json:"webhookUrl,omitempty"`
	RetryCount      int             `db:"retry_count"      json:"retryCount"`
	MaxRetries      int             `db:"max_retries"      json:"maxRetries"`
	CallbackSeq     int64           `db:"callback_seq"     json:"-"`
	StartedAt       *time.Time      `db:"started_at"       json:"startedAt,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at"     json:"completedAt,omitempty"`
	CreatedAt       time.Time       `db:"created_at"       json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at"       json:"updatedAt"`
}

// IsTerminal reports whether the job has reached a state with no outgoing
// transitions.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCanceled
}

// ValidStatus reports whether status is one of the five lifecycle states.
func ValidStatus(status string) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}
