package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/automateflow/automateflow/internal/notify"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

var ErrUnknownStatus = errors.New("unknown job status")

// Callback is one worker-reported partial update. Every field except JobID is
// optional; Logs and Screenshots are deltas to append.
type Callback struct {
	JobID         uuid.UUID       `json:"jobId"`
	Status        *string         `json:"status,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *string         `json:"error,omitempty"`
	Logs          []string        `json:"logs,omitempty"`
	Screenshots   []string        `json:"screenshots,omitempty"`
	ExecutionTime *int64          `json:"executionTime,omitempty"`
	RetryCount    *int            `json:"retryCount,omitempty"`
	Seq           *int64          `json:"seq,omitempty"`
	Handoff       *notify.Handoff `json:"handoff,omitempty"`
}

// UpdateNotifier receives the fan-out after a callback persists.
type UpdateNotifier interface {
	JobUpdated(job *models.Job, owner *models.User, delta notify.Delta, handoff *notify.Handoff)
}

// Ingest applies worker callbacks to the job store and triggers fan-out.
// Workers are trusted on outcomes, but two guards hold: terminal states are
// sticky, and a callback carrying a sequence number not above the last
// applied one is dropped.
type Ingest struct {
	store    store.Store
	notifier UpdateNotifier
}

func NewIngest(s store.Store, notifier UpdateNotifier) *Ingest {
	return &Ingest{store: s, notifier: notifier}
}

// Apply merges one callback. The store write is atomic; the response to the
// worker depends only on it. Fan-out (realtime, email, webhook) is
// best-effort and never reported back.
func (i *Ingest) Apply(ctx context.Context, cb Callback) error {
	if cb.Status != nil && !models.ValidStatus(*cb.Status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, *cb.Status)
	}

	job, err := i.store.ApplyCallback(ctx, cb.JobID, store.CallbackUpdate{
		Status:        cb.Status,
		Result:        cb.Result,
		Error:         cb.Error,
		Logs:          cb.Logs,
		Screenshots:   cb.Screenshots,
		ExecutionTime: cb.ExecutionTime,
		RetryCount:    cb.RetryCount,
		Seq:           cb.Seq,
	})
	if errors.Is(err, store.ErrStaleCallback) {
		// Out-of-order worker retry; the newer state already landed.
		slog.Info("dropping stale callback", "job_id", cb.JobID, "error", err)
		return nil
	}
	if err != nil {
		return err
	}

	owner, err := i.store.GetUserByID(ctx, job.UserID)
	if err != nil {
		// Realtime and webhook fan-out still work without the owner row;
		// only conditional email needs it.
		slog.Error("load job owner for fan-out", "job_id", job.ID, "error", err)
		owner = nil
	}

	i.notifier.JobUpdated(job, owner, notify.Delta{
		Logs:        cb.Logs,
		Screenshots: cb.Screenshots,
	}, cb.Handoff)

	return nil
}
