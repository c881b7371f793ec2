package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Descriptor is the payload handed to workers for one job. It carries
// everything a worker needs to execute without reading the database.
type Descriptor struct {
	JobID           uuid.UUID       `json:"jobId"`
	UserID          uuid.UUID       `json:"userId"`
	TemplateID      *uuid.UUID      `json:"templateId,omitempty"`
	TemplateSlug    string          `json:"templateSlug,omitempty"`
	Name            string          `json:"name"`
	TaskDescription string          `json:"taskDescription,omitempty"`
	Parameters      json.RawMessage `json:"parameters"`
	Priority        int             `json:"priority"`
	MaxRetries      int             `json:"maxRetries"`
}

// Stats holds per-state descriptor counts, for observability only.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Queue delivers job descriptors to external worker processes with priority
// ordering and bounded retry. Delivery is at-least-once; cancellation only
// succeeds before a worker claims the descriptor.
type Queue interface {
	// Enqueue admits one descriptor. Higher priority dequeues first; ties
	// break FIFO by enqueue order.
	Enqueue(ctx context.Context, d Descriptor) error

	// Cancel removes the descriptor if it is still waiting or delayed and
	// reports whether removal happened. Claimed work is untouched.
	Cancel(ctx context.Context, jobID uuid.UUID) (bool, error)

	// Stats counts descriptors per queue state.
	Stats(ctx context.Context) (Stats, error)

	Ping(ctx context.Context) error
}
