package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/jobs"
	"github.com/automateflow/automateflow/internal/store"
)

// CallbackIngest applies one worker-reported job update.
type CallbackIngest interface {
	Apply(ctx context.Context, cb jobs.Callback) error
}

// NewWorkerCallbackHandler returns the handler for POST /api/webhooks/worker.
// Stale callbacks are acknowledged as success: the worker has nothing to
// retry, the newer state already landed.
func NewWorkerCallbackHandler(ingest CallbackIngest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cb jobs.Callback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}
		if cb.JobID == uuid.Nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "jobId is required", nil)
			return
		}

		if err := ingest.Apply(r.Context(), cb); err != nil {
			switch {
			case errors.Is(err, jobs.ErrUnknownStatus):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, store.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "INVALID_STATE",
					"Job is already in a terminal state", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, map[string]any{"received": true})
	}
}
