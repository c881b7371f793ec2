package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/automateflow/automateflow/internal/api/middleware"
	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/jobs"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// JobService is the lifecycle interface the job handlers depend on.
type JobService interface {
	Submit(ctx context.Context, p jobs.SubmitParams) (*models.Job, error)
	Get(ctx context.Context, jobID, userID uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	Cancel(ctx context.Context, jobID, userID uuid.UUID) (*models.Job, error)
	SignalHandoffResolved(ctx context.Context, jobID, userID uuid.UUID) error
}

// NewCreateJobHandler returns the handler for POST /api/jobs.
func NewCreateJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Name            string          `json:"name"`
			TemplateID      *string         `json:"templateId"`
			TaskDescription *string         `json:"taskDescription"`
			Parameters      json.RawMessage `json:"parameters"`
			WebhookURL      *string         `json:"webhookUrl"`
			Priority        int             `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		var templateID *uuid.UUID
		if req.TemplateID != nil && *req.TemplateID != "" {
			id, err := uuid.Parse(*req.TemplateID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "templateId must be a valid UUID", nil)
				return
			}
			templateID = &id
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitParams{
			UserID:          userID,
			Name:            req.Name,
			TemplateID:      templateID,
			TaskDescription: req.TaskDescription,
			Parameters:      req.Parameters,
			WebhookURL:      req.WebhookURL,
			Priority:        req.Priority,
		})
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrNameRequired), errors.Is(err, jobs.ErrInvalidPriority):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			case errors.Is(err, jobs.ErrQueueUnavailable):
				response.Error(w, http.StatusServiceUnavailable, "DEPENDENCY_FAILURE",
					"Work queue is unavailable", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, job)
	}
}

// NewListJobsHandler returns the handler for GET /api/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		q := r.URL.Query()

		status := q.Get("status")
		if status != "" && !models.ValidStatus(status) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter", nil)
			return
		}

		var from, to time.Time
		var err error
		if v := q.Get("from"); v != "" {
			if from, err = time.Parse(time.RFC3339, v); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be RFC3339", nil)
				return
			}
		}
		if v := q.Get("to"); v != "" {
			if to, err = time.Parse(time.RFC3339, v); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be RFC3339", nil)
				return
			}
		}

		page := intQuery(q.Get("page"), 1)
		if page < 1 {
			page = 1
		}
		limit := intQuery(q.Get("limit"), defaultPageLimit)
		if limit < 1 {
			limit = defaultPageLimit
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}

		list, total, err := svc.List(r.Context(), store.JobFilter{
			UserID: userID,
			Status: status,
			From:   from,
			To:     to,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Collection(w, list, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetJobHandler returns the handler for GET /api/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequestIDs(w, r)
		if !ok {
			return
		}

		job, err := svc.Get(r.Context(), jobID, userID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewCancelJobHandler returns the handler for POST /api/jobs/{jobID}/cancel.
func NewCancelJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequestIDs(w, r)
		if !ok {
			return
		}

		job, err := svc.Cancel(r.Context(), jobID, userID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, store.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "INVALID_STATE",
					"Job has already finished and cannot be canceled", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, job)
	}
}

// NewHandoffCompleteHandler returns the handler for
// POST /api/jobs/{jobID}/handoff-complete.
func NewHandoffCompleteHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, jobID, ok := jobRequestIDs(w, r)
		if !ok {
			return
		}

		if err := svc.SignalHandoffResolved(r.Context(), jobID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]any{"jobId": jobID, "resolved": true})
	}
}

func jobRequestIDs(w http.ResponseWriter, r *http.Request) (userID, jobID uuid.UUID, ok bool) {
	userID, hasUser := mw.GetUserID(r)
	if !hasUser {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
		return uuid.Nil, uuid.Nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "jobID must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, jobID, true
}

func intQuery(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
