package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

// TemplateStore is the catalog slice the template handlers need.
type TemplateStore interface {
	ListTemplates(ctx context.Context, category string) ([]*models.Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*models.Template, error)
}

// NewListTemplatesHandler returns the handler for GET /api/templates.
func NewListTemplatesHandler(templates TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := templates.ListTemplates(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, list)
	}
}

// NewGetTemplateHandler returns the handler for GET /api/templates/{slug}.
func NewGetTemplateHandler(templates TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "slug is required", nil)
			return
		}

		template, err := templates.GetTemplateBySlug(r.Context(), slug)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, template)
	}
}
