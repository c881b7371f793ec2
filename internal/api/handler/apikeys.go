package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/automateflow/automateflow/internal/api/middleware"
	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

const (
	maxActiveKeys    = 10
	rawKeyPrefix     = "af_live_"
	displayPrefixLen = 12
)

// KeyStore is the slice of the store the API key handlers need.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	CountActiveAPIKeys(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

type createdKeyResponse struct {
	// Key is the raw credential, returned exactly once.
	Key    string         `json:"key"`
	APIKey *models.APIKey `json:"apiKey"`
}

// NewCreateAPIKeyHandler returns the handler for POST /api/keys.
func NewCreateAPIKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Name      string     `json:"name"`
			ExpiresAt *time.Time `json:"expiresAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
			return
		}
		if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "expiresAt must be in the future", nil)
			return
		}

		active, err := keys.CountActiveAPIKeys(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if active >= maxActiveKeys {
			response.Error(w, http.StatusConflict, "KEY_LIMIT_REACHED",
				"Maximum number of active API keys reached", nil)
			return
		}

		rawKey, err := generateRawKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      req.Name,
			KeyHash:   mw.HashAPIKey(rawKey),
			KeyPrefix: rawKey[:displayPrefixLen],
			IsActive:  true,
			ExpiresAt: req.ExpiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Created(w, createdKeyResponse{Key: rawKey, APIKey: key})
	}
}

// NewListAPIKeysHandler returns the handler for GET /api/keys.
func NewListAPIKeysHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		list, err := keys.ListAPIKeys(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, list)
	}
}

// NewRevokeAPIKeyHandler returns the handler for DELETE /api/keys/{keyID}.
func NewRevokeAPIKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "keyID must be a valid UUID", nil)
			return
		}

		if err := keys.RevokeAPIKey(r.Context(), keyID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]any{"id": keyID, "revoked": true})
	}
}

func generateRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return rawKeyPrefix + hex.EncodeToString(buf), nil
}
