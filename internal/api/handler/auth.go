package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	mw "github.com/automateflow/automateflow/internal/api/middleware"
	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/auth"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
	"github.com/google/uuid"
)

const minPasswordLen = 8

// UserStore is the slice of the store the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs models.NotificationPreferences) error
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User *models.User `json:"user"`
	tokenPair
}

// NewRegisterHandler returns the handler for POST /api/auth/register.
func NewRegisterHandler(users UserStore, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.Name = strings.TrimSpace(req.Name)

		details := map[string][]string{}
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			details["email"] = []string{"a valid email is required"}
		}
		if len(req.Password) < minPasswordLen {
			details["password"] = []string{"password must be at least 8 characters"}
		}
		if req.Name == "" {
			details["name"] = []string{"name is required"}
		}
		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid registration", details)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		now := time.Now().UTC()
		user := &models.User{
			ID:           uuid.New(),
			Email:        req.Email,
			PasswordHash: string(hash),
			Name:         req.Name,
			Plan:         "free",
			Notifications: models.NotificationPreferences{
				EmailOnComplete: true,
				EmailOnFailure:  true,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := users.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "EMAIL_TAKEN", "An account with this email already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		pair, err := issueTokens(r, users, tokens, user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Created(w, authResponse{User: user, tokenPair: pair})
	}
}

// NewLoginHandler returns the handler for POST /api/auth/login.
func NewLoginHandler(users UserStore, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		user, err := users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}

		pair, err := issueTokens(r, users, tokens, user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, authResponse{User: user, tokenPair: pair})
	}
}

// NewRefreshHandler returns the handler for POST /api/auth/refresh. The
// presented refresh token must match the one stored for the user; a new pair
// is minted and the stored token rotated.
func NewRefreshHandler(users UserStore, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
			return
		}

		userID, err := tokens.VerifyRefresh(req.RefreshToken)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token", nil)
			return
		}

		user, err := users.GetUserByID(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token", nil)
			return
		}
		if user.RefreshToken == nil || *user.RefreshToken != req.RefreshToken {
			// Token was rotated or revoked since it was issued.
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token", nil)
			return
		}

		pair, err := issueTokens(r, users, tokens, user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, pair)
	}
}

// NewMeHandler returns the handler for GET /api/auth/me.
func NewMeHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		user, err := users.GetUserByID(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, user)
	}
}

// NewUpdateNotificationsHandler returns the handler for
// PUT /api/auth/notifications.
func NewUpdateNotificationsHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var prefs models.NotificationPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		if err := users.UpdateNotificationPreferences(r.Context(), userID, prefs); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, prefs)
	}
}

func issueTokens(r *http.Request, users UserStore, tokens *auth.Tokens, userID uuid.UUID) (tokenPair, error) {
	access, err := tokens.SignAccess(userID)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := tokens.SignRefresh(userID)
	if err != nil {
		return tokenPair{}, err
	}
	if err := users.SetRefreshToken(r.Context(), userID, &refresh); err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
