package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/auth"
	"github.com/automateflow/automateflow/internal/store"
)

// APIKeyPrefix marks credentials that are API keys rather than JWTs. Both
// arrive in the same Authorization header.
const APIKeyPrefix = "af_"

// Auth authenticates requests with either a JWT access token or an API key
// and sets the owning user id in the request context.
type Auth struct {
	tokens *auth.Tokens
	store  store.Store
}

func NewAuth(tokens *auth.Tokens, s store.Store) *Auth {
	return &Auth{tokens: tokens, store: s}
}

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := extractBearerToken(r)
		if credential == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if strings.HasPrefix(credential, APIKeyPrefix) {
			a.authenticateAPIKey(w, r, next, credential)
			return
		}

		userID, err := a.tokens.VerifyAccess(credential)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}

// AuthenticateQuery validates an access token passed as ?token=. Browser
// websocket clients cannot set an Authorization header.
func (a *Auth) AuthenticateQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing token", nil)
			return
		}
		userID, err := a.tokens.VerifyAccess(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}

func (a *Auth) authenticateAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, rawKey string) {
	key, err := a.store.GetAPIKeyByHash(r.Context(), HashAPIKey(rawKey))
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "Invalid API key", nil)
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Failed to validate API key", nil)
		return
	}

	if !key.IsActive || key.Expired(time.Now()) {
		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "API key is revoked or expired", nil)
		return
	}

	// Touch last_used_at off the request path.
	go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

	next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), key.UserID)))
}

// HashAPIKey is the stored form of a raw key. Keys are random, so a plain
// sha256 lookup is enough; no per-key salt or bcrypt cost needed.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
