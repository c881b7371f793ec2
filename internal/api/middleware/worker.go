package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/automateflow/automateflow/internal/api/response"
)

// WorkerSecretHeader carries the shared secret on worker callback requests.
const WorkerSecretHeader = "X-Worker-Secret"

// WorkerAuth gates the callback endpoint on the shared worker secret.
func WorkerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(WorkerSecretHeader)
			if provided == "" ||
				subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Missing or invalid worker secret", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
