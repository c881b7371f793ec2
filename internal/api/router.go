package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/automateflow/automateflow/internal/api/middleware"
	"github.com/automateflow/automateflow/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth         *mw.Auth
	RateLimit    *mw.RateLimit
	WorkerSecret string

	HealthHandler http.HandlerFunc

	RegisterHandler      http.HandlerFunc
	LoginHandler         http.HandlerFunc
	RefreshHandler       http.HandlerFunc
	MeHandler            http.HandlerFunc
	NotificationsHandler http.HandlerFunc

	CreateJobHandler       http.HandlerFunc
	ListJobsHandler        http.HandlerFunc
	GetJobHandler          http.HandlerFunc
	CancelJobHandler       http.HandlerFunc
	HandoffCompleteHandler http.HandlerFunc

	ListTemplatesHandler http.HandlerFunc
	GetTemplateHandler   http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc

	QueueStatsHandler http.HandlerFunc

	WorkerCallbackHandler http.HandlerFunc

	WebsocketHandler http.Handler
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Public auth routes
	r.Post("/api/auth/register", orNotImplemented(deps.RegisterHandler))
	r.Post("/api/auth/login", orNotImplemented(deps.LoginHandler))
	r.Post("/api/auth/refresh", orNotImplemented(deps.RefreshHandler))

	// Worker callback, gated by shared secret
	r.Group(func(r chi.Router) {
		r.Use(mw.WorkerAuth(deps.WorkerSecret))
		r.Post("/api/webhooks/worker", orNotImplemented(deps.WorkerCallbackHandler))
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/auth/me", orNotImplemented(deps.MeHandler))
		r.Put("/api/auth/notifications", orNotImplemented(deps.NotificationsHandler))

		r.Post("/api/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Post("/api/jobs/{jobID}/cancel", orNotImplemented(deps.CancelJobHandler))
		r.Post("/api/jobs/{jobID}/handoff-complete", orNotImplemented(deps.HandoffCompleteHandler))

		r.Get("/api/templates", orNotImplemented(deps.ListTemplatesHandler))
		r.Get("/api/templates/{slug}", orNotImplemented(deps.GetTemplateHandler))

		r.Post("/api/keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))

		r.Get("/api/queue/stats", orNotImplemented(deps.QueueStatsHandler))
	})

	// Websocket clients authenticate with ?token=
	if deps.WebsocketHandler != nil {
		r.Handle("/ws", deps.Auth.AuthenticateQuery(deps.WebsocketHandler))
	}

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
