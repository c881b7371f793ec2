// Package main is the entrypoint for the AutomateFlow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automateflow/automateflow/internal/api"
	"github.com/automateflow/automateflow/internal/api/handler"
	mw "github.com/automateflow/automateflow/internal/api/middleware"
	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/auth"
	"github.com/automateflow/automateflow/internal/config"
	"github.com/automateflow/automateflow/internal/jobs"
	"github.com/automateflow/automateflow/internal/notify"
	"github.com/automateflow/automateflow/internal/queue"
	"github.com/automateflow/automateflow/internal/realtime"
	"github.com/automateflow/automateflow/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	promoteInterval = time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect the work queue
	workQueue, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create work queue: %w", err)
	}
	defer workQueue.Close()

	if err := workQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// Move retry-delayed descriptors back to waiting
	go func() {
		ticker := time.NewTicker(promoteInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := workQueue.PromoteDue(context.Background()); err != nil {
					slog.Warn("promote delayed jobs", "error", err)
				}
			}
		}
	}()

	// 5. Create store, realtime hub, and fan-out
	pgStore := store.NewPostgresStore(pool)
	hub := realtime.NewHub()

	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			AppURL:   cfg.Server.AppURL,
		})
		slog.Info("email fan-out enabled", "host", cfg.SMTP.Host)
	} else {
		slog.Info("email fan-out disabled, SMTP_HOST not set")
	}

	notifier := notify.NewNotifier(hub, mailer, notify.NewHTTPWebhookSender(cfg.Webhook.Timeout))
	defer notifier.Flush()

	// 6. Build services
	jobService := jobs.NewService(pgStore, workQueue, notifier)
	ingest := jobs.NewIngest(pgStore, notifier)

	// 7. Build router with dependencies
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTRefreshSecret)
	authMW := mw.NewAuth(tokens, pgStore)
	rateLimit := mw.NewRateLimit(workQueue, cfg.Auth.RateLimitPerMin)

	deps := api.Dependencies{
		Auth:         authMW,
		RateLimit:    rateLimit,
		WorkerSecret: cfg.Worker.Secret,

		HealthHandler: healthHandler(pgStore, workQueue),

		RegisterHandler:      handler.NewRegisterHandler(pgStore, tokens),
		LoginHandler:         handler.NewLoginHandler(pgStore, tokens),
		RefreshHandler:       handler.NewRefreshHandler(pgStore, tokens),
		MeHandler:            handler.NewMeHandler(pgStore),
		NotificationsHandler: handler.NewUpdateNotificationsHandler(pgStore),

		CreateJobHandler:       handler.NewCreateJobHandler(jobService),
		ListJobsHandler:        handler.NewListJobsHandler(jobService),
		GetJobHandler:          handler.NewGetJobHandler(jobService),
		CancelJobHandler:       handler.NewCancelJobHandler(jobService),
		HandoffCompleteHandler: handler.NewHandoffCompleteHandler(jobService),

		ListTemplatesHandler: handler.NewListTemplatesHandler(pgStore),
		GetTemplateHandler:   handler.NewGetTemplateHandler(pgStore),

		CreateKeyHandler: handler.NewCreateAPIKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListAPIKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeAPIKeyHandler(pgStore),

		QueueStatsHandler: handler.NewQueueStatsHandler(workQueue),

		WorkerCallbackHandler: handler.NewWorkerCallbackHandler(ingest),

		WebsocketHandler: hub,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and queue connectivity.
func healthHandler(s store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"queue":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := q.Ping(r.Context()); err != nil {
			checks["queue"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["queue"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
