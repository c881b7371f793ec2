package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automateflow/automateflow/internal/queue"
	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error                       { return s.pingErr }
func (s *testStore) CreateUser(_ context.Context, _ *models.User) error { return nil }
func (s *testStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) GetUserByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) SetRefreshToken(_ context.Context, _ uuid.UUID, _ *string) error { return nil }
func (s *testStore) UpdateNotificationPreferences(_ context.Context, _ uuid.UUID, _ models.NotificationPreferences) error {
	return nil
}
func (s *testStore) ListTemplates(_ context.Context, _ string) ([]*models.Template, error) {
	return nil, nil
}
func (s *testStore) GetTemplateByID(_ context.Context, _ uuid.UUID) (*models.Template, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) GetTemplateBySlug(_ context.Context, _ string) (*models.Template, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) IncrementTemplateUsage(_ context.Context, _ uuid.UUID) error { return nil }
func (s *testStore) CreateJob(_ context.Context, _ *models.Job) error            { return nil }
func (s *testStore) GetJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) GetJobByID(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}
func (s *testStore) CancelJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) ApplyCallback(_ context.Context, _ uuid.UUID, _ store.CallbackUpdate) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error { return nil }
func (s *testStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) GetAPIKeyByHash(_ context.Context, _ string) (*models.APIKey, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) CountActiveAPIKeys(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }
func (s *testStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *testStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error      { return nil }

var _ store.Store = (*testStore)(nil)

// ─── mock queue ──────────────────────────────────────────────────────────────

type testQueue struct {
	pingErr error
}

func (q *testQueue) Enqueue(_ context.Context, _ queue.Descriptor) error { return nil }
func (q *testQueue) Cancel(_ context.Context, _ uuid.UUID) (bool, error) { return false, nil }
func (q *testQueue) Stats(_ context.Context) (queue.Stats, error)        { return queue.Stats{}, nil }
func (q *testQueue) Ping(_ context.Context) error                        { return q.pingErr }

var _ queue.Queue = (*testQueue)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testQueue{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["queue"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, &testQueue{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
}

func TestHealthHandler_QueueDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testQueue{pingErr: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "JWT_SECRET", "JWT_REFRESH_SECRET", "WORKER_SECRET",
	} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
