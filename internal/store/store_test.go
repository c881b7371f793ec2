package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/automateflow/automateflow/internal/store"
	"github.com/automateflow/automateflow/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("automateflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createTestUser(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "$2a$04$notarealhashbutlongenough",
		Name:         "Test User",
		Plan:         "free",
		Notifications: models.NotificationPreferences{
			EmailOnComplete: true,
			EmailOnFailure:  true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createTestJob(t *testing.T, s store.Store, userID uuid.UUID, mutate func(*models.Job)) *models.Job {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	j := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        "check prices",
		Status:      models.JobStatusQueued,
		Parameters:  json.RawMessage(`{}`),
		Logs:        []string{},
		Screenshots: []string{},
		Priority:    models.DefaultPriority,
		MaxRetries:  models.DefaultMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mutate != nil {
		mutate(j)
	}
	require.NoError(t, s.CreateJob(context.Background(), j))
	return j
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

// --- User Tests ---

func TestUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "free", byEmail.Plan)
	assert.True(t, byEmail.Notifications.EmailOnComplete)
	assert.Nil(t, byEmail.RefreshToken)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
}

func TestUser_DuplicateEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	createTestUser(t, s, "dup@example.com")

	dup := &models.User{
		ID:           uuid.New(),
		Email:        "dup@example.com",
		PasswordHash: "hash",
		Name:         "Other",
		Plan:         "free",
	}
	err := s.CreateUser(context.Background(), dup)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUser_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_RefreshToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")

	token := "some.refresh.token"
	require.NoError(t, s.SetRefreshToken(ctx, user.ID, &token))

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, token, *got.RefreshToken)

	// Clearing stores NULL.
	require.NoError(t, s.SetRefreshToken(ctx, user.ID, nil))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)

	err = s.SetRefreshToken(ctx, uuid.New(), &token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_UpdateNotificationPreferences(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")

	prefs := models.NotificationPreferences{EmailOnComplete: false, EmailOnFailure: true}
	require.NoError(t, s.UpdateNotificationPreferences(ctx, user.ID, prefs))

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, prefs, got.Notifications)

	err = s.UpdateNotificationPreferences(ctx, uuid.New(), prefs)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Template Tests ---

func TestTemplates_SeededCatalog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	templates, err := s.ListTemplates(ctx, "")
	require.NoError(t, err)
	require.Len(t, templates, 5)

	slugs := make(map[string]bool, len(templates))
	for _, tpl := range templates {
		slugs[tpl.Slug] = true
		assert.True(t, tpl.IsPublic)
	}
	assert.True(t, slugs["price-monitor"])
	assert.True(t, slugs["form-filler"])
	assert.True(t, slugs["pdf-invoice-downloader"])
}

func TestTemplates_CategoryFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	templates, err := s.ListTemplates(context.Background(), "automation")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	for _, tpl := range templates {
		assert.Equal(t, "automation", tpl.Category)
	}
}

func TestTemplates_GetBySlug(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tpl, err := s.GetTemplateBySlug(ctx, "price-monitor")
	require.NoError(t, err)
	assert.Equal(t, "Price Monitor", tpl.Name)
	assert.Equal(t, "monitoring", tpl.Category)
	assert.Contains(t, tpl.RequiredFields, "url")

	_, err = s.GetTemplateBySlug(ctx, "no-such-template")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTemplates_IncrementUsage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tpl, err := s.GetTemplateBySlug(ctx, "form-filler")
	require.NoError(t, err)
	require.Equal(t, 0, tpl.UsageCount)

	require.NoError(t, s.IncrementTemplateUsage(ctx, tpl.ID))
	require.NoError(t, s.IncrementTemplateUsage(ctx, tpl.ID))

	got, err := s.GetTemplateByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)

	// Most-used templates list first.
	all, err := s.ListTemplates(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "form-filler", all[0].Slug)
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	job := createTestJob(t, s, user.ID, func(j *models.Job) {
		j.TaskDescription = strPtr("watch this product")
		j.Priority = 8
	})

	got, err := s.GetJob(ctx, job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Equal(t, 8, got.Priority)
	assert.Equal(t, "watch this product", *got.TaskDescription)
	assert.Empty(t, got.Logs)
	assert.Nil(t, got.StartedAt)
	assert.Equal(t, int64(0), got.CallbackSeq)

	byID, err := s.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID.UserID)
}

func TestJob_GetScopedToOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	other := createTestUser(t, s, "other@example.com")
	job := createTestJob(t, s, owner.ID, nil)

	_, err := s.GetJob(ctx, job.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_ListFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	other := createTestUser(t, s, "bob@example.com")

	createTestJob(t, s, user.ID, nil)
	createTestJob(t, s, user.ID, func(j *models.Job) { j.Status = models.JobStatusCompleted })
	createTestJob(t, s, user.ID, func(j *models.Job) { j.Status = models.JobStatusFailed })
	createTestJob(t, s, other.ID, nil)

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 3)

	jobs, total, err = s.ListJobs(ctx, store.JobFilter{UserID: user.ID, Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCompleted, jobs[0].Status)

	// Other users' jobs never leak in.
	_, total, err = s.ListJobs(ctx, store.JobFilter{UserID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestJob_ListPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	for i := 0; i < 5; i++ {
		createTestJob(t, s, user.ID, nil)
	}

	page1, total, err := s.ListJobs(ctx, store.JobFilter{UserID: user.ID, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 2)

	page3, total, err := s.ListJobs(ctx, store.JobFilter{UserID: user.ID, Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page3, 1)
}

func TestJob_ListTimeRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	old := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond)
	createTestJob(t, s, user.ID, func(j *models.Job) {
		j.CreatedAt = old
		j.UpdatedAt = old
	})
	createTestJob(t, s, user.ID, nil)

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{
		UserID: user.ID,
		From:   time.Now().UTC().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].CreatedAt.After(old))
}

func TestJob_Cancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	job := createTestJob(t, s, user.ID, nil)

	canceled, err := s.CancelJob(ctx, job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CompletedAt)

	// Canceling again hits the terminal guard.
	_, err = s.CancelJob(ctx, job.ID, user.ID)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestJob_CancelNotOwned(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	other := createTestUser(t, s, "other@example.com")
	job := createTestJob(t, s, owner.ID, nil)

	_, err := s.CancelJob(ctx, job.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetJob(ctx, job.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
}

func TestJob_ApplyCallbackMerges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	job := createTestJob(t, s, user.ID, nil)

	processing := models.JobStatusProcessing
	merged, err := s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{
		Status: &processing,
		Logs:   []string{"navigating to page"},
		Seq:    i64Ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, merged.Status)
	require.NotNil(t, merged.StartedAt)
	startedAt := *merged.StartedAt

	completed := models.JobStatusCompleted
	merged, err = s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{
		Status:        &completed,
		Result:        json.RawMessage(`{"price": 19.99}`),
		Logs:          []string{"extracted price", "done"},
		Screenshots:   []string{"https://cdn.example.com/shot1.png"},
		ExecutionTime: i64Ptr(4200),
		Seq:           i64Ptr(2),
	})
	require.NoError(t, err)

	got, err := s.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"price": 19.99}`, string(got.Result))
	assert.Equal(t, []string{"navigating to page", "extracted price", "done"}, got.Logs)
	assert.Len(t, got.Screenshots, 1)
	assert.Equal(t, int64(4200), *got.ExecutionTime)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, int64(2), got.CallbackSeq)

	// startedAt is set once and never moves.
	assert.WithinDuration(t, startedAt, *got.StartedAt, time.Millisecond)
}

func TestJob_ApplyCallbackStaleSeq(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	job := createTestJob(t, s, user.ID, nil)

	processing := models.JobStatusProcessing
	_, err := s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{
		Status: &processing,
		Seq:    i64Ptr(5),
	})
	require.NoError(t, err)

	// A re-delivered earlier update is rejected wholesale.
	_, err = s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{
		Logs: []string{"late arrival"},
		Seq:  i64Ptr(3),
	})
	assert.ErrorIs(t, err, store.ErrStaleCallback)

	got, err := s.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Logs)
	assert.Equal(t, int64(5), got.CallbackSeq)
}

func TestJob_ApplyCallbackTerminalSticky(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	job := createTestJob(t, s, user.ID, nil)

	failed := models.JobStatusFailed
	_, err := s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{
		Status: &failed,
		Error:  strPtr("selector not found"),
	})
	require.NoError(t, err)

	// No way back out of a terminal state.
	processing := models.JobStatusProcessing
	_, err = s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{Status: &processing})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// Re-sending the same terminal status is an idempotent redelivery.
	merged, err := s.ApplyCallback(ctx, job.ID, store.CallbackUpdate{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, merged.Status)
	assert.Equal(t, "selector not found", *merged.Error)
}

func TestJob_ApplyCallbackNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.ApplyCallback(context.Background(), uuid.New(), store.CallbackUpdate{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- API Key Tests ---

func createTestAPIKey(t *testing.T, s store.Store, userID uuid.UUID, name, hash string) *models.APIKey {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: "af_live_" + hash[:4],
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(context.Background(), key))
	return key
}

func TestAPIKey_CreateAndGetByHash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	key := createTestAPIKey(t, s, user.ID, "ci-key", "abcd1234hash")

	got, err := s.GetAPIKeyByHash(ctx, "abcd1234hash")
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, "ci-key", got.Name)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastUsedAt)

	_, err = s.GetAPIKeyByHash(ctx, "unknown-hash")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_DuplicateHash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	user := createTestUser(t, s, "alice@example.com")
	createTestAPIKey(t, s, user.ID, "first", "samehash0000")

	now := time.Now().UTC()
	err := s.CreateAPIKey(context.Background(), &models.APIKey{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      "second",
		KeyHash:   "samehash0000",
		KeyPrefix: "af_live_same",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestAPIKey_CountAndRevoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	key1 := createTestAPIKey(t, s, user.ID, "one", "hash-one-0001")
	createTestAPIKey(t, s, user.ID, "two", "hash-two-0002")

	count, err := s.CountActiveAPIKeys(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.RevokeAPIKey(ctx, key1.ID, user.ID))

	count, err = s.CountActiveAPIKeys(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Revoked keys no longer authenticate, but stay listed.
	_, err = s.GetAPIKeyByHash(ctx, "hash-one-0001")
	assert.ErrorIs(t, err, store.ErrNotFound)

	keys, err := s.ListAPIKeys(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	// Revoking twice, or someone else's key, is not found.
	err = s.RevokeAPIKey(ctx, key1.ID, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_RevokeNotOwned(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	other := createTestUser(t, s, "other@example.com")
	key := createTestAPIKey(t, s, owner.ID, "mine", "hash-mine-001")

	err := s.RevokeAPIKey(ctx, key.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetAPIKeyByHash(ctx, "hash-mine-001")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s, "alice@example.com")
	key := createTestAPIKey(t, s, user.ID, "used", "hash-used-001")

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	got, err := s.GetAPIKeyByHash(ctx, "hash-used-001")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.LastUsedAt, 5*time.Second)
}
