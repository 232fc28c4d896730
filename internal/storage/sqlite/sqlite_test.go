package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/storage/sqlite"
	"github.com/slok/jobwatch/internal/storage/sqlite/migrations"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNewRepositoryConfig(t *testing.T) {
	_, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{})
	assert.Error(t, err)
}

func TestRepositorySession(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.GetSession(ctx)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	expiresAt := createdAt.Add(time.Hour)
	require.NoError(t, repo.SaveSession(ctx, model.StoredSession{
		Token:     "tk1",
		Subject:   "user-1",
		ExpiresAt: &expiresAt,
		CreatedAt: createdAt,
	}))

	got, err := repo.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tk1", got.Token)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, createdAt, got.CreatedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, expiresAt, *got.ExpiresAt)

	// Saving again replaces the session.
	require.NoError(t, repo.SaveSession(ctx, model.StoredSession{Token: "tk2", CreatedAt: createdAt}))
	got, err = repo.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tk2", got.Token)
	assert.Empty(t, got.Subject)
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, repo.DeleteSession(ctx))
	require.NoError(t, repo.DeleteSession(ctx))
	_, err = repo.GetSession(ctx)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = repo.SaveSession(ctx, model.StoredSession{})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}

func TestRepositorySessionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, repo.SaveSession(ctx, model.StoredSession{Token: "tk", CreatedAt: time.Now()}))
	require.NoError(t, repo.Close())

	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tk", got.Token)
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	taskRepo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: repo.DB()})
	require.NoError(t, err)

	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	rec := model.TaskRecord{
		ID: "01H2QWERTYASDFGZXCVBNMLKJH",
		Background: model.UserBackground{
			UndergraduateUniversity: "Tsinghua University",
			GPA:                     3.8,
			GPAScale:                "4.0",
			TargetCountries:         []string{"US", "UK"},
		},
		FailReason: "boom",
		CreatedAt:  createdAt,
	}
	require.NoError(t, taskRepo.CreateTask(ctx, rec))

	err = taskRepo.CreateTask(ctx, rec)
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	got, err := taskRepo.GetTask(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	cancelledAt := createdAt.Add(3 * time.Second)
	rec.CancelledAt = &cancelledAt
	require.NoError(t, taskRepo.UpdateTask(ctx, rec))
	got, err = taskRepo.GetTask(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, cancelledAt, *got.CancelledAt)

	_, err = taskRepo.GetTask(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = taskRepo.UpdateTask(ctx, model.TaskRecord{ID: "missing"})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestNewTaskRepositoryRequiresDB(t *testing.T) {
	_, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{})
	assert.Error(t, err)
}

func TestMigratorVersion(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	m, err := migrations.NewMigrator(migrations.MigratorConfig{DB: repo.DB()})
	require.NoError(t, err)

	v, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	// Applying again is a no-op.
	require.NoError(t, m.Up(ctx))

	require.NoError(t, m.Down(ctx))
	v, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
}
