package syncruns

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "runs.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SyncRun{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func TestRepository_StartAndComplete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	run, err := repo.Start(ctx, 1, entities.SyncTriggerManual)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, entities.SyncStatusRunning, run.Status)

	err = repo.Complete(ctx, run.ID, Outcome{
		Succeeded:      true,
		RemotePath:     "/koreader/statistics.sqlite3",
		BooksSynced:    2,
		SessionsSynced: 3,
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusCompleted, got.Status)
	assert.Equal(t, 2, got.BooksSynced)
	assert.Equal(t, 3, got.SessionsSynced)
	assert.Equal(t, "/koreader/statistics.sqlite3", got.RemotePath)
	assert.NotNil(t, got.CompletedAt)
}

func TestRepository_CompleteFailure(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	run, err := repo.Start(ctx, 1, entities.SyncTriggerScheduled)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, run.ID, Outcome{Error: "statistics file not found"}))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, got.Status)
	assert.Equal(t, "statistics file not found", got.Error)

	last, err := repo.LastCompleted(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRepository_ListForUser(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.now = func() time.Time { return at }
		_, err := repo.Start(ctx, 1, entities.SyncTriggerManual)
		require.NoError(t, err)
	}
	_, err := repo.Start(ctx, 2, entities.SyncTriggerManual)
	require.NoError(t, err)

	runs, err := repo.ListForUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].StartedAt.UTC())
	assert.Equal(t, base.Add(time.Hour), runs[1].StartedAt.UTC())
}

func TestRepository_FailStale(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start }
	old, err := repo.Start(ctx, 1, entities.SyncTriggerScheduled)
	require.NoError(t, err)

	repo.now = func() time.Time { return start.Add(time.Hour) }
	fresh, err := repo.Start(ctx, 1, entities.SyncTriggerScheduled)
	require.NoError(t, err)

	n, err := repo.FailStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, got.Status)
	assert.Equal(t, "sync was interrupted", got.Error)

	got, err = repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusRunning, got.Status)
}
