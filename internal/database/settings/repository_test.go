package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "settings.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Setting{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func TestRepository_SetSetting_New(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.SetSetting(ctx, 1, "theme", "dark")
	require.NoError(t, err)

	setting, err := repo.GetSetting(ctx, 1, "theme")
	require.NoError(t, err)
	assert.Equal(t, "theme", setting.Key)
	assert.Equal(t, "dark", setting.Value)
	assert.Equal(t, uint(1), setting.UserID)
}

func TestRepository_SetSetting_Update(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSetting(ctx, 1, "theme", "light"))
	require.NoError(t, repo.SetSetting(ctx, 1, "theme", "dark"))

	setting, err := repo.GetSetting(ctx, 1, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", setting.Value)

	all, err := repo.ListByKey(ctx, "theme")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_SettingsArePerUser(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSetting(ctx, 2, "theme", "light"))
	require.NoError(t, repo.SetSetting(ctx, 1, "theme", "dark"))

	_, err := repo.GetSetting(ctx, 3, "theme")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	all, err := repo.ListByKey(ctx, "theme")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint(1), all[0].UserID)
	assert.Equal(t, "dark", all[0].Value)
	assert.Equal(t, uint(2), all[1].UserID)
}

func TestRepository_GetSetting_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetSetting(context.Background(), 1, "nonexistent")

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSetting(ctx, 1, "to-delete", "value"))
	require.NoError(t, repo.SetSetting(ctx, 2, "to-delete", "value"))

	require.NoError(t, repo.DeleteSetting(ctx, 1, "to-delete"))

	_, err := repo.GetSetting(ctx, 1, "to-delete")
	assert.Error(t, err)
	_, err = repo.GetSetting(ctx, 2, "to-delete")
	assert.NoError(t, err)
}

func TestRepository_DeleteSetting_NonExistent(t *testing.T) {
	repo := setupTestDB(t)

	// Should not error even if key doesn't exist
	err := repo.DeleteSetting(context.Background(), 1, "nonexistent")
	assert.NoError(t, err)
}
