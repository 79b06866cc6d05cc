// Package settings provides database operations for per-user settings.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	setting, err := repo.GetSetting(ctx, userID, entities.SettingKeySyncSchedule)
package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/readstats/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSetting retrieves a user's setting by key. It returns
// gorm.ErrRecordNotFound when the setting was never stored.
func (r *Repository) GetSetting(ctx context.Context, userID uint, key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// SetSetting creates or updates a user's setting.
func (r *Repository) SetSetting(ctx context.Context, userID uint, key, value string) error {
	setting := entities.Setting{UserID: userID, Key: key, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

// DeleteSetting removes a user's setting. Deleting a missing setting is not
// an error.
func (r *Repository) DeleteSetting(ctx context.Context, userID uint, key string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		Delete(&entities.Setting{}).Error
}

// ListByKey returns every user's value for key, ordered by user.
func (r *Repository) ListByKey(ctx context.Context, key string) ([]entities.Setting, error) {
	var settings []entities.Setting
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Order("user_id").
		Find(&settings).Error
	return settings, err
}
