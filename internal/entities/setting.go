package entities

import (
	"time"
)

// Setting is a per-user preference stored as a string.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_settings_user_key" json:"user_id"`
	Key       string    `gorm:"size:100;not null;uniqueIndex:idx_settings_user_key" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Cron schedule of the user's own sync job
	SettingKeySyncSchedule = "sync_schedule"
)
