package entities

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerTask      SyncTrigger = "task"
	SyncTriggerCLI       SyncTrigger = "cli"
)

// SyncRun records one sync attempt. It is written outside the library
// transaction so failed attempts stay visible.
type SyncRun struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	UserID          uint        `gorm:"not null;index" json:"user_id"`
	Trigger         SyncTrigger `gorm:"size:20" json:"trigger"`
	Status          SyncStatus  `gorm:"size:20;index" json:"status"`
	RemotePath      string      `gorm:"size:1024" json:"remote_path,omitempty"`
	BooksSynced     int         `json:"books_synced"`
	SessionsSynced  int         `json:"sessions_synced"`
	BooksCleared    int         `json:"books_cleared"`
	SessionsCleared int         `json:"sessions_cleared"`
	Error           string      `gorm:"type:text" json:"error,omitempty"`
	StartedAt       time.Time   `gorm:"index" json:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
