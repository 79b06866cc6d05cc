package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/statsync"
)

// Syncer runs a library sync for a user.
type Syncer interface {
	Sync(ctx context.Context, userID uint, opts statsync.SyncOptions) statsync.Result
}

// SyncUserTask syncs one user's library in the background.
type SyncUserTask struct {
	UserID     uint   `json:"user_id"`
	RemotePath string `json:"remote_path,omitempty"`
}

// Config returns the queue configuration for user sync tasks.
func (t SyncUserTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_user",
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncUserProcessor creates a processor function for SyncUserTask. A sync
// that ends unsuccessfully fails the task so backlite can retry it.
func SyncUserProcessor(syncer Syncer, logger *slog.Logger) backlite.QueueProcessor[SyncUserTask] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, task SyncUserTask) error {
		if syncer == nil {
			return errors.New("syncer not configured")
		}

		res := syncer.Sync(ctx, task.UserID, statsync.SyncOptions{
			RemotePath: task.RemotePath,
			Trigger:    entities.SyncTriggerTask,
		})
		if !res.Success {
			return fmt.Errorf("sync user %d: %s", task.UserID, res.Error)
		}

		logger.Info("background sync finished",
			"user_id", task.UserID,
			"run_id", res.RunID,
			"books", res.BooksSynced,
			"sessions", res.SessionsSynced,
		)
		return nil
	}
}

// NewSyncUserQueue creates a backlite queue for user sync tasks.
func NewSyncUserQueue(syncer Syncer, logger *slog.Logger) backlite.Queue {
	return backlite.NewQueue(SyncUserProcessor(syncer, logger))
}
