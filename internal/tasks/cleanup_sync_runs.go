package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"
)

// StaleRunCleaner closes sync runs abandoned by an earlier process.
type StaleRunCleaner interface {
	FailStale(ctx context.Context) (int64, error)
}

// CleanupSyncRunsTask marks abandoned "running" sync runs as failed.
type CleanupSyncRunsTask struct{}

// Config returns the queue configuration for sync run cleanup tasks.
func (t CleanupSyncRunsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_sync_runs",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// CleanupSyncRunsProcessor creates a processor function for CleanupSyncRunsTask.
func CleanupSyncRunsProcessor(cleaner StaleRunCleaner, logger *slog.Logger) backlite.QueueProcessor[CleanupSyncRunsTask] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, _ CleanupSyncRunsTask) error {
		if cleaner == nil {
			return errors.New("sync run cleaner not configured")
		}

		n, err := cleaner.FailStale(ctx)
		if err != nil {
			return fmt.Errorf("cleanup sync runs: %w", err)
		}
		if n > 0 {
			logger.Info("closed interrupted sync runs", "count", n)
		}
		return nil
	}
}

// NewCleanupSyncRunsQueue creates a backlite queue for sync run cleanup.
func NewCleanupSyncRunsQueue(cleaner StaleRunCleaner, logger *slog.Logger) backlite.Queue {
	return backlite.NewQueue(CleanupSyncRunsProcessor(cleaner, logger))
}
