package statsync

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/readstats/internal/entities"
)

// Status is a read-only summary of a user's library and last sync.
type Status struct {
	TotalBooks      int64             `json:"total_books"`
	TotalSessions   int64             `json:"total_sessions"`
	LastReadingTime *time.Time        `json:"last_reading_time"`
	HasWebDAVConfig bool              `json:"has_webdav_config"`
	Syncing         bool              `json:"syncing"`
	LastSync        *entities.SyncRun `json:"last_sync,omitempty"`
}

// Status reports library counts and whether remote sync is configured.
// It never touches the remote store.
func (s *Service) Status(ctx context.Context, userID uint) (*Status, error) {
	stats, err := s.library.GetLibraryStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read library stats: %w", err)
	}
	configured, err := s.creds.Has(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check webdav credentials: %w", err)
	}
	last, err := s.runs.LastCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	}

	return &Status{
		TotalBooks:      stats.TotalBooks,
		TotalSessions:   stats.TotalSessions,
		LastReadingTime: stats.LastReadingTime,
		HasWebDAVConfig: configured,
		Syncing:         s.IsSyncing(userID),
		LastSync:        last,
	}, nil
}

// History returns the user's most recent sync runs, newest first.
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]entities.SyncRun, error) {
	return s.runs.ListForUser(ctx, userID, limit)
}
