// Package syncruns records the history of library sync attempts.
//
// # Usage
//
//	repo := syncruns.NewRepository(db)
//	run, err := repo.Start(ctx, userID, entities.SyncTriggerManual)
//	...
//	err = repo.Complete(ctx, run.ID, outcome)
package syncruns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/entities"
)

// staleAfter bounds how long a run may stay "running" before it is treated
// as interrupted by a process restart.
const staleAfter = 30 * time.Minute

// Outcome is the final state written to a run.
type Outcome struct {
	Succeeded       bool
	RemotePath      string
	BooksSynced     int
	SessionsSynced  int
	BooksCleared    int
	SessionsCleared int
	Error           string
}

// Repository handles all sync run database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new sync run repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Start inserts a running record for a new attempt.
func (r *Repository) Start(ctx context.Context, userID uint, trigger entities.SyncTrigger) (*entities.SyncRun, error) {
	run := &entities.SyncRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		Trigger:   trigger,
		Status:    entities.SyncStatusRunning,
		StartedAt: r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Complete marks a run as completed or failed.
func (r *Repository) Complete(ctx context.Context, id string, outcome Outcome) error {
	status := entities.SyncStatusCompleted
	if !outcome.Succeeded {
		status = entities.SyncStatusFailed
	}

	return r.db.WithContext(ctx).Model(&entities.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           status,
			"remote_path":      outcome.RemotePath,
			"books_synced":     outcome.BooksSynced,
			"sessions_synced":  outcome.SessionsSynced,
			"books_cleared":    outcome.BooksCleared,
			"sessions_cleared": outcome.SessionsCleared,
			"error":            outcome.Error,
			"completed_at":     r.now().UTC(),
		}).Error
}

// Get retrieves a run by ID.
func (r *Repository) Get(ctx context.Context, id string) (*entities.SyncRun, error) {
	var run entities.SyncRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListForUser returns the user's most recent runs, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uint, limit int) ([]entities.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []entities.SyncRun
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// LastCompleted returns the user's latest successful run, or nil.
func (r *Repository) LastCompleted(ctx context.Context, userID uint) (*entities.SyncRun, error) {
	var runs []entities.SyncRun
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, entities.SyncStatusCompleted).
		Order("started_at DESC").
		Limit(1).
		Find(&runs).Error
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// FailStale marks runs left "running" by a previous process as failed.
func (r *Repository) FailStale(ctx context.Context) (int64, error) {
	now := r.now().UTC()
	res := r.db.WithContext(ctx).Model(&entities.SyncRun{}).
		Where("status = ? AND started_at < ?", entities.SyncStatusRunning, now.Add(-staleAfter)).
		Updates(map[string]any{
			"status":       entities.SyncStatusFailed,
			"error":        "sync was interrupted",
			"completed_at": now,
		})
	return res.RowsAffected, res.Error
}
