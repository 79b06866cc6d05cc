// Package books provides database operations for a user's synchronized
// library: books, their reading sessions and the annotations attached to them.
//
// The library is only ever written wholesale through ReplaceLibrary; there is
// no incremental book update path.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	err := repo.ReplaceLibrary(ctx, userID, func(w books.Writer) error {
//		...
//	})
package books

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/entities"
)

// Repository handles all book and highlight database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LibraryStats is a read-only summary of a user's reconciled library.
type LibraryStats struct {
	TotalBooks      int64
	TotalSessions   int64
	LastReadingTime *time.Time
}

// GetAllBooksForUser returns the user's books ordered by title.
func (r *Repository) GetAllBooksForUser(ctx context.Context, userID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

// FindBookByContentHash returns nil without error when the user has no such book.
func (r *Repository) FindBookByContentHash(ctx context.Context, userID uint, hash string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("user_id = ? AND md5 = ?", userID, hash).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetSessionsForBook returns a book's sessions in reading order.
func (r *Repository) GetSessionsForBook(ctx context.Context, bookID uint) ([]entities.ReadingSession, error) {
	var sessions []entities.ReadingSession
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("start_time ASC, page ASC, id ASC").
		Find(&sessions).Error
	return sessions, err
}

// GetLibraryStats reflects whatever library state is committed at call time.
func (r *Repository) GetLibraryStats(ctx context.Context, userID uint) (*LibraryStats, error) {
	db := r.db.WithContext(ctx)
	stats := &LibraryStats{}

	if err := db.Model(&entities.Book{}).Where("user_id = ?", userID).Count(&stats.TotalBooks).Error; err != nil {
		return nil, err
	}
	if err := userSessions(db, userID).Count(&stats.TotalSessions).Error; err != nil {
		return nil, err
	}

	var latest entities.ReadingSession
	err := userSessions(db, userID).
		Order("reading_sessions.start_time DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}
	if latest.ID != 0 {
		t := latest.StartTime
		stats.LastReadingTime = &t
	}

	return stats, nil
}

func userSessions(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&entities.ReadingSession{}).
		Joins("JOIN books ON books.id = reading_sessions.book_id").
		Where("books.user_id = ?", userID)
}
