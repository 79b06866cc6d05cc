package books

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/entities"
)

// BookRef identifies the book an imported annotation belongs to.
type BookRef struct {
	Title       string
	Author      string
	ContentHash string
}

// ImportHighlights attaches annotations to the user's book with the given
// content hash, creating a placeholder book when the library has none yet.
// Annotations already stored for the same (page, created time) are skipped;
// annotations missing either value are never treated as duplicates.
func (r *Repository) ImportHighlights(ctx context.Context, userID uint, ref BookRef, highlights []entities.Highlight) (int, error) {
	if ref.ContentHash == "" {
		return 0, fmt.Errorf("book content hash is required")
	}

	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book := entities.Book{UserID: userID, ContentHash: ref.ContentHash}
		err := tx.Where("user_id = ? AND md5 = ?", userID, ref.ContentHash).
			Attrs(entities.Book{Title: placeholder(ref.Title, "Unknown Title"), Author: placeholder(ref.Author, "Unknown Author")}).
			FirstOrCreate(&book).Error
		if err != nil {
			return fmt.Errorf("failed to resolve book: %w", err)
		}

		var existing []entities.Highlight
		if err := tx.Where("user_id = ? AND book_hash = ?", userID, ref.ContentHash).Find(&existing).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, h := range existing {
			if key, ok := highlightKey(h); ok {
				seen[key] = struct{}{}
			}
		}

		for _, h := range highlights {
			if key, ok := highlightKey(h); ok {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}

			h.ID = 0
			h.UserID = userID
			h.BookID = &book.ID
			h.BookHash = ref.ContentHash
			if err := tx.Create(&h).Error; err != nil {
				return fmt.Errorf("failed to create highlight: %w", err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// GetHighlightsForUser returns the user's highlights, newest first.
func (r *Repository) GetHighlightsForUser(ctx context.Context, userID uint, limit, offset int) ([]entities.Highlight, error) {
	var highlights []entities.Highlight
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_time DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&highlights).Error
	return highlights, err
}

// GetHighlightsForBook retrieves all highlights for a book.
func (r *Repository) GetHighlightsForBook(ctx context.Context, bookID uint) ([]entities.Highlight, error) {
	var highlights []entities.Highlight
	err := r.db.WithContext(ctx).Where("book_id = ?", bookID).
		Order("page ASC, created_time ASC").Find(&highlights).Error
	return highlights, err
}

// highlightKey identifies a highlight by page and creation time. ok is false
// when either is missing, like NULLs in a unique index.
func highlightKey(h entities.Highlight) (key string, ok bool) {
	if h.Page == nil || h.CreatedTime == nil {
		return "", false
	}
	return fmt.Sprintf("%d|%s", *h.Page, h.CreatedTime.UTC().Format(time.RFC3339Nano)), true
}

func placeholder(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
