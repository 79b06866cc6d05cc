package books

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/entities"
)

const sessionBatchSize = 500

// Counts is the size of a user's library.
type Counts struct {
	Books    int
	Sessions int
}

// Writer mutates one user's library inside a ReplaceLibrary transaction.
type Writer interface {
	Counts() (Counts, error)
	// Clear removes every book and session of the user. Highlights are
	// detached, not deleted.
	Clear() error
	CreateBook(book *entities.Book) error
	CreateSessions(sessions []entities.ReadingSession) error
	// ReattachHighlights points detached highlights at the books whose
	// content hash they carry and returns how many were reattached.
	ReattachHighlights(bookIDs map[string]uint) (int64, error)
}

// ReplaceLibrary runs fn in a single transaction. Any error returned by fn
// rolls back every change made through the Writer.
func (r *Repository) ReplaceLibrary(ctx context.Context, userID uint, fn func(w Writer) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txWriter{tx: tx, userID: userID})
	})
}

type txWriter struct {
	tx     *gorm.DB
	userID uint
}

func (w *txWriter) Counts() (Counts, error) {
	var books, sessions int64
	if err := w.tx.Model(&entities.Book{}).Where("user_id = ?", w.userID).Count(&books).Error; err != nil {
		return Counts{}, err
	}
	if err := userSessions(w.tx, w.userID).Count(&sessions).Error; err != nil {
		return Counts{}, err
	}
	return Counts{Books: int(books), Sessions: int(sessions)}, nil
}

func (w *txWriter) Clear() error {
	err := w.tx.Model(&entities.Highlight{}).
		Where("user_id = ? AND book_id IS NOT NULL", w.userID).
		Update("book_id", nil).Error
	if err != nil {
		return err
	}

	owned := w.tx.Model(&entities.Book{}).Select("id").Where("user_id = ?", w.userID)
	if err := w.tx.Where("book_id IN (?)", owned).Delete(&entities.ReadingSession{}).Error; err != nil {
		return err
	}

	return w.tx.Where("user_id = ?", w.userID).Delete(&entities.Book{}).Error
}

func (w *txWriter) CreateBook(book *entities.Book) error {
	book.UserID = w.userID
	return w.tx.Omit("Sessions", "Highlights").Create(book).Error
}

func (w *txWriter) CreateSessions(sessions []entities.ReadingSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return w.tx.CreateInBatches(sessions, sessionBatchSize).Error
}

func (w *txWriter) ReattachHighlights(bookIDs map[string]uint) (int64, error) {
	if len(bookIDs) == 0 {
		return 0, nil
	}

	var hashes []string
	err := w.tx.Model(&entities.Highlight{}).
		Distinct("book_hash").
		Where("user_id = ? AND book_id IS NULL", w.userID).
		Pluck("book_hash", &hashes).Error
	if err != nil {
		return 0, err
	}

	var total int64
	for _, hash := range hashes {
		id, ok := bookIDs[hash]
		if !ok {
			continue
		}
		res := w.tx.Model(&entities.Highlight{}).
			Where("user_id = ? AND book_hash = ? AND book_id IS NULL", w.userID, hash).
			Update("book_id", id)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
