package statsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/koreader"
)

// LibraryStore runs a full library replacement in one transaction.
type LibraryStore interface {
	ReplaceLibrary(ctx context.Context, userID uint, fn func(w books.Writer) error) error
}

// ReconcileResult counts what a replacement wrote and removed.
type ReconcileResult struct {
	BooksSynced          int
	SessionsSynced       int
	BooksCleared         int
	SessionsCleared      int
	BooksSkipped         int
	EventsSkipped        int
	HighlightsReattached int64
}

// Reconciler rebuilds a user's library from one snapshot.
//
// Book ids inside a snapshot are renumbered on every export, so events can
// only be tied to books within the snapshot they came from. The library is
// therefore never diffed: it is cleared and rebuilt, and the
// ephemeral id -> md5 -> stored id chain is recomputed on every run.
type Reconciler struct {
	store  LibraryStore
	logger *slog.Logger
}

func NewReconciler(store LibraryStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger.With("component", "reconciler")}
}

// Reconcile replaces the user's books and sessions with the snapshot's. On
// error nothing is changed. Once started the transaction is not interrupted
// by ctx cancellation; it commits or rolls back on its own.
func (r *Reconciler) Reconcile(ctx context.Context, userID uint, snap *koreader.Snapshot) (ReconcileResult, error) {
	var res ReconcileResult

	err := r.store.ReplaceLibrary(context.WithoutCancel(ctx), userID, func(w books.Writer) error {
		res = ReconcileResult{}

		before, err := w.Counts()
		if err != nil {
			return fmt.Errorf("failed to count library: %w", err)
		}
		res.BooksCleared, res.SessionsCleared = before.Books, before.Sessions

		if err := w.Clear(); err != nil {
			return fmt.Errorf("failed to clear library: %w", err)
		}

		storedIDs, err := r.createBooks(w, snap.Books, &res)
		if err != nil {
			return err
		}

		sessions := r.resolveEvents(snap, storedIDs, &res)
		if err := w.CreateSessions(sessions); err != nil {
			return fmt.Errorf("failed to create sessions: %w", err)
		}
		res.SessionsSynced = len(sessions)

		res.HighlightsReattached, err = w.ReattachHighlights(storedIDs)
		if err != nil {
			return fmt.Errorf("failed to reattach highlights: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	r.logger.Info("library replaced",
		"user_id", userID,
		"books", res.BooksSynced,
		"sessions", res.SessionsSynced,
		"books_cleared", res.BooksCleared,
		"sessions_cleared", res.SessionsCleared,
		"books_skipped", res.BooksSkipped,
		"events_skipped", res.EventsSkipped,
		"highlights_reattached", res.HighlightsReattached,
	)
	return res, nil
}

// createBooks stores every book that has a content hash and returns
// md5 -> stored id. The first record wins when a hash repeats.
func (r *Reconciler) createBooks(w books.Writer, raw []koreader.RawBook, res *ReconcileResult) (map[string]uint, error) {
	storedIDs := make(map[string]uint, len(raw))
	for _, rb := range raw {
		if rb.MD5 == "" {
			res.BooksSkipped++
			r.logger.Debug("skipping book without md5", "title", rb.Title)
			continue
		}
		if _, dup := storedIDs[rb.MD5]; dup {
			res.BooksSkipped++
			r.logger.Debug("skipping duplicate md5", "md5", rb.MD5, "title", rb.Title)
			continue
		}

		book := &entities.Book{
			Title:       rb.Title,
			Author:      rb.Author,
			ContentHash: rb.MD5,
			TotalPages:  rb.Pages,
			Series:      rb.Series,
			Language:    rb.Language,
		}
		if err := w.CreateBook(book); err != nil {
			return nil, fmt.Errorf("failed to create book %s: %w", rb.MD5, err)
		}
		storedIDs[rb.MD5] = book.ID
	}
	res.BooksSynced = len(storedIDs)
	return storedIDs, nil
}

// resolveEvents maps each event to a stored book through the snapshot's own
// id -> md5 table. Events that cannot be resolved or parsed are skipped.
func (r *Reconciler) resolveEvents(snap *koreader.Snapshot, storedIDs map[string]uint, res *ReconcileResult) []entities.ReadingSession {
	ephemeral := make(map[int64]string, len(snap.Books))
	for _, rb := range snap.Books {
		if rb.MD5 == "" {
			continue
		}
		if _, dup := ephemeral[rb.ID]; !dup {
			ephemeral[rb.ID] = rb.MD5
		}
	}

	sessions := make([]entities.ReadingSession, 0, len(snap.Events))
	for _, ev := range snap.Events {
		if ev.BookID == nil || ev.Page == nil || ev.StartTime == nil {
			res.EventsSkipped++
			continue
		}
		hash, ok := ephemeral[*ev.BookID]
		if !ok {
			res.EventsSkipped++
			continue
		}
		bookID, ok := storedIDs[hash]
		if !ok {
			res.EventsSkipped++
			continue
		}
		start, err := koreader.ParseTimestamp(ev.StartTime)
		if err != nil {
			res.EventsSkipped++
			r.logger.Debug("skipping event with bad start time", "book_id", *ev.BookID, "page", *ev.Page, "error", err)
			continue
		}
		// a zero start time marks an unrecorded event
		if start.Unix() == 0 {
			res.EventsSkipped++
			continue
		}

		session := entities.ReadingSession{
			BookID:    bookID,
			Page:      int(*ev.Page),
			StartTime: start,
			Duration:  int(ev.Duration),
		}
		if ev.TotalPages != nil {
			tp := int(*ev.TotalPages)
			session.TotalPagesAtTime = &tp
		}
		sessions = append(sessions, session)
	}
	return sessions
}
