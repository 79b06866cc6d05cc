package koreader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var ErrInvalidSnapshot = errors.New("invalid statistics file")

const (
	defaultTitle  = "Unknown Title"
	defaultAuthor = "Unknown Author"
)

// eventLayout is one known shape of the page statistics table.
type eventLayout struct {
	table    string
	duration string
}

// eventLayouts are tried in order; the first whose table and columns exist wins.
var eventLayouts = []eventLayout{
	{table: "page_stat_data", duration: "duration"},
	{table: "page_stat", duration: "period"},
}

var requiredBookColumns = []string{"id", "title", "authors", "pages", "md5"}

// Extractor reads raw records out of a statistics file.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract opens the file read-only. A missing table or column only empties
// the affected sequence. A file that cannot be opened or queried is an
// error, so a damaged download never looks like an empty library.
func (e *Extractor) Extract(ctx context.Context, localPath string) (*Snapshot, error) {
	db, err := openReadOnly(localPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	schema, err := readSchema(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	snap := &Snapshot{}

	snap.Books, err = e.extractBooks(ctx, db, schema)
	if err != nil {
		return nil, err
	}

	snap.Events, snap.EventSource, err = e.extractEvents(ctx, db, schema)
	if err != nil {
		return nil, err
	}

	e.logger.Info("snapshot extracted",
		"books", len(snap.Books),
		"events", len(snap.Events),
		"event_source", snap.EventSource,
	)
	return snap, nil
}

func openReadOnly(localPath string) (*sql.DB, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro&immutable=1"}).String()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// schema maps table (or view) names to their column sets.
type schema map[string]map[string]bool

func (s schema) has(table string, columns ...string) bool {
	cols, ok := s[table]
	if !ok {
		return false
	}
	for _, c := range columns {
		if !cols[c] {
			return false
		}
	}
	return true
}

func readSchema(ctx context.Context, db *sql.DB) (schema, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s := make(schema, len(tables))
	for _, table := range tables {
		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		s[table] = cols
	}
	return s, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (e *Extractor) extractBooks(ctx context.Context, db *sql.DB, s schema) ([]RawBook, error) {
	if !s.has("book", requiredBookColumns...) {
		e.logger.Warn("book table missing or incomplete, no books extracted")
		return nil, nil
	}

	series, language := "NULL", "NULL"
	if s.has("book", "series") {
		series = "series"
	}
	if s.has("book", "language") {
		language = "language"
	}

	query := fmt.Sprintf(`SELECT id, title, authors, pages, md5, %s, %s FROM book ORDER BY id`, series, language)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []RawBook
	for rows.Next() {
		var (
			id                  any
			title, authors, md5 sql.NullString
			pages               any
			seriesV, languageV  sql.NullString
		)
		if err := rows.Scan(&id, &title, &authors, &pages, &md5, &seriesV, &languageV); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}

		bookID, ok := toInt64(id)
		if !ok {
			e.logger.Debug("skipping book without integer id", "md5", md5.String)
			continue
		}

		book := RawBook{
			ID:     bookID,
			Title:  orDefault(title, defaultTitle),
			Author: orDefault(authors, defaultAuthor),
			MD5:    md5.String,
		}
		if n, ok := toInt64(pages); ok {
			book.Pages = int(n)
		}
		if seriesV.Valid && seriesV.String != "" {
			book.Series = &seriesV.String
		}
		if languageV.Valid && languageV.String != "" {
			book.Language = &languageV.String
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}
	return books, nil
}

func (e *Extractor) extractEvents(ctx context.Context, db *sql.DB, s schema) ([]RawEvent, string, error) {
	for _, layout := range eventLayouts {
		if !s.has(layout.table, "id_book", "page", "start_time", layout.duration) {
			continue
		}

		totalPages := "NULL"
		if s.has(layout.table, "total_pages") {
			totalPages = "total_pages"
		}

		query := fmt.Sprintf(`SELECT id_book, page, start_time, %s, %s FROM %s`, layout.duration, totalPages, layout.table)
		events, err := scanEvents(ctx, db, query)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", layout.table, err)
		}
		return events, layout.table, nil
	}

	e.logger.Warn("no known page statistics table, no events extracted")
	return nil, "", nil
}

func scanEvents(ctx context.Context, db *sql.DB, query string) ([]RawEvent, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RawEvent
	for rows.Next() {
		var bookID, page, startTime, duration, totalPages any
		if err := rows.Scan(&bookID, &page, &startTime, &duration, &totalPages); err != nil {
			return nil, err
		}

		event := RawEvent{
			BookID:     int64Ptr(bookID),
			Page:       int64Ptr(page),
			StartTime:  startTime,
			TotalPages: int64Ptr(totalPages),
		}
		if d, ok := toInt64(duration); ok {
			event.Duration = d
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func orDefault(v sql.NullString, fallback string) string {
	if !v.Valid || v.String == "" {
		return fallback
	}
	return v.String
}
