// Package koreadertest writes KOReader statistics files for tests.
package koreadertest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Layout selects which page statistics table is created.
type Layout int

const (
	// PageStatData is the current layout with a duration column.
	PageStatData Layout = iota
	// PageStat is the older layout with a period column.
	PageStat
	// NoEvents creates no page statistics table at all.
	NoEvents
)

type Book struct {
	ID       int64
	Title    any
	Authors  any
	Pages    any
	MD5      any
	Series   any
	Language any
}

type Event struct {
	BookID     any
	Page       any
	StartTime  any
	Duration   any
	TotalPages any
}

type Fixture struct {
	Layout Layout
	Books  []Book
	Events []Event
	// NoBookTable skips creating the book table.
	NoBookTable bool
	// MinimalBookColumns omits series and language.
	MinimalBookColumns bool
	// NoTotalPages omits the total_pages event column.
	NoTotalPages bool
}

// Write creates a statistics file under t.TempDir() and returns its path.
func Write(t testing.TB, fx Fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statistics.sqlite3")
	WriteTo(t, path, fx)
	return path
}

// WriteTo creates a statistics file at path.
func WriteTo(t testing.TB, path string, fx Fixture) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()

	exec := func(q string, args ...any) {
		t.Helper()
		if _, err := db.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	if !fx.NoBookTable {
		cols := "id INTEGER PRIMARY KEY, title TEXT, authors TEXT, pages INTEGER, md5 TEXT"
		if !fx.MinimalBookColumns {
			cols += ", series TEXT, language TEXT"
		}
		exec("CREATE TABLE book (" + cols + ")")

		for _, b := range fx.Books {
			if fx.MinimalBookColumns {
				exec("INSERT INTO book (id, title, authors, pages, md5) VALUES (?, ?, ?, ?, ?)",
					b.ID, b.Title, b.Authors, b.Pages, b.MD5)
			} else {
				exec("INSERT INTO book (id, title, authors, pages, md5, series, language) VALUES (?, ?, ?, ?, ?, ?, ?)",
					b.ID, b.Title, b.Authors, b.Pages, b.MD5, b.Series, b.Language)
			}
		}
	}

	var table, duration string
	switch fx.Layout {
	case PageStatData:
		table, duration = "page_stat_data", "duration"
	case PageStat:
		table, duration = "page_stat", "period"
	default:
		return
	}

	cols := []string{"id_book INTEGER", "page INTEGER", "start_time INTEGER", duration + " INTEGER"}
	if !fx.NoTotalPages {
		cols = append(cols, "total_pages INTEGER")
	}
	exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", ")))

	for _, e := range fx.Events {
		if fx.NoTotalPages {
			exec(fmt.Sprintf("INSERT INTO %s (id_book, page, start_time, %s) VALUES (?, ?, ?, ?)", table, duration),
				e.BookID, e.Page, e.StartTime, e.Duration)
		} else {
			exec(fmt.Sprintf("INSERT INTO %s (id_book, page, start_time, %s, total_pages) VALUES (?, ?, ?, ?, ?)", table, duration),
				e.BookID, e.Page, e.StartTime, e.Duration, e.TotalPages)
		}
	}
}

// TwoBooks is a small library: books 1 and 2 with hashes h1 and h2, and
// three events, two on book 1 and one on book 2.
func TwoBooks() Fixture {
	return Fixture{
		Layout: PageStatData,
		Books: []Book{
			{ID: 1, Title: "Dune", Authors: "Frank Herbert", Pages: 412, MD5: "h1", Series: "Dune #1", Language: "en"},
			{ID: 2, Title: "Solaris", Authors: "Stanisław Lem", Pages: 204, MD5: "h2"},
		},
		Events: []Event{
			{BookID: 1, Page: 1, StartTime: 1700000000, Duration: 30, TotalPages: 412},
			{BookID: 1, Page: 2, StartTime: 1700000060, Duration: 45, TotalPages: 412},
			{BookID: 2, Page: 10, StartTime: 1700003600, Duration: 120, TotalPages: 204},
		},
	}
}
