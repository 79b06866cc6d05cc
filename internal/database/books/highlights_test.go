package books

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readstats/internal/entities"
)

func intPtr(v int) *int { return &v }

func TestImportHighlights_CreatesPlaceholderBook(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "reader")

	created, err := repo.ImportHighlights(ctx, user, BookRef{ContentHash: "h1"}, []entities.Highlight{
		{Text: "first", Page: intPtr(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	book, err := repo.FindBookByContentHash(ctx, user, "h1")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "Unknown Title", book.Title)
	assert.Equal(t, "Unknown Author", book.Author)
}

func TestImportHighlights_Deduplicates(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "reader")
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	batch := []entities.Highlight{
		{Text: "a", Page: intPtr(1), CreatedTime: &ts},
		{Text: "a again", Page: intPtr(1), CreatedTime: &ts},
		{Text: "b", Page: intPtr(2), CreatedTime: &ts},
	}
	created, err := repo.ImportHighlights(ctx, user, BookRef{Title: "T", ContentHash: "h1"}, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = repo.ImportHighlights(ctx, user, BookRef{Title: "T", ContentHash: "h1"}, batch)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestImportHighlights_KeepsHighlightsWithoutPageOrTime(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "reader")
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	batch := []entities.Highlight{
		{Text: "first quote"},
		{Text: "second quote"},
		{Text: "third quote"},
		{Text: "page only", Page: intPtr(5)},
		{Text: "page only again", Page: intPtr(5)},
		{Text: "time only", CreatedTime: &ts},
	}
	created, err := repo.ImportHighlights(ctx, user, BookRef{ContentHash: "h1"}, batch)
	require.NoError(t, err)
	assert.Equal(t, 6, created)

	highlights, err := repo.GetHighlightsForUser(ctx, user, 0, 0)
	require.NoError(t, err)
	assert.Len(t, highlights, 6)
}

func TestImportHighlights_RequiresHash(t *testing.T) {
	repo, db := setupTestDB(t)
	user := createUser(t, db, "reader")

	_, err := repo.ImportHighlights(context.Background(), user, BookRef{Title: "T"}, nil)
	assert.Error(t, err)
}

func TestReattachHighlights_SurvivesLibraryRebuild(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "reader")
	seedLibrary(t, repo, user, "h1", "h2")

	_, err := repo.ImportHighlights(ctx, user, BookRef{ContentHash: "h1"}, []entities.Highlight{{Text: "keep me", Page: intPtr(4)}})
	require.NoError(t, err)
	_, err = repo.ImportHighlights(ctx, user, BookRef{ContentHash: "h2"}, []entities.Highlight{{Text: "orphan", Page: intPtr(9)}})
	require.NoError(t, err)

	var reattached int64
	err = repo.ReplaceLibrary(ctx, user, func(w Writer) error {
		if err := w.Clear(); err != nil {
			return err
		}
		book := &entities.Book{Title: "Rebuilt", ContentHash: "h1"}
		if err := w.CreateBook(book); err != nil {
			return err
		}
		var err error
		reattached, err = w.ReattachHighlights(map[string]uint{"h1": book.ID})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reattached)

	highlights, err := repo.GetHighlightsForUser(ctx, user, 0, 0)
	require.NoError(t, err)
	require.Len(t, highlights, 2)

	byText := map[string]entities.Highlight{}
	for _, h := range highlights {
		byText[h.Text] = h
	}
	rebuilt, err := repo.FindBookByContentHash(ctx, user, "h1")
	require.NoError(t, err)
	require.NotNil(t, byText["keep me"].BookID)
	assert.Equal(t, rebuilt.ID, *byText["keep me"].BookID)
	assert.Nil(t, byText["orphan"].BookID)
	assert.Equal(t, "h2", byText["orphan"].BookHash)
}
