package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/entities"
)

// HighlightStore imports and lists annotations.
type HighlightStore interface {
	ImportHighlights(ctx context.Context, userID uint, ref books.BookRef, highlights []entities.Highlight) (int, error)
	GetHighlightsForUser(ctx context.Context, userID uint, limit, offset int) ([]entities.Highlight, error)
}

// HighlightsController handles annotation import and listing.
type HighlightsController struct {
	store HighlightStore
}

func NewHighlightsController(store HighlightStore) *HighlightsController {
	return &HighlightsController{store: store}
}

// ImportHighlightsRequest carries annotations for one book, matched to the
// library by content hash.
type ImportHighlightsRequest struct {
	Book struct {
		Title  string `json:"title"`
		Author string `json:"author"`
		MD5    string `json:"md5" binding:"required"`
	} `json:"book" binding:"required"`
	Highlights []HighlightPayload `json:"highlights" binding:"required"`
}

type HighlightPayload struct {
	Text        string     `json:"text"`
	Note        string     `json:"note"`
	Chapter     string     `json:"chapter"`
	Page        *int       `json:"page"`
	CreatedTime *time.Time `json:"created_time"`
}

// Import handles POST /api/highlights/import
func (hc *HighlightsController) Import(c *gin.Context) {
	var req ImportHighlightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book.md5 and highlights are required")
		return
	}

	hash := strings.TrimSpace(req.Book.MD5)
	if hash == "" {
		respondBadRequest(c, "book.md5 is required")
		return
	}

	highlights := make([]entities.Highlight, 0, len(req.Highlights))
	for _, h := range req.Highlights {
		if strings.TrimSpace(h.Text) == "" && strings.TrimSpace(h.Note) == "" {
			continue
		}
		highlights = append(highlights, entities.Highlight{
			Text:        h.Text,
			Note:        h.Note,
			Chapter:     h.Chapter,
			Page:        h.Page,
			CreatedTime: h.CreatedTime,
		})
	}

	ref := books.BookRef{Title: req.Book.Title, Author: req.Book.Author, ContentHash: hash}
	imported, err := hc.store.ImportHighlights(c.Request.Context(), GetUserID(c), ref, highlights)
	if err != nil {
		respondInternalError(c, err, "import highlights")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  len(req.Highlights) - imported,
	})
}

// List handles GET /api/highlights?limit=N&offset=M
func (hc *HighlightsController) List(c *gin.Context) {
	limit := parseLimit(c, "limit", 50, 500)
	offset := parseLimit(c, "offset", 0, 1<<30)

	highlights, err := hc.store.GetHighlightsForUser(c.Request.Context(), GetUserID(c), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list highlights")
		return
	}
	c.JSON(http.StatusOK, gin.H{"highlights": highlights, "limit": limit, "offset": offset})
}
