package entities

import (
	"time"
)

// Highlight is an annotation imported separately from the statistics export.
//
// BookHash keeps the link to its book across library rebuilds: the book row a
// highlight points at is recreated on every sync, so BookID is nullable and
// re-resolved from BookHash afterwards.
type Highlight struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	BookID      *uint      `gorm:"index" json:"book_id,omitempty"`
	BookHash    string     `gorm:"size:64;not null;index" json:"book_hash"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	Note        string     `gorm:"type:text" json:"note,omitempty"`
	Chapter     string     `gorm:"size:255" json:"chapter,omitempty"`
	Page        *int       `json:"page,omitempty"`
	CreatedTime *time.Time `json:"created_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
