package entities

import (
	"time"
)

// Book is a durable library entry. Its identity across device exports is the
// content hash, never the integer id the device assigned to it.
type Book struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      uint    `gorm:"not null;uniqueIndex:idx_user_md5;index" json:"user_id"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	Author      string  `gorm:"size:255" json:"author"`
	ContentHash string  `gorm:"column:md5;size:64;not null;uniqueIndex:idx_user_md5" json:"md5"`
	TotalPages  int     `json:"total_pages"`
	Series      *string `gorm:"size:255" json:"series,omitempty"`
	Language    *string `gorm:"size:32" json:"language,omitempty"`
	CoverURL    string  `gorm:"column:cover_image_url;size:2048" json:"cover_image_url,omitempty"`

	Sessions   []ReadingSession `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"sessions,omitempty"`
	Highlights []Highlight      `gorm:"foreignKey:BookID;constraint:OnDelete:SET NULL" json:"highlights,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
