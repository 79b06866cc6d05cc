package entities

import (
	"time"
)

// ReadingSession is one page-reading event. Duplicates within a single
// export are kept as distinct rows.
type ReadingSession struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	BookID           uint      `gorm:"not null;index:idx_sessions_book_id" json:"book_id"`
	Page             int       `gorm:"not null" json:"page"`
	StartTime        time.Time `gorm:"not null;index:idx_sessions_start_time" json:"start_time"`
	Duration         int       `gorm:"not null" json:"duration"`
	TotalPagesAtTime *int      `json:"total_pages_at_time,omitempty"`
}
