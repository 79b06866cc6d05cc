package entities

import (
	"time"
)

// DefaultUsername is the account created at startup when no external auth is wired.
const DefaultUsername = "koreader_user"

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:255;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Books []Book `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
