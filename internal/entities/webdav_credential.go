package entities

import (
	"time"
)

// WebDAVCredential stores a user's remote store access.
type WebDAVCredential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	// URL, Login and Password are base64-encoded AES-256-GCM ciphertext
	URL      string `gorm:"type:text;not null" json:"-"`
	Login    string `gorm:"type:text;not null" json:"-"`
	Password string `gorm:"type:text;not null" json:"-"`

	// BasePath is the directory searched first when looking for the statistics file
	BasePath string `gorm:"size:1024" json:"base_path,omitempty"`
}

func (WebDAVCredential) TableName() string {
	return "webdav_credentials"
}
