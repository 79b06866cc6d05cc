// Package credentials stores per-user WebDAV access encrypted at rest.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readstats/internal/crypto"
	"github.com/mrlokans/readstats/internal/entities"
)

// DefaultKeyFileName is used when no secret is configured.
const DefaultKeyFileName = ".readstats-credentials-key"

var ErrInvalidCredentials = errors.New("webdav url, login and password are required")

// Credentials is the decrypted form of entities.WebDAVCredential.
type Credentials struct {
	URL      string
	Login    string
	Password string
	BasePath string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.URL) == "" || c.Login == "" || c.Password == "" {
		return ErrInvalidCredentials
	}
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be http(s)://host", ErrInvalidCredentials)
	}
	return nil
}

// Store provides encrypted credential storage
type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

func New(db *gorm.DB, encryptor *crypto.Encryptor) *Store {
	return &Store{db: db, encryptor: encryptor}
}

// ResolveSecret returns the configured secret, or the contents of keyFile,
// generating and persisting a random one on first use.
func ResolveSecret(configured, keyFile string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if keyFile == "" {
		keyFile = DefaultKeyFileName
	}

	data, err := os.ReadFile(keyFile)
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("encryption key file %s is empty", keyFile)
		}
		return secret, nil
	case !errors.Is(err, fs.ErrNotExist):
		// never replace a key that exists but could not be read
		return "", fmt.Errorf("failed to read encryption key from %s: %w", keyFile, err)
	}

	secret, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFile, err)
	}

	slog.Warn("generated new credential encryption key; set ENCRYPTION_KEY to manage it explicitly", "path", keyFile)
	return secret, nil
}

// Save encrypts and upserts the user's credentials.
func (s *Store) Save(ctx context.Context, userID uint, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	encURL, err := s.encryptor.Encrypt(strings.TrimRight(creds.URL, "/"))
	if err != nil {
		return fmt.Errorf("failed to encrypt url: %w", err)
	}
	encLogin, err := s.encryptor.Encrypt(creds.Login)
	if err != nil {
		return fmt.Errorf("failed to encrypt login: %w", err)
	}
	encPassword, err := s.encryptor.Encrypt(creds.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	record := &entities.WebDAVCredential{
		UserID:   userID,
		URL:      encURL,
		Login:    encLogin,
		Password: encPassword,
		BasePath: creds.BasePath,
	}

	result := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Assign(map[string]any{
			"url":        encURL,
			"login":      encLogin,
			"password":   encPassword,
			"base_path":  creds.BasePath,
			"updated_at": time.Now(),
		}).
		FirstOrCreate(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save credentials: %w", result.Error)
	}
	return nil
}

// Get returns the decrypted credentials, or nil when none are stored.
func (s *Store) Get(ctx context.Context, userID uint) (*Credentials, error) {
	var record entities.WebDAVCredential
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	url, err := s.encryptor.Decrypt(record.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt url: %w", err)
	}
	login, err := s.encryptor.Decrypt(record.Login)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt login: %w", err)
	}
	password, err := s.encryptor.Decrypt(record.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt password: %w", err)
	}

	return &Credentials{URL: url, Login: login, Password: password, BasePath: record.BasePath}, nil
}

// Has reports whether credentials are stored without decrypting them.
func (s *Store) Has(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.WebDAVCredential{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check credentials: %w", err)
	}
	return count > 0, nil
}

// Delete removes the user's credentials.
func (s *Store) Delete(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entities.WebDAVCredential{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// ConfiguredUserIDs lists every user with stored credentials.
func (s *Store) ConfiguredUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&entities.WebDAVCredential{}).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list configured users: %w", err)
	}
	return ids, nil
}
