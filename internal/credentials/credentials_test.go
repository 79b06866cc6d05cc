package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/crypto"
	"github.com/mrlokans/readstats/internal/entities"
)

func setupStore(t *testing.T) (*Store, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "creds.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.WebDAVCredential{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	enc, err := crypto.NewEncryptorFromSecret("test-secret")
	require.NoError(t, err)
	return New(db, enc), db
}

func TestStore_SaveAndGet(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	err := store.Save(ctx, 1, Credentials{URL: "https://dav.example.com/", Login: "reader", Password: "s3cret", BasePath: "/ko"})
	require.NoError(t, err)

	creds, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "https://dav.example.com", creds.URL)
	assert.Equal(t, "reader", creds.Login)
	assert.Equal(t, "s3cret", creds.Password)
	assert.Equal(t, "/ko", creds.BasePath)

	var raw entities.WebDAVCredential
	require.NoError(t, db.Where("user_id = ?", 1).First(&raw).Error)
	assert.NotContains(t, raw.Password, "s3cret")
	assert.NotContains(t, raw.URL, "dav.example.com")
}

func TestStore_SaveUpserts(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 1, Credentials{URL: "https://a", Login: "a", Password: "a"}))
	require.NoError(t, store.Save(ctx, 1, Credentials{URL: "https://b", Login: "b", Password: "b"}))

	var count int64
	db.Model(&entities.WebDAVCredential{}).Count(&count)
	assert.Equal(t, int64(1), count)

	creds, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://b", creds.URL)
}

func TestStore_SaveRejectsIncomplete(t *testing.T) {
	store, _ := setupStore(t)

	err := store.Save(context.Background(), 1, Credentials{URL: "https://a", Login: "a"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStore_Absent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	creds, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, creds)

	ok, err := store.Has(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeleteAndList(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for _, id := range []uint{3, 1, 2} {
		require.NoError(t, store.Save(ctx, id, Credentials{URL: "https://a", Login: "a", Password: "a"}))
	}
	require.NoError(t, store.Delete(ctx, 2))

	ids, err := store.ConfiguredUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids)
}

func TestResolveSecret(t *testing.T) {
	t.Run("configured wins", func(t *testing.T) {
		secret, err := ResolveSecret("explicit", filepath.Join(t.TempDir(), "key"))
		require.NoError(t, err)
		assert.Equal(t, "explicit", secret)
	})

	t.Run("generates once and reuses", func(t *testing.T) {
		keyFile := filepath.Join(t.TempDir(), "key")

		first, err := ResolveSecret("", keyFile)
		require.NoError(t, err)
		assert.NotEmpty(t, first)

		info, err := os.Stat(keyFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		second, err := ResolveSecret("", keyFile)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unreadable key file is not replaced", func(t *testing.T) {
		keyFile := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.Mkdir(keyFile, 0700))

		_, err := ResolveSecret("", keyFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read encryption key")

		info, err := os.Stat(keyFile)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty key file", func(t *testing.T) {
		keyFile := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(keyFile, []byte("  \n"), 0600))

		_, err := ResolveSecret("", keyFile)
		assert.Error(t, err)

		data, err := os.ReadFile(keyFile)
		require.NoError(t, err)
		assert.Equal(t, "  \n", string(data))
	})
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"complete", Credentials{URL: "https://dav.example.com/remote.php/dav", Login: "a", Password: "b"}, false},
		{"plain http", Credentials{URL: "http://nas.local:8080", Login: "a", Password: "b"}, false},
		{"missing password", Credentials{URL: "https://dav.example.com", Login: "a"}, true},
		{"missing scheme", Credentials{URL: "dav.example.com", Login: "a", Password: "b"}, true},
		{"ftp", Credentials{URL: "ftp://dav.example.com", Login: "a", Password: "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
