package webdav_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readstats/internal/storage"
	"github.com/mrlokans/readstats/internal/storage/providers/webdav"
	"github.com/mrlokans/readstats/internal/storage/providers/webdav/davtest"
)

func newClient(srv *davtest.Server, password string) *webdav.Client {
	return webdav.NewClient(srv.URL, davtest.Login, password, webdav.Options{Timeout: 5 * time.Second})
}

func TestClient_ExistsAndMetadata(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Put(t, "/koreader/statistics.sqlite3", []byte("SQLite format 3\x00"))
	client := newClient(srv, davtest.Password)
	ctx := context.Background()

	ok, err := client.Exists(ctx, "/koreader/statistics.sqlite3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(ctx, "/koreader/statistics.sqlite")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := client.GetMetadata(ctx, "/koreader/statistics.sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "statistics.sqlite3", info.Name)
	assert.Equal(t, int64(16), info.Size)
	assert.False(t, info.IsDir)

	_, err = client.GetMetadata(ctx, "/nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClient_List(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Put(t, "/koreader/statistics.sqlite3", []byte("a"))
	srv.Put(t, "/koreader/settings/reader.lua", []byte("b"))
	client := newClient(srv, davtest.Password)

	entries, err := client.List(context.Background(), "/koreader")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "settings", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "/koreader/settings", entries[0].Path)
	assert.Equal(t, "statistics.sqlite3", entries[1].Name)
	assert.Equal(t, "/koreader/statistics.sqlite3", entries[1].Path)
}

func TestClient_Download(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Put(t, "/statistics.sqlite3", []byte("payload"))
	client := newClient(srv, davtest.Password)

	rc, err := client.Download(context.Background(), "/statistics.sqlite3")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = client.Download(context.Background(), "/missing.sqlite3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClient_WrongPassword(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Put(t, "/statistics.sqlite3", []byte("payload"))
	client := newClient(srv, "wrong")

	err := client.Ping(context.Background())
	assert.Error(t, err)

	_, err = client.Exists(context.Background(), "/statistics.sqlite3")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestClient_Ping(t *testing.T) {
	srv := davtest.NewServer(t)
	client := newClient(srv, davtest.Password)

	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_CanceledContext(t *testing.T) {
	srv := davtest.NewServer(t)
	client := newClient(srv, davtest.Password)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Exists(ctx, "/anything")
	assert.ErrorIs(t, err, context.Canceled)
}
