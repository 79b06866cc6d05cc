package koreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mrlokans/readstats/internal/storage"
)

var ErrDownloadFailed = errors.New("download failed")

// LocalSnapshot is a downloaded statistics file. Close deletes it.
type LocalSnapshot struct {
	Path       string
	RemotePath string
	Size       int64

	once   sync.Once
	logger *slog.Logger
}

// Close removes the local file. Safe to call more than once; removal
// failures are logged, never returned to the sync result.
func (s *LocalSnapshot) Close() error {
	var err error
	s.once.Do(func() {
		err = os.Remove(s.Path)
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove snapshot", "path", s.Path, "error", err)
			return
		}
		err = nil
	})
	return err
}

// Retriever downloads statistics files into a private temp directory.
type Retriever struct {
	tempDir string
	logger  *slog.Logger
}

// NewRetriever stores snapshots in tempDir, or os.TempDir() when empty.
func NewRetriever(tempDir string, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{tempDir: tempDir, logger: logger.With("component", "retriever")}
}

// Retrieve downloads remotePath to a uniquely named local file. Existence is
// checked again right before the transfer. On any failure no local file is
// left behind and the error wraps ErrDownloadFailed.
func (r *Retriever) Retrieve(ctx context.Context, client storage.Client, userID uint, remotePath string) (*LocalSnapshot, error) {
	exists, err := client.Exists(ctx, remotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: checking %s: %w", ErrDownloadFailed, remotePath, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s no longer exists", ErrDownloadFailed, remotePath)
	}

	f, err := os.CreateTemp(r.tempDir, fmt.Sprintf("statistics_%d_*.sqlite3", userID))
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %w", ErrDownloadFailed, err)
	}
	snap := &LocalSnapshot{Path: f.Name(), RemotePath: remotePath, logger: r.logger}

	n, copyErr := storage.DownloadToFile(ctx, client, remotePath, f)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("%w: %w", ErrDownloadFailed, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("%w: closing %s: %w", ErrDownloadFailed, snap.Path, closeErr)
	default:
		info, statErr := os.Stat(snap.Path)
		if statErr != nil {
			err = fmt.Errorf("%w: local file missing: %w", ErrDownloadFailed, statErr)
		} else if info.Size() == 0 {
			err = fmt.Errorf("%w: %s is empty", ErrDownloadFailed, remotePath)
		} else {
			snap.Size = info.Size()
		}
	}
	if err != nil {
		snap.Close()
		return nil, err
	}

	r.logger.Debug("snapshot downloaded", "remote", remotePath, "local", snap.Path, "bytes", n)
	return snap, nil
}

// With downloads remotePath, hands the local copy to fn and deletes it
// afterwards, whatever fn does.
func (r *Retriever) With(ctx context.Context, client storage.Client, userID uint, remotePath string, fn func(*LocalSnapshot) error) error {
	snap, err := r.Retrieve(ctx, client, userID, remotePath)
	if err != nil {
		return err
	}
	defer snap.Close()
	return fn(snap)
}
