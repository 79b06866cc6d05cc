package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

var ErrNotFound = errors.New("remote path not found")

// FileInfo contains metadata about a file or directory in a remote store
type FileInfo struct {
	Name       string
	Path       string
	IsDir      bool
	Size       int64
	ModifiedAt time.Time
	ETag       string // Provider-specific version tag (if available)
}

// Client is the read-only capability the sync engine needs from a remote
// file store. Implementations must honor ctx cancellation.
type Client interface {
	// List returns entries in the specified directory path
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Download retrieves the contents of a file. Returns ErrNotFound when
	// the path does not exist.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves file info without downloading content
	GetMetadata(ctx context.Context, path string) (*FileInfo, error)
}

// DownloadToFile streams remotePath into dst and returns the number of bytes
// written. dst is not closed.
func DownloadToFile(ctx context.Context, client Client, remotePath string, dst *os.File) (int64, error) {
	reader, err := client.Download(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	n, err := io.Copy(dst, reader)
	if err != nil {
		return n, fmt.Errorf("failed to copy %s: %w", remotePath, err)
	}
	if err := dst.Sync(); err != nil {
		return n, fmt.Errorf("failed to flush %s: %w", dst.Name(), err)
	}
	return n, nil
}

// MaxListDepth bounds how many directory levels ListRecursive descends.
const MaxListDepth = 8

// ListRecursive returns every file below dir, descending at most
// MaxListDepth levels. Directories themselves are not returned.
func ListRecursive(ctx context.Context, client Client, dir string) ([]FileInfo, error) {
	return listRecursive(ctx, client, dir, 0)
}

func listRecursive(ctx context.Context, client Client, dir string, depth int) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := client.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		if !entry.IsDir {
			files = append(files, entry)
			continue
		}
		if depth+1 >= MaxListDepth {
			continue
		}
		nested, err := listRecursive(ctx, client, entry.Path, depth+1)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", entry.Path, err)
		}
		files = append(files, nested...)
	}
	return files, nil
}

// FilterFiles keeps the files matching keep.
func FilterFiles(files []FileInfo, keep func(FileInfo) bool) []FileInfo {
	var out []FileInfo
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// FindLatest returns the most recently modified file, or nil for an empty
// list. Ties go to the earlier entry.
func FindLatest(files []FileInfo) *FileInfo {
	var latest *FileInfo
	for i := range files {
		if latest == nil || files[i].ModifiedAt.After(latest.ModifiedAt) {
			latest = &files[i]
		}
	}
	return latest
}

// SortEntries orders directories first, then by name.
func SortEntries(entries []FileInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
}
