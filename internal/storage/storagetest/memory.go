// Package storagetest provides an in-memory storage.Client for tests.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/readstats/internal/storage"
)

// Memory is a storage.Client backed by a map of file paths to contents.
// Directories exist implicitly as prefixes of stored files.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []string

	// Delay is applied to every call, honoring ctx cancellation.
	Delay time.Duration
	// Errors forces an error for any call on the given path.
	Errors map[string]error
	// BeforeDownload runs before a download returns its content.
	BeforeDownload func(path string)
}

func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}, Errors: map[string]error{}}
}

// Put stores content at p.
func (m *Memory) Put(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(p)] = content
}

// Remove deletes the file at p.
func (m *Memory) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, clean(p))
}

// Calls returns the "op path" log of every call made so far.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Memory) begin(ctx context.Context, op, p string) error {
	m.mu.Lock()
	m.calls = append(m.calls, op+" "+clean(p))
	err := m.Errors[clean(p)]
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *Memory) List(ctx context.Context, p string) ([]storage.FileInfo, error) {
	if err := m.begin(ctx, "list", p); err != nil {
		return nil, err
	}

	dir := clean(p)
	prefix := strings.TrimSuffix(dir, "/") + "/"

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]storage.FileInfo{}
	for name, content := range m.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			sub := rest[:i]
			seen[sub] = storage.FileInfo{Name: sub, Path: prefix + sub, IsDir: true}
			continue
		}
		seen[rest] = storage.FileInfo{Name: rest, Path: name, Size: int64(len(content))}
	}
	if len(seen) == 0 && dir != "/" {
		return nil, storage.ErrNotFound
	}

	entries := make([]storage.FileInfo, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *Memory) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := m.begin(ctx, "download", p); err != nil {
		return nil, err
	}
	if m.BeforeDownload != nil {
		m.BeforeDownload(clean(p))
	}

	m.mu.Lock()
	content, ok := m.files[clean(p)]
	m.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *Memory) Exists(ctx context.Context, p string) (bool, error) {
	if err := m.begin(ctx, "exists", p); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[clean(p)]
	return ok, nil
}

func (m *Memory) GetMetadata(ctx context.Context, p string) (*storage.FileInfo, error) {
	if err := m.begin(ctx, "stat", p); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[clean(p)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.FileInfo{Name: path.Base(p), Path: clean(p), Size: int64(len(content))}, nil
}

func clean(p string) string {
	return path.Clean("/" + p)
}
