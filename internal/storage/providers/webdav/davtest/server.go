// Package davtest runs an in-memory WebDAV server for tests.
package davtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/net/webdav"
)

const (
	Login    = "reader"
	Password = "s3cret"
)

// Server is a basic-auth protected WebDAV server backed by webdav.NewMemFS.
type Server struct {
	*httptest.Server
	FS webdav.FileSystem

	requests atomic.Int64
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{FS: webdav.NewMemFS()}
	dav := &webdav.Handler{
		FileSystem: s.FS,
		LockSystem: webdav.NewMemLS(),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		login, password, ok := r.BasicAuth()
		if !ok || login != Login || password != Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="davtest"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Put writes content at p, creating parent directories.
func (s *Server) Put(t testing.TB, p string, content []byte) {
	t.Helper()
	ctx := context.Background()

	dir := "/"
	for _, part := range strings.Split(strings.Trim(path.Dir(p), "/"), "/") {
		if part == "" {
			continue
		}
		dir = path.Join(dir, part)
		if err := s.FS.Mkdir(ctx, dir, 0o755); err != nil && !os.IsExist(err) {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	f, err := s.FS.OpenFile(ctx, p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// PutFile copies a local file to p.
func (s *Server) PutFile(t testing.TB, p, local string) {
	t.Helper()
	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read %s: %v", local, err)
	}
	s.Put(t, p, data)
}

// Requests reports how many HTTP requests the server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}
