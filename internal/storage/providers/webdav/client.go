// Package webdav implements storage.Client over the WebDAV protocol.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/mrlokans/readstats/internal/storage"
)

// Client implements storage.Client for a WebDAV server
type Client struct {
	dav *gowebdav.Client
}

// Options configures the underlying HTTP transport.
type Options struct {
	// Timeout is a hard cap on any single HTTP exchange, independent of ctx.
	Timeout   time.Duration
	Transport http.RoundTripper
}

// NewClient creates a WebDAV client for the server rooted at url.
func NewClient(url, login, password string, opts Options) *Client {
	dav := gowebdav.NewClient(url, login, password)
	if opts.Timeout > 0 {
		dav.SetTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		dav.SetTransport(opts.Transport)
	}
	return &Client{dav: dav}
}

// Ping verifies the server is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, c.dav.Connect()
	})
	return err
}

func (c *Client) List(ctx context.Context, dir string) ([]storage.FileInfo, error) {
	infos, err := call(ctx, func() ([]os.FileInfo, error) {
		return c.dav.ReadDir(dir)
	})
	if err != nil {
		return nil, translate("list", dir, err)
	}

	entries := make([]storage.FileInfo, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, toFileInfo(path.Join("/", dir, fi.Name()), fi))
	}
	storage.SortEntries(entries)
	return entries, nil
}

func (c *Client) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := call(ctx, func() (io.ReadCloser, error) {
		return c.dav.ReadStream(p)
	})
	if err != nil {
		return nil, translate("download", p, err)
	}
	return newCtxReader(ctx, rc), nil
}

func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.GetMetadata(ctx, p)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) GetMetadata(ctx context.Context, p string) (*storage.FileInfo, error) {
	fi, err := call(ctx, func() (os.FileInfo, error) {
		return c.dav.Stat(p)
	})
	if err != nil {
		return nil, translate("stat", p, err)
	}
	info := toFileInfo(path.Clean("/"+p), fi)
	return &info, nil
}

func toFileInfo(p string, fi os.FileInfo) storage.FileInfo {
	info := storage.FileInfo{
		Name:       fi.Name(),
		Path:       p,
		IsDir:      fi.IsDir(),
		Size:       fi.Size(),
		ModifiedAt: fi.ModTime(),
	}
	if f, ok := fi.(gowebdav.File); ok {
		info.ETag = f.ETag()
	} else if f, ok := fi.(*gowebdav.File); ok {
		info.ETag = f.ETag()
	}
	return info
}

func translate(op, p string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("webdav %s %s: %w", op, p, storage.ErrNotFound)
	}
	return fmt.Errorf("webdav %s %s: %w", op, p, err)
}

// call runs fn, which cannot be interrupted, and abandons it when ctx ends.
// The client's own timeout bounds how long an abandoned call lingers.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			// close a stream that arrives after we gave up on it
			if r := <-done; r.err == nil {
				if c, ok := any(r.v).(io.Closer); ok {
					c.Close()
				}
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}

// ctxReader closes the body when ctx ends so a stalled transfer unblocks.
type ctxReader struct {
	ctx  context.Context
	rc   io.ReadCloser
	stop func() bool
}

func newCtxReader(ctx context.Context, rc io.ReadCloser) *ctxReader {
	r := &ctxReader{ctx: ctx, rc: rc}
	r.stop = context.AfterFunc(ctx, func() { rc.Close() })
	return r
}

func (r *ctxReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && r.ctx.Err() != nil {
		return n, r.ctx.Err()
	}
	return n, err
}

func (r *ctxReader) Close() error {
	r.stop()
	return r.rc.Close()
}
