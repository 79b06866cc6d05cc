package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of remote calls in flight across every client it
// wraps and applies a deadline to each call. A slow remote server therefore
// holds at most the pool's slots, never unrelated request goroutines.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewPool allows up to size concurrent remote calls, each bounded by timeout.
// A non-positive timeout disables the per-call deadline.
func NewPool(size int, timeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), timeout: timeout}
}

// Wrap returns a Client whose calls are scheduled through the pool.
func (p *Pool) Wrap(c Client) Client {
	return &limitedClient{pool: p, inner: c}
}

// acquire waits for a slot and returns a call-scoped context plus its release.
func (p *Pool) acquire(ctx context.Context) (context.Context, func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for remote call slot: %w", err)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			p.sem.Release(1)
		})
	}
	return callCtx, release, nil
}

type limitedClient struct {
	pool  *Pool
	inner Client
}

func (c *limitedClient) List(ctx context.Context, path string) ([]FileInfo, error) {
	callCtx, release, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.inner.List(callCtx, path)
}

func (c *limitedClient) Exists(ctx context.Context, path string) (bool, error) {
	callCtx, release, err := c.pool.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	return c.inner.Exists(callCtx, path)
}

func (c *limitedClient) GetMetadata(ctx context.Context, path string) (*FileInfo, error) {
	callCtx, release, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.inner.GetMetadata(callCtx, path)
}

// Download keeps its slot and deadline until the returned reader is closed,
// since the transfer itself is the remote call.
func (c *limitedClient) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	callCtx, release, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := c.inner.Download(callCtx, path)
	if err != nil {
		release()
		return nil, err
	}
	return &releasingReader{ReadCloser: rc, release: release}, nil
}

type releasingReader struct {
	io.ReadCloser
	release func()
}

func (r *releasingReader) Close() error {
	err := r.ReadCloser.Close()
	r.release()
	return err
}
