// Package ratelimit limits how often each user may trigger expensive work,
// such as a manual library sync.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UserLimiter keeps an independent token bucket per user. Buckets idle for
// longer than the idle window are dropped by a background sweep.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[uint]*entry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerMinute allows n events per minute per user with a burst of n.
// n <= 0 disables limiting.
func PerMinute(n int) *UserLimiter {
	if n <= 0 {
		return New(rate.Inf, 1, 0)
	}
	return New(rate.Every(time.Minute/time.Duration(n)), n, 10*time.Minute)
}

// New creates a limiter. A positive idle starts the sweep goroutine; call
// Stop to end it.
func New(limit rate.Limit, burst int, idle time.Duration) *UserLimiter {
	l := &UserLimiter{
		limiters: make(map[uint]*entry),
		limit:    limit,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if idle > 0 {
		go l.sweep()
	}
	return l
}

// Allow reports whether userID may proceed now. Never blocks.
func (l *UserLimiter) Allow(userID uint) bool {
	return l.get(userID).Allow()
}

// Wait blocks until userID may proceed or ctx ends.
func (l *UserLimiter) Wait(ctx context.Context, userID uint) error {
	return l.get(userID).Wait(ctx)
}

func (l *UserLimiter) get(userID uint) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[userID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = e
	}
	e.lastSeen = l.now()
	return e.limiter
}

// Stop ends the sweep goroutine.
func (l *UserLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

func (l *UserLimiter) sweep() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.done:
			return
		}
	}
}

func (l *UserLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}
