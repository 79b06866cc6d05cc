package statsync

import (
	"context"
	"sync"
)

// userLocks serializes work per user while letting different users proceed
// in parallel. Waiting honors ctx.
type userLocks struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[uint]*userLock{}}
}

func (l *userLocks) lock(ctx context.Context, userID uint) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &userLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(userID, lk)
		})
	}, nil
}

func (l *userLocks) release(userID uint, lk *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, userID)
	}
}

// held reports whether a sync for userID is running or waiting.
func (l *userLocks) held(userID uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.locks[userID]
	return ok
}
