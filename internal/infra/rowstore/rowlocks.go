package rowstore

import (
	"context"
	"sync"
	"time"
)

// LockKey names one locked row.
type LockKey struct {
	Table string
	ID    int64
}

// RowLocks is an in-process exclusive row-lock table for stores without
// native row locking. Locks are owned by a transaction token and released
// all at once when that transaction ends. Re-acquiring a held key with the
// same owner succeeds immediately.
type RowLocks struct {
	mu   sync.Mutex
	held map[LockKey]*heldLock
}

type heldLock struct {
	owner    string
	released chan struct{}
}

// NewRowLocks returns an empty lock table.
func NewRowLocks() *RowLocks {
	return &RowLocks{held: make(map[LockKey]*heldLock)}
}

// Acquire takes key for owner. With a zero wait it fails immediately when
// another owner holds the key; otherwise it waits up to wait for a release.
func (l *RowLocks) Acquire(ctx context.Context, key LockKey, owner string, wait time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		l.mu.Lock()
		cur, ok := l.held[key]
		if !ok {
			l.held[key] = &heldLock{owner: owner, released: make(chan struct{})}
			l.mu.Unlock()
			return true, nil
		}
		if cur.owner == owner {
			l.mu.Unlock()
			return true, nil
		}
		released := cur.released
		l.mu.Unlock()

		if wait <= 0 {
			return false, nil
		}
		select {
		case <-released:
		case <-deadline:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Release frees key if owner holds it.
func (l *RowLocks) Release(key LockKey, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.owner == owner {
		close(cur.released)
		delete(l.held, key)
	}
}

// ReleaseAll frees every key held by owner and returns how many were held.
func (l *RowLocks) ReleaseAll(owner string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, cur := range l.held {
		if cur.owner != owner {
			continue
		}
		close(cur.released)
		delete(l.held, key)
		n++
	}
	return n
}

// Holder returns the owner currently holding key.
func (l *RowLocks) Holder(key LockKey) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	if !ok {
		return "", false
	}
	return cur.owner, true
}
