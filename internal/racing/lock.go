package racing

import (
	"context"
	"time"
)

// Mutex is a lock whose acquisition can be abandoned when ctx expires,
// used by the pool's waiter queue (§4.6) and by routing table refresh to
// bound how long a caller waits.
type Mutex interface {
	// TryLock attempts to acquire the lock before ctx's deadline. With no
	// deadline it blocks until acquired.
	TryLock(ctx context.Context) bool
	// Unlock releases the lock. Returns false if the lock was not held.
	Unlock() bool
}

// NewMutex returns an unlocked Mutex.
func NewMutex() Mutex {
	return &contextMutex{ch: make(chan struct{}, 1)}
}

type contextMutex struct {
	ch chan struct{}
}

func (m *contextMutex) TryLock(ctx context.Context) bool {
	deadline, hasDeadline := ctx.Deadline()
	err := ctx.Err()
	switch {
	case !hasDeadline && err == nil:
		m.ch <- struct{}{}
		return true
	case err != nil || deadline.Before(time.Now()):
		return false
	}

	select {
	case m.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *contextMutex) Unlock() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}

// LockTimeoutError is returned by callers that give up waiting on a Mutex.
type LockTimeoutError string

func (e LockTimeoutError) Error() string { return string(e) }
