// Package lock provides the run-exclusion lock interface. A harness
// run mutates shared service state (members, accounts), so at most one
// run may target an environment at a time.
package lock

import (
	"context"
	"time"
)

// Locker acquires the environment lock for a harness run.
type Locker interface {
	// Acquire acquires the lock for the given environment key.
	// Returns a LockHandle for extending and releasing the lock, or an
	// error when another run already holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

// LockHandle represents a held environment lock.
type LockHandle interface {
	// Extend extends the TTL of the held lock.
	Extend(ctx context.Context, ttl time.Duration) error

	// Release releases the lock. Releasing an already-released handle
	// is a no-op.
	Release(ctx context.Context) error

	// Key returns the locked environment key.
	Key() string
}
