package shared

import (
	"context"
	"time"
)

// RunLock serializes dunning runs across instances. Acquire is atomic; the
// TTL bounds how long a crashed run can hold the lock.
type RunLock interface {
	// Acquire attempts to take the lock. Returns false when another run holds it.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	// Release frees the lock. Releasing an unheld lock is a no-op.
	Release(ctx context.Context) error
}

// SendCounter tracks rolling send volume for cap enforcement. Counters expire
// with their window, so a stuck process cannot block sends forever.
type SendCounter interface {
	// Increment adds one to the named counter, creating it with the TTL when
	// absent, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Current returns the counter value, zero when absent.
	Current(ctx context.Context, key string) (int64, error)
}
