package cache

import (
	"context"
	"sync"
	"time"

	"github.com/arflow/backend/internal/domain/shared"
)

// InMemoryRunLock implements shared.RunLock for single-instance deployments
// and tests.
type InMemoryRunLock struct {
	mu        sync.Mutex
	held      bool
	expiresAt time.Time
}

// NewInMemoryRunLock creates an in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{}
}

// Acquire attempts to take the lock
func (l *InMemoryRunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.held && now.Before(l.expiresAt) {
		return false, nil
	}
	l.held = true
	l.expiresAt = now.Add(ttl)
	return true, nil
}

// Release frees the lock
func (l *InMemoryRunLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// InMemorySendCounter implements shared.SendCounter for single-instance
// deployments and tests.
type InMemorySendCounter struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
}

// NewInMemorySendCounter creates an in-memory send counter
func NewInMemorySendCounter() *InMemorySendCounter {
	return &InMemorySendCounter{
		entries: make(map[string]*counterEntry),
	}
}

// Increment adds one to the named counter
func (c *InMemorySendCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	e, ok := c.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &counterEntry{expiresAt: now.Add(ttl)}
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Current returns the counter value, zero when absent or expired
func (c *InMemorySendCounter) Current(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

var (
	_ shared.RunLock     = (*InMemoryRunLock)(nil)
	_ shared.SendCounter = (*InMemorySendCounter)(nil)
)
