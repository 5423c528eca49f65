package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
)

const runLockKey = "dunning:run:lock"

// NewRedisClient creates a redis client from configuration and verifies the
// connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisRunLock implements shared.RunLock on a Redis SETNX key. Suitable for
// distributed deployments where multiple instances might trigger runs.
type RedisRunLock struct {
	client *redis.Client
	token  string
}

// NewRedisRunLock creates a Redis-backed run lock. The token identifies this
// holder so Release never frees a lock another instance re-acquired after our
// TTL lapsed.
func NewRedisRunLock(client *redis.Client, token string) *RedisRunLock {
	return &RedisRunLock{client: client, token: token}
}

// Acquire attempts to take the run lock atomically
func (l *RedisRunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, runLockKey, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// releaseScript deletes the lock only when this instance still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release frees the run lock if still held by this instance
func (l *RedisRunLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{runLockKey}, l.token).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// RedisSendCounter implements shared.SendCounter on Redis INCR with TTL.
type RedisSendCounter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSendCounter creates a Redis-backed send counter
func NewRedisSendCounter(client *redis.Client) *RedisSendCounter {
	return &RedisSendCounter{
		client:    client,
		keyPrefix: "dunning:sends:",
	}
}

// Increment adds one to the named counter, setting the window TTL when the
// counter is created
func (c *RedisSendCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	fullKey := c.keyPrefix + key
	count, err := c.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, fullKey, ttl).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
		}
	}
	return count, nil
}

// Current returns the counter value, zero when absent
func (c *RedisSendCounter) Current(ctx context.Context, key string) (int64, error) {
	count, err := c.client.Get(ctx, c.keyPrefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return count, nil
}

var (
	_ shared.RunLock     = (*RedisRunLock)(nil)
	_ shared.SendCounter = (*RedisSendCounter)(nil)
)
