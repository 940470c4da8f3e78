package shared

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker provides coarse single-holder locks, used to keep an operator
// from opening a second impersonation session through another console
// instance.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker constructs a RedisLocker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lock if free. The TTL bounds the hold so a crashed
// instance cannot pin the lock past the session deadline.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

// Release frees the lock.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, key).Err()
}
