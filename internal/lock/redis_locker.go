// Package lock provides the shared action lock used when several consoles
// work against the same live store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the key is held by someone else or
// has already expired.
var ErrNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements per-record action locks using Redis
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owner  string
}

// NewRedisLocker connects to Redis and returns a locker whose keys expire
// after ttl, so a crashed console cannot keep a record locked.
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ttl), nil
}

// NewRedisLockerWithClient creates a locker from an existing Redis client
func NewRedisLockerWithClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		prefix: "voicecrm:lock:",
		ttl:    ttl,
		owner:  uuid.NewString(),
	}
}

func (l *RedisLocker) key(recordKey string) string {
	return l.prefix + recordKey
}

// Acquire takes the lock for recordKey. It returns false without error when
// another holder has it.
func (l *RedisLocker) Acquire(ctx context.Context, recordKey string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(recordKey), l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", recordKey, err)
	}
	return ok, nil
}

// Release gives the lock back if this locker still holds it.
func (l *RedisLocker) Release(ctx context.Context, recordKey string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key(recordKey)}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", recordKey, err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// Close closes the Redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
