// Package maintenance runs periodic housekeeping against the contact store.
package maintenance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock guards a maintenance job so only one replica runs it at a time.
type Lock interface {
	// Acquire reports whether the lock was taken.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLock is a SET NX lock with a random owner token, released only by
// its owner.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
}

// NewRedisLock creates a lock on "lock:<key>" that expires after ttl.
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return &RedisLock{
		client: client,
		key:    "lock:" + key,
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// localLock is used when no Redis is configured; a single process needs no
// cross-replica coordination.
type localLock struct{}

func (localLock) Acquire(context.Context) (bool, error) { return true, nil }

func (localLock) Release(context.Context) error { return nil }
