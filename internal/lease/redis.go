package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key returns the Redis key of a rule's lease.
func Key(ruleID string) string {
	return "recur:lease:" + ruleID
}

var renewScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	else
		return 0
	end`)

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	else
		return 0
	end`)

// RedisLocker keeps leases as Redis keys with a TTL, for workers that do not
// share a database file.
type RedisLocker struct {
	rdb redis.UniversalClient
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, Key(key), holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}
	if ok {
		return true, nil
	}
	// Re-acquiring our own lease extends it.
	err = l.Renew(ctx, key, holder, ttl)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotHeld):
		return false, nil
	default:
		return false, err
	}
}

func (l *RedisLocker) Renew(ctx context.Context, key, holder string, ttl time.Duration) error {
	n, err := renewScript.Run(ctx, l.rdb, []string{Key(key)}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renewing lease: %w", err)
	}
	if n != 1 {
		return ErrNotHeld
	}
	return nil
}

func (l *RedisLocker) Release(ctx context.Context, key, holder string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{Key(key)}, holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	if n != 1 {
		return ErrNotHeld
	}
	return nil
}
