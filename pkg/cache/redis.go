package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// commitScript writes KEYS[2] only while KEYS[1] still holds the caller's token.
var commitScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// Redis is a Store backed by Redis.
type Redis struct {
	redis      *redis.Client
	staleGrace time.Duration
	clock      clockwork.Clock
}

// NewRedis creates a Redis backed store.
func NewRedis(redisClient *redis.Client, opts ...Option) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	o := getOpts(opts)
	return &Redis{
		redis:      redisClient,
		staleGrace: o.staleGrace,
		clock:      o.clock,
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		// unreadable entries are dropped so the next rebuild replaces them
		_, _ = r.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores an entry, retained for its TTL plus the stale grace period.
// Entries that are already expired are not stored.
func (r *Redis) Set(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, retention, err := r.encode(entry)
	if err != nil || retention <= 0 {
		return err
	}

	if err := r.redis.Set(ctx, key, data, retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes an entry and reports whether it existed.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Del(ctx, key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// AcquireLock sets lockKey to token if it is absent, expiring after ttl.
// An expired lock is gone from Redis, so reclaiming it is the same atomic SET NX.
func (r *Redis) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	ok, err := r.redis.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		CacheErrors.WithLabelValues("lock").Inc()
		return false, fmt.Errorf("redis set nx: %w", err)
	}
	return ok, nil
}

// ReleaseLock deletes lockKey if it still holds token.
func (r *Redis) ReleaseLock(ctx context.Context, lockKey, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.redis, []string{lockKey}, token).Int()
	if err != nil {
		CacheErrors.WithLabelValues("unlock").Inc()
		return false, fmt.Errorf("redis release lock: %w", err)
	}
	return n == 1, nil
}

// SetIfLockHeld stores entry under key only if lockKey still holds token.
func (r *Redis) SetIfLockHeld(ctx context.Context, lockKey, token, key string, entry *Entry) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("cache entry cannot be nil")
	}

	data, retention, err := r.encode(entry)
	if err != nil {
		return false, err
	}
	if retention <= 0 {
		// nothing to write, but report whether the lease was still valid
		held, err := r.redis.Get(ctx, lockKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			CacheErrors.WithLabelValues("commit").Inc()
			return false, fmt.Errorf("redis get lock: %w", err)
		}
		return held == token, nil
	}

	n, err := commitScript.Run(ctx, r.redis, []string{lockKey, key}, token, data, retention.Milliseconds()).Int()
	if err != nil {
		CacheErrors.WithLabelValues("commit").Inc()
		return false, fmt.Errorf("redis commit: %w", err)
	}
	return n == 1, nil
}

func (r *Redis) encode(entry *Entry) ([]byte, time.Duration, error) {
	retention := entry.retention(r.clock.Now(), r.staleGrace)
	if retention <= 0 {
		return nil, 0, nil
	}
	if retention < time.Millisecond {
		retention = time.Millisecond
	}
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return nil, 0, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, retention, nil
}
