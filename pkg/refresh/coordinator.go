// Package refresh coordinates rebuilds of cache entries across processes.
//
// A rebuild runs only while its caller holds a lease on the entry's lock key.
// Leases expire after MaxRebuild, so a crashed holder never blocks a key for
// longer than that. A result is committed with a compare-and-swap on the lease
// token: if the lease expired and was reclaimed meanwhile, the write is dropped.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrBusy is returned by TryAcquire when another holder owns the lease.
var ErrBusy = errors.New("rebuild already in progress")

// DefaultMaxRebuild bounds how long a lease is held.
const DefaultMaxRebuild = 10 * time.Minute

// LockBackend provides the atomic primitives the coordinator relies on.
type LockBackend interface {
	// AcquireLock sets lockKey to token if absent or expired.
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)

	// ReleaseLock removes lockKey if it still holds token.
	ReleaseLock(ctx context.Context, lockKey, token string) (bool, error)

	// SetIfLockHeld stores entry under key if lockKey still holds token.
	SetIfLockHeld(ctx context.Context, lockKey, token, key string, entry *cache.Entry) (bool, error)
}

// Lease is the right to rebuild one cache key.
type Lease struct {
	Key        string
	Token      string
	AcquiredAt time.Time
	Deadline   time.Time
}

// Expired reports whether the lease is past its deadline.
func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.Deadline)
}

// Config holds coordinator configuration.
type Config struct {
	// MaxRebuild is the lease lifetime.
	MaxRebuild time.Duration

	// Clock is used for lease timestamps (default: real clock).
	Clock clockwork.Clock
}

// Coordinator grants and releases rebuild leases.
type Coordinator struct {
	backend    LockBackend
	keys       cache.Keys
	maxRebuild time.Duration
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// NewCoordinator creates a coordinator on top of backend.
func NewCoordinator(backend LockBackend, keys cache.Keys, cfg Config) *Coordinator {
	if backend == nil {
		panic("lock backend cannot be nil")
	}
	if cfg.MaxRebuild <= 0 {
		cfg.MaxRebuild = DefaultMaxRebuild
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		backend:    backend,
		keys:       keys,
		maxRebuild: cfg.MaxRebuild,
		clock:      cfg.Clock,
		logger:     logging.NewLogger("refresh"),
	}
}

// MaxRebuild returns the lease lifetime.
func (c *Coordinator) MaxRebuild() time.Duration {
	return c.maxRebuild
}

// TryAcquire requests the lease for key. It never blocks on another holder:
// when the lease is taken it returns ErrBusy.
func (c *Coordinator) TryAcquire(ctx context.Context, key string) (*Lease, error) {
	token := uuid.NewString()
	lockKey := c.keys.Lock(key)

	ok, err := c.backend.AcquireLock(ctx, lockKey, token, c.maxRebuild)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		leasesBusy.Inc()
		c.logger.Debug().Str("cache_key", key).Msg("Lease busy")
		return nil, ErrBusy
	}

	now := c.clock.Now()
	leasesAcquired.Inc()
	c.logger.Debug().
		Str("cache_key", key).
		Str("token", token).
		Dur("ttl", c.maxRebuild).
		Msg("Lease acquired")

	return &Lease{
		Key:        key,
		Token:      token,
		AcquiredAt: now,
		Deadline:   now.Add(c.maxRebuild),
	}, nil
}

// Release gives the lease back. Releasing a lease that already expired, or
// was reclaimed by another holder, is a no-op.
func (c *Coordinator) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}

	released, err := c.backend.ReleaseLock(ctx, c.keys.Lock(lease.Key), lease.Token)
	if err != nil {
		leasesReleased.WithLabelValues("error").Inc()
		return fmt.Errorf("release lease %s: %w", lease.Key, err)
	}
	if !released {
		leasesReleased.WithLabelValues("lost").Inc()
		c.logger.Warn().
			Str("cache_key", lease.Key).
			Str("token", lease.Token).
			Msg("Lease already expired on release")
		return nil
	}

	leasesReleased.WithLabelValues("released").Inc()
	c.logger.Debug().
		Str("cache_key", lease.Key).
		Dur("duration", c.clock.Since(lease.AcquiredAt)).
		Msg("Lease released")
	return nil
}

// Commit writes entry under key only while lease is still held. It returns
// false when the lease was lost and the write was discarded.
func (c *Coordinator) Commit(ctx context.Context, lease *Lease, key string, entry *cache.Entry) (bool, error) {
	if lease == nil {
		return false, fmt.Errorf("commit %s: nil lease", key)
	}

	written, err := c.backend.SetIfLockHeld(ctx, c.keys.Lock(lease.Key), lease.Token, key, entry)
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", key, err)
	}
	if !written {
		discardedWrites.Inc()
		c.logger.Warn().
			Str("cache_key", key).
			Str("token", lease.Token).
			Dur("held", c.clock.Since(lease.AcquiredAt)).
			Msg("Lease lost before commit, discarding rebuild result")
	}
	return written, nil
}
