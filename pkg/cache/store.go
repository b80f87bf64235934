package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a key/value store of entries.
//
// Get returns entries that are logically expired as long as the backend
// still retains them; callers decide whether a stale entry is usable.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// DefaultStaleGrace is how long positive entries are retained past expiry.
const DefaultStaleGrace = 24 * time.Hour

type options struct {
	staleGrace time.Duration
	clock      clockwork.Clock
}

// Option configures a backend.
type Option func(*options)

// WithStaleGrace sets how long positive entries are retained past expiry.
func WithStaleGrace(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.staleGrace = d
		}
	}
}

// WithClock sets the clock used to compute retention and lock expiry.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func getOpts(opts []Option) options {
	o := options{
		staleGrace: DefaultStaleGrace,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
