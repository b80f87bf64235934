package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultMemorySize is the default entry capacity of the memory backend.
const DefaultMemorySize = 4096

type memoryItem struct {
	entry   *Entry
	evictAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// Memory is an in-process Store with the same semantics as Redis.
// Capacity is bounded; least recently used entries are evicted first.
type Memory struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, memoryItem]
	locks      map[string]memoryLock
	staleGrace time.Duration
	clock      clockwork.Clock
}

// NewMemory creates a memory store holding at most size entries.
func NewMemory(size int, opts ...Option) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	o := getOpts(opts)
	return &Memory{
		entries:    entries,
		locks:      make(map[string]memoryLock),
		staleGrace: o.staleGrace,
		clock:      o.clock,
	}, nil
}

// Get retrieves an entry by key.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.entries.Get(key)
	if ok && !m.clock.Now().Before(item.evictAt) {
		m.entries.Remove(key)
		ok = false
	}
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return item.entry.clone(), nil
}

// Set stores an entry, retained for its TTL plus the stale grace period.
func (m *Memory) Set(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, entry)
	return nil
}

// Delete removes an entry and reports whether it existed.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.entries.Peek(key)
	if !ok {
		return false, nil
	}
	m.entries.Remove(key)
	return m.clock.Now().Before(item.evictAt), nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of retained entries, including ones pending eviction.
func (m *Memory) Len() int {
	return m.entries.Len()
}

// AcquireLock sets lockKey to token if it is absent or expired.
func (m *Memory) AcquireLock(_ context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if held, ok := m.locks[lockKey]; ok && now.Before(held.expiresAt) {
		return false, nil
	}
	m.locks[lockKey] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

// ReleaseLock deletes lockKey if it still holds token.
func (m *Memory) ReleaseLock(_ context.Context, lockKey, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holds(lockKey, token) {
		return false, nil
	}
	delete(m.locks, lockKey)
	return true, nil
}

// SetIfLockHeld stores entry under key only if lockKey still holds token.
func (m *Memory) SetIfLockHeld(_ context.Context, lockKey, token, key string, entry *Entry) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("cache entry cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holds(lockKey, token) {
		return false, nil
	}
	m.store(key, entry)
	return true, nil
}

// holds must be called with mu held.
func (m *Memory) holds(lockKey, token string) bool {
	held, ok := m.locks[lockKey]
	if !ok {
		return false
	}
	if !m.clock.Now().Before(held.expiresAt) {
		delete(m.locks, lockKey)
		return false
	}
	return held.token == token
}

// store must be called with mu held.
func (m *Memory) store(key string, entry *Entry) {
	now := m.clock.Now()
	retention := entry.retention(now, m.staleGrace)
	if retention <= 0 {
		return
	}
	m.entries.Add(key, memoryItem{entry: entry.clone(), evictAt: now.Add(retention)})
}
