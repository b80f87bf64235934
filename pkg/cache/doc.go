// Package cache provides the entry store behind the Pokédex read-through layer.
//
// Two backends implement the Store interface:
//
//   - Redis: shared between processes, entries JSON-encoded under SET PX.
//   - Memory: a bounded in-process LRU, used when Redis is disabled and in tests.
//
// Both backends also provide the lock primitives used by package refresh
// (AcquireLock, ReleaseLock, SetIfLockHeld), so a lease and the write it
// guards always live in the same store.
//
// # Entries
//
// An Entry carries its own logical expiry. Backends retain positive entries
// for StaleGrace beyond that expiry so a stale value can still be served while
// another holder rebuilds it. Negative entries (recorded permanent upstream
// failures) are never retained past their expiry.
//
//	entry := cache.NewEntry(data, clock.Now(), 24*time.Hour)
//	if err := store.Set(ctx, keys.Summary(), entry); err != nil {
//		return err
//	}
//
//	entry, err := store.Get(ctx, keys.Summary())
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// rebuild
//	}
//
// # Key Layout
//
// Keys live under a versioned prefix (default "pokedex:v1"):
//
//	pokedex:v1:summary
//	pokedex:v1:detail:25
//	pokedex:v1:alias:pikachu
//	pokedex:v1:groupings
//	pokedex:v1:categories
//	pokedex:v1:lock:detail:25
//
// # Metrics
//
//   - pokedex_cache_hits_total{layer}
//   - pokedex_cache_misses_total
//   - pokedex_cache_stale_served_total
//   - pokedex_cache_errors_total{operation}
package cache
