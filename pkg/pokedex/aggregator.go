// Package pokedex aggregates PokeAPI records into cached view models.
//
// Every read goes through the same cache-aside policy:
//
//  1. An unexpired cache entry is returned as is, without locking.
//  2. Otherwise (or when a refresh is forced) the caller asks the refresh
//     coordinator for the key's lease. The holder fetches, maps and commits
//     the value; commits are compare-and-swap on the lease token.
//  3. Callers that do not get the lease are served the last good value, even
//     if expired, or StatusRebuilding when there is none.
//
// Upstream failures are translated into ErrNotFound (not cached),
// ErrTransient (not cached) and ErrPermanent (cached as a short-lived
// negative entry).
package pokedex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
	"github.com/Sternrassler/pokedex-api/pkg/refresh"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Upstream is the source of raw records.
type Upstream interface {
	Pokemon(ctx context.Context, key string) (*pokeapi.Pokemon, error)
	Species(ctx context.Context, ref string) (*pokeapi.Species, error)
	Generations(ctx context.Context) ([]pokeapi.NamedResource, error)
	Generation(ctx context.Context, key string) (*pokeapi.Generation, error)
	Types(ctx context.Context) ([]pokeapi.NamedResource, error)
}

// Coordinator hands out rebuild leases and commits under them.
type Coordinator interface {
	TryAcquire(ctx context.Context, key string) (*refresh.Lease, error)
	Release(ctx context.Context, lease *refresh.Lease) error
	Commit(ctx context.Context, lease *refresh.Lease, key string, entry *cache.Entry) (bool, error)
}

// Config holds aggregator configuration.
type Config struct {
	// TTL is the logical lifetime of positive entries.
	TTL time.Duration

	// NegativeTTL is the lifetime of entries recording permanent failures.
	NegativeTTL time.Duration

	// RebuildTimeout bounds a single rebuild. Keep it below the lease lifetime.
	RebuildTimeout time.Duration

	// MaxEntityID is the highest id enumerated for the summary list.
	MaxEntityID int

	// Fetch configures the listing fan-out.
	Fetch FetchConfig

	// BackgroundListRebuild runs listing rebuilds detached from the request;
	// the lease holder then answers like a waiter (stale value or rebuilding).
	BackgroundListRebuild bool

	// Clock is used for entry timestamps (default: real clock).
	Clock clockwork.Clock
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:                   24 * time.Hour,
		NegativeTTL:           5 * time.Minute,
		RebuildTimeout:        9 * time.Minute,
		MaxEntityID:           1025,
		Fetch:                 DefaultFetchConfig(),
		BackgroundListRebuild: true,
	}
}

// Aggregator serves view models through the cache.
type Aggregator struct {
	upstream Upstream
	store    cache.Store
	coord    Coordinator
	keys     cache.Keys
	cfg      Config
	clock    clockwork.Clock
	logger   zerolog.Logger

	rebuilds sync.WaitGroup

	// root outlives requests and is cancelled by Stop.
	root context.Context
	stop context.CancelFunc
}

// New creates an aggregator. Zero config values take their defaults.
func New(upstream Upstream, store cache.Store, coord Coordinator, keys cache.Keys, cfg Config) *Aggregator {
	if upstream == nil || store == nil || coord == nil {
		panic("pokedex: upstream, store and coordinator are required")
	}

	defaults := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = defaults.NegativeTTL
	}
	if cfg.RebuildTimeout <= 0 {
		cfg.RebuildTimeout = defaults.RebuildTimeout
	}
	if cfg.MaxEntityID <= 0 {
		cfg.MaxEntityID = defaults.MaxEntityID
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	root, stop := context.WithCancel(context.Background())
	return &Aggregator{
		root:     root,
		stop:     stop,
		upstream: upstream,
		store:    store,
		coord:    coord,
		keys:     keys,
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   logging.NewLogger("aggregator"),
	}
}

// Keys returns the key layout in use.
func (a *Aggregator) Keys() cache.Keys {
	return a.keys
}

// Wait blocks until all background rebuilds have finished.
func (a *Aggregator) Wait() {
	a.rebuilds.Wait()
}

// Stop cancels every running rebuild. Rebuilds started afterwards fail at once.
func (a *Aggregator) Stop() {
	a.stop()
}

// Shutdown waits for background rebuilds until ctx is done, then stops them
// and waits for them to unwind.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.rebuilds.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.Warn().Msg("Shutdown deadline reached, cancelling rebuilds")
		a.Stop()
		<-done
		return ctx.Err()
	}
}

// Detail returns the full view of one entity. key is an id or a name;
// malformed keys return ErrNotFound without contacting the upstream.
func (a *Aggregator) Detail(ctx context.Context, key string, forceRefresh bool) (Result[Detail], error) {
	entity, err := NormalizeKey(key)
	if err != nil {
		resultsTotal.WithLabelValues("detail", "error").Inc()
		return Result[Detail]{}, fmt.Errorf("%w: %q is not a valid key", ErrNotFound, key)
	}
	if !IsNumericKey(entity) {
		if id, ok := a.lookupAlias(ctx, entity); ok {
			entity = id
		}
	}

	data, status, err := a.readThrough(ctx, request{
		kind:  "detail",
		key:   a.keys.Detail(entity),
		force: forceRefresh,
		build: a.buildDetail(entity),
	})
	return decode[Detail]("detail", data, status, err)
}

// buildDetail fetches the entity and its species and maps them. A lookup by
// name claims the lease of the id entry before fetching the species; when
// another rebuild holds it, only the aliases are returned.
func (a *Aggregator) buildDetail(entity string) rebuildFunc {
	return func(ctx context.Context, claim claimFunc) (*built, error) {
		p, err := a.upstream.Pokemon(ctx, entity)
		if err != nil {
			return nil, err
		}

		id := strconv.Itoa(p.ID)
		out := &built{
			key:     a.keys.Detail(id),
			aliases: map[string]string{},
		}
		if p.Name != "" && p.Name != id {
			out.aliases[a.keys.Alias(p.Name)] = id
		}
		if entity != id && entity != p.Name {
			out.aliases[a.keys.Alias(entity)] = id
		}

		switch err := claim(out.key); {
		case errors.Is(err, refresh.ErrBusy):
			out.busy = true
			return out, nil
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrTransient, err)
		}

		species, err := a.species(ctx, p)
		if err != nil {
			return nil, err
		}
		out.value = MapDetail(p, species)
		return out, nil
	}
}

// species fetches the species of p. A missing species is not an error; the
// mapping then falls back for every species field.
func (a *Aggregator) species(ctx context.Context, p *pokeapi.Pokemon) (*pokeapi.Species, error) {
	ref := strconv.Itoa(p.ID)
	if p.Species != nil && p.Species.URL != "" {
		ref = p.Species.URL
	} else if p.Species != nil && p.Species.Name != "" {
		ref = p.Species.Name
	}

	species, err := a.upstream.Species(ctx, ref)
	if errors.Is(err, pokeapi.ErrNotFound) {
		a.logger.Debug().Int("id", p.ID).Str("ref", ref).Msg("Species not found, mapping without it")
		return nil, nil
	}
	return species, err
}

// lookupAlias resolves an entity name to its id through the cache.
// Aliases are immutable, so expired entries are still honoured.
func (a *Aggregator) lookupAlias(ctx context.Context, name string) (string, bool) {
	entry, err := a.store.Get(ctx, a.keys.Alias(name))
	if err != nil || entry.IsNegative() {
		return "", false
	}
	var id string
	if err := json.Unmarshal(entry.Data, &id); err != nil || !IsNumericKey(id) {
		return "", false
	}
	return id, true
}

// Invalidate deletes the entry named by raw (a full cache key or its short
// form). Invalidating a detail by name also drops the entry of the id it
// resolves to. It returns the resolved key and whether anything was deleted.
func (a *Aggregator) Invalidate(ctx context.Context, raw string) (string, bool, error) {
	key, err := a.keys.Resolve(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	targets := []string{key}
	if entity, ok := a.keys.DetailEntity(key); ok {
		if norm, err := NormalizeKey(entity); err == nil {
			key = a.keys.Detail(norm)
			targets[0] = key
			entity = norm
		}
		if !IsNumericKey(entity) {
			if id, ok := a.lookupAlias(ctx, entity); ok {
				targets = append(targets, a.keys.Detail(id))
			}
		}
	}

	var deleted bool
	for _, target := range targets {
		ok, err := a.store.Delete(ctx, target)
		if err != nil {
			return key, deleted, fmt.Errorf("%w: delete %s: %w", ErrTransient, target, err)
		}
		deleted = deleted || ok
	}

	a.logger.Info().
		Str("cache_key", key).
		Bool("deleted", deleted).
		Msg("Cache entry invalidated")
	return key, deleted, nil
}

// EntryState reports "fresh", "stale", "negative" or "empty" for a cache key.
func (a *Aggregator) EntryState(ctx context.Context, key string) string {
	entry, err := a.store.Get(ctx, key)
	switch {
	case err != nil:
		return "empty"
	case entry.IsNegative():
		return "negative"
	case entry.IsExpired(a.clock.Now()):
		return "stale"
	default:
		return "fresh"
	}
}

// claimFunc takes the lease of another key for the running rebuild. It
// returns refresh.ErrBusy when someone else holds it.
type claimFunc func(key string) error

// rebuildFunc produces the value for a request.
type rebuildFunc func(ctx context.Context, claim claimFunc) (*built, error)

// built is the output of a rebuild.
type built struct {
	value any

	// key overrides the requested key as the write target. It is committed
	// under its own lease.
	key string

	// busy means the lease of key is held elsewhere; value is unset and the
	// caller is answered from the cache.
	busy bool

	// aliases maps alias cache keys to the entity they resolve to.
	aliases map[string]string
}

// request describes one read-through.
type request struct {
	kind       string
	key        string
	force      bool
	background bool
	build      rebuildFunc
}

// readThrough applies the cache-aside policy and returns the encoded value.
func (a *Aggregator) readThrough(ctx context.Context, req request) (json.RawMessage, Status, error) {
	entry, err := a.store.Get(ctx, req.key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn().Err(err).Str("cache_key", req.key).Msg("Cache read failed, treating as miss")
		}
		entry = nil
	}

	now := a.clock.Now()
	if entry != nil && !req.force && !entry.IsExpired(now) {
		if entry.IsNegative() {
			a.logger.Debug().Str("cache_key", req.key).Msg("Negative cache hit")
			return nil, "", negativeError(entry)
		}
		a.logger.Debug().Str("cache_key", req.key).Msg("Cache hit")
		return entry.Data, StatusCached, nil
	}

	lease, err := a.coord.TryAcquire(ctx, req.key)
	if errors.Is(err, refresh.ErrBusy) {
		return a.fallback(req, entry, now)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrTransient, err)
	}

	if req.background {
		a.rebuilds.Add(1)
		go func() {
			defer a.rebuilds.Done()
			_, _, _ = a.rebuild(ctx, req, lease)
		}()
		return a.fallback(req, entry, now)
	}

	return a.rebuild(ctx, req, lease)
}

// fallback answers a caller that is not rebuilding: the last good value, or
// StatusRebuilding when there is none.
func (a *Aggregator) fallback(req request, entry *cache.Entry, now time.Time) (json.RawMessage, Status, error) {
	return a.fallbackFor(req.key, entry, now)
}

func (a *Aggregator) fallbackFor(key string, entry *cache.Entry, now time.Time) (json.RawMessage, Status, error) {
	if entry == nil || entry.IsNegative() {
		a.logger.Debug().Str("cache_key", key).Msg("Rebuild in progress, no value to serve")
		return nil, StatusRebuilding, nil
	}
	if entry.IsExpired(now) {
		cache.StaleServed.Inc()
		a.logger.Debug().Str("cache_key", key).Msg("Rebuild in progress, serving stale value")
		return entry.Data, StatusStale, nil
	}
	return entry.Data, StatusCached, nil
}

// rebuild runs req.build under lease and commits the result. It is detached
// from the caller's cancellation, bounded by RebuildTimeout and cancelled by
// Stop.
func (a *Aggregator) rebuild(ctx context.Context, req request, lease *refresh.Lease) (json.RawMessage, Status, error) {
	base := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(base, a.cfg.RebuildTimeout)
	defer cancel()
	defer context.AfterFunc(a.root, cancel)()

	held := map[string]*refresh.Lease{req.key: lease}
	defer func() {
		for key, l := range held {
			if err := a.coord.Release(base, l); err != nil {
				a.logger.Warn().Err(err).Str("cache_key", key).Msg("Failed to release lease")
			}
		}
	}()
	claim := func(key string) error {
		if _, ok := held[key]; ok {
			return nil
		}
		l, err := a.coord.TryAcquire(ctx, key)
		if err != nil {
			return err
		}
		held[key] = l
		return nil
	}

	start := a.clock.Now()
	a.logger.Info().Str("kind", req.kind).Str("cache_key", req.key).Bool("force", req.force).Msg("Rebuild started")
	defer func() {
		rebuildDuration.WithLabelValues(req.kind).Observe(a.clock.Since(start).Seconds())
	}()

	out, err := req.build(ctx, claim)
	if err != nil {
		return nil, "", a.rebuildFailed(ctx, req, lease, err)
	}

	target := req.key
	if out.key != "" {
		target = out.key
	}
	if !out.busy {
		switch err := claim(target); {
		case errors.Is(err, refresh.ErrBusy):
			out.busy = true
		case err != nil:
			rebuildsTotal.WithLabelValues(req.kind, "transient").Inc()
			return nil, "", fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}

	if out.busy {
		// another rebuild owns the target; keep what this one learned
		rebuildsTotal.WithLabelValues(req.kind, "deferred").Inc()
		a.commitAliases(ctx, lease, out.aliases)
		a.logger.Debug().Str("cache_key", req.key).Str("target", target).Msg("Target rebuilt elsewhere, answering from cache")
		entry, err := a.store.Get(ctx, target)
		if err != nil {
			entry = nil
		}
		return a.fallbackFor(target, entry, a.clock.Now())
	}

	data, err := json.Marshal(out.value)
	if err != nil {
		rebuildsTotal.WithLabelValues(req.kind, "transient").Inc()
		return nil, "", fmt.Errorf("%w: encode %s: %w", ErrTransient, req.kind, err)
	}

	written, err := a.coord.Commit(ctx, held[target], target, cache.NewEntry(data, a.clock.Now(), a.cfg.TTL))
	switch {
	case err != nil:
		// the value is still good for this caller
		a.logger.Warn().Err(err).Str("cache_key", target).Msg("Failed to cache rebuild result")
	case !written:
		rebuildsTotal.WithLabelValues(req.kind, "discarded").Inc()
		return data, StatusFresh, nil
	default:
		a.commitAliases(ctx, held[target], out.aliases)
	}

	rebuildsTotal.WithLabelValues(req.kind, "ok").Inc()
	a.logger.Info().
		Str("kind", req.kind).
		Str("cache_key", target).
		Int("bytes", len(data)).
		Dur("duration", a.clock.Since(start)).
		Msg("Rebuild finished")
	return data, StatusFresh, nil
}

// rebuildFailed classifies a build error and records permanent failures.
func (a *Aggregator) rebuildFailed(ctx context.Context, req request, lease *refresh.Lease, err error) error {
	err = classify(err)
	level := zerolog.ErrorLevel

	switch kindOf(err) {
	case ErrNotFound:
		rebuildsTotal.WithLabelValues(req.kind, "not_found").Inc()
		level = zerolog.DebugLevel
	case ErrPermanent:
		rebuildsTotal.WithLabelValues(req.kind, "permanent").Inc()
		if a.hasValue(ctx, req.key) {
			a.logger.Warn().Str("cache_key", req.key).Msg("Keeping last good value after permanent failure")
			break
		}
		negative := cache.NewNegativeEntry("permanent", err.Error(), a.clock.Now(), a.cfg.NegativeTTL)
		if _, cerr := a.coord.Commit(ctx, lease, req.key, negative); cerr != nil {
			a.logger.Warn().Err(cerr).Str("cache_key", req.key).Msg("Failed to cache negative result")
		}
	default:
		rebuildsTotal.WithLabelValues(req.kind, "transient").Inc()
	}

	a.logger.WithLevel(level).
		Err(err).
		Str("kind", req.kind).
		Str("cache_key", req.key).
		Msg("Rebuild failed")
	return err
}

// hasValue reports whether key holds a positive entry, expired or not.
func (a *Aggregator) hasValue(ctx context.Context, key string) bool {
	entry, err := a.store.Get(ctx, key)
	return err == nil && !entry.IsNegative()
}

func (a *Aggregator) commitAliases(ctx context.Context, lease *refresh.Lease, aliases map[string]string) {
	for key, target := range aliases {
		data, err := json.Marshal(target)
		if err != nil {
			a.logger.Warn().Err(err).Str("cache_key", key).Msg("Failed to encode alias")
			continue
		}
		if _, err := a.coord.Commit(ctx, lease, key, cache.NewEntry(data, a.clock.Now(), a.cfg.TTL)); err != nil {
			a.logger.Warn().Err(err).Str("cache_key", key).Msg("Failed to cache alias")
		}
	}
}

func negativeError(entry *cache.Entry) error {
	return fmt.Errorf("%w (cached): %s", ErrPermanent, entry.Negative.Message)
}

// decode turns an encoded value into a typed result.
func decode[T any](kind string, data json.RawMessage, status Status, err error) (Result[T], error) {
	if err != nil {
		resultsTotal.WithLabelValues(kind, "error").Inc()
		return Result[T]{}, err
	}
	resultsTotal.WithLabelValues(kind, string(status)).Inc()

	out := Result[T]{Status: status}
	if status == StatusRebuilding {
		return out, nil
	}
	if err := json.Unmarshal(data, &out.Value); err != nil {
		return Result[T]{}, fmt.Errorf("%w: decode %s: %w", ErrTransient, kind, err)
	}
	return out, nil
}
