package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pokedex-api/config"
	"github.com/Sternrassler/pokedex-api/pkg/api"
	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
	"github.com/Sternrassler/pokedex-api/pkg/pokedex"
	"github.com/Sternrassler/pokedex-api/pkg/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is done, then drains rebuilds and closes the store.
func run(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Aggregator.WarmOnStart {
		a.warmer.Start(ctx)
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = ":" + cfg.Server.Port
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	return api.NewServer(a.handler, serverCfg).Run(ctx)
}

// app holds the wired components of the service.
type app struct {
	handler http.Handler
	agg     *pokedex.Aggregator
	warmer  *pokedex.Warmer
	backend string
	closers []func() error

	// shutdownTimeout bounds how long close waits for running rebuilds.
	shutdownTimeout time.Duration
}

// cacheStore is what both the cache and the lease coordinator need.
type cacheStore interface {
	cache.Store
	refresh.LockBackend
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{shutdownTimeout: cfg.Server.ShutdownTimeout}

	store, err := a.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	upstream, err := pokeapi.New(pokeapi.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		UserAgent:  cfg.Upstream.UserAgent,
		Timeout:    cfg.Upstream.Timeout,
		MaxRetries: cfg.Upstream.MaxRetries,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	keys := cache.NewKeys(cfg.Cache.KeyPrefix)
	coord := refresh.NewCoordinator(store, keys, refresh.Config{MaxRebuild: cfg.Refresh.MaxDuration})

	a.agg = pokedex.New(upstream, store, coord, keys, pokedex.Config{
		TTL:            cfg.Cache.TTL,
		NegativeTTL:    cfg.Cache.NegativeTTL,
		RebuildTimeout: cfg.Refresh.Timeout,
		MaxEntityID:    cfg.Aggregator.MaxPokemonID,
		Fetch: pokedex.FetchConfig{
			MaxConcurrency: cfg.Aggregator.FetchConcurrency,
			Timeout:        cfg.Aggregator.FetchTimeout,
		},
		BackgroundListRebuild: cfg.Aggregator.BackgroundListRebuild,
	})
	a.warmer = pokedex.NewWarmer(a.agg)

	health := api.NewHealthHandler(2 * time.Second)
	health.AddChecker("cache", store)

	handler := api.NewHandler(a.agg, api.HandlerConfig{
		Backend:    a.backend,
		RetryAfter: cfg.Server.RetryAfter,
	})
	a.handler = api.NewRouter(handler, health, api.RouterConfig{
		CORSOrigins:  cfg.Server.CORSOrigins,
		AdminAPIKeys: cfg.Server.AdminAPIKeys,
	})

	log.Info().
		Str("cache_backend", a.backend).
		Str("upstream", cfg.Upstream.BaseURL).
		Int("max_pokemon_id", cfg.Aggregator.MaxPokemonID).
		Msg("Service initialized")

	return a, nil
}

// newStore connects to Redis, falling back to the in-memory store when Redis
// is disabled or unreachable.
func (a *app) newStore(ctx context.Context, cfg config.Config) (cacheStore, error) {
	opts := []cache.Option{cache.WithStaleGrace(cfg.Cache.StaleGrace)}

	if cfg.Redis.Enabled {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
			a.backend = "redis"
			a.closers = append(a.closers, redisClient.Close)
			return cache.NewRedis(redisClient, opts...), nil
		}

		_ = redisClient.Close()
		log.Warn().Err(err).Str("addr", redisOpts.Addr).Msg("Redis unreachable, using in-memory cache")
	}

	store, err := cache.NewMemory(cfg.Cache.MemorySize, opts...)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	a.backend = "memory"
	return store, nil
}

// close waits for the warm-up and background rebuilds, cancelling them once
// the shutdown timeout passes, then releases the store.
func (a *app) close() {
	if a.agg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		if a.warmer != nil {
			warmed := make(chan struct{})
			go func() {
				a.warmer.Wait()
				close(warmed)
			}()
			select {
			case <-warmed:
			case <-ctx.Done():
				a.agg.Stop()
				<-warmed
			}
		}

		log.Info().Dur("timeout", a.shutdownTimeout).Msg("Waiting for background rebuilds")
		if err := a.agg.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Background rebuilds cancelled")
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}
