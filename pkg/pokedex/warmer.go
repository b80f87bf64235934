package pokedex

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/rs/zerolog"
)

// Warmer fills empty listing entries at startup.
type Warmer struct {
	agg    *Aggregator
	store  cache.Store
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewWarmer creates a warmer for agg.
func NewWarmer(agg *Aggregator) *Warmer {
	return &Warmer{
		agg:    agg,
		store:  agg.store,
		logger: logging.NewLogger("warmer"),
	}
}

// Start triggers one background rebuild of the summary list when its entry is
// empty, and fills groupings and categories. It never blocks and never fails:
// errors are logged.
func (w *Warmer) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	_, err := w.store.Get(ctx, w.agg.keys.Summary())
	switch {
	case err == nil:
		w.logger.Info().Msg("Summary list already cached, skipping warm-up")
	case !errors.Is(err, cache.ErrCacheMiss):
		w.logger.Warn().Err(err).Msg("Cannot read summary list entry, skipping warm-up")
	default:
		w.logger.Info().Msg("Summary list not cached, warming up")
		w.run(ctx, "summary", func(ctx context.Context) (Status, error) {
			res, err := w.agg.SummaryList(ctx, false)
			return res.Status, err
		})
	}

	w.run(ctx, "groupings", func(ctx context.Context) (Status, error) {
		res, err := w.agg.Groupings(ctx, false)
		return res.Status, err
	})
	w.run(ctx, "categories", func(ctx context.Context) (Status, error) {
		res, err := w.agg.Categories(ctx, false)
		return res.Status, err
	})
}

// Wait blocks until the warm-up calls have returned. Background rebuilds they
// started are joined by Aggregator.Wait.
func (w *Warmer) Wait() {
	w.wg.Wait()
}

func (w *Warmer) run(ctx context.Context, what string, fn func(ctx context.Context) (Status, error)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		status, err := fn(ctx)
		if err != nil {
			w.logger.Error().Err(err).Str("what", what).Msg("Warm-up failed")
			return
		}
		w.logger.Debug().Str("what", what).Str("status", string(status)).Msg("Warm-up triggered")
	}()
}
