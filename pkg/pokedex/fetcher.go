package pokedex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// FetchConfig holds fan-out configuration.
type FetchConfig struct {
	// MaxConcurrency is the maximum number of parallel upstream fetches.
	MaxConcurrency int

	// Timeout per item fetch.
	Timeout time.Duration
}

// DefaultFetchConfig returns safe defaults for the public PokeAPI.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
	}
}

// itemResult is the outcome of fetching one item.
type itemResult[T any] struct {
	id    int
	value T
	err   error
}

// fetchAll fetches every id through a bounded worker pool.
//
// Items failing with ErrNotFound or ErrPermanent are skipped and logged. Any
// other failure aborts the fan-out: remaining work is cancelled and all
// failures observed so far are returned combined. No partial result is
// returned together with an error.
func fetchAll[T any](ctx context.Context, cfg FetchConfig, logger zerolog.Logger, what string, ids []int,
	fetch func(ctx context.Context, id int) (T, error)) (map[int]T, error) {
	start := time.Now()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultFetchConfig().MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchConfig().Timeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int)
	results := make(chan itemResult[T], cfg.MaxConcurrency)

	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go fetchWorker(ctx, cfg.Timeout, queue, results, &wg, fetch)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	values := make(map[int]T, len(ids))
	var (
		failures *multierror.Error
		skipped  int
		done     int
	)
	for res := range results {
		done++
		switch kind := kindOf(res.err); {
		case res.err == nil:
			values[res.id] = res.value
		case kind == ErrNotFound || kind == ErrPermanent:
			skipped++
			logger.Warn().
				Err(res.err).
				Str("what", what).
				Int("id", res.id).
				Msg("Skipping item")
		case ctx.Err() != nil && errors.Is(res.err, context.Canceled):
			// cancelled after an earlier failure
		default:
			failures = multierror.Append(failures, fmt.Errorf("%s %d: %w", what, res.id, res.err))
			cancel()
		}

		if done%100 == 0 {
			logger.Debug().
				Str("what", what).
				Int("fetched", done).
				Int("total", len(ids)).
				Float64("progress_pct", float64(done)/float64(len(ids))*100).
				Msg("Fetch progress")
		}
	}

	if err := failures.ErrorOrNil(); err != nil {
		logger.Warn().
			Err(err).
			Str("what", what).
			Int("failed", failures.Len()).
			Int("total", len(ids)).
			Msg("Fan-out aborted")
		return nil, classify(err)
	}
	if err := ctx.Err(); err != nil && len(values)+skipped < len(ids) {
		// parent context ended before every item was fetched
		return nil, classify(fmt.Errorf("%s fan-out interrupted: %w", what, err))
	}

	logger.Info().
		Str("what", what).
		Int("fetched", len(values)).
		Int("skipped", skipped).
		Int("total", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return values, nil
}

// fetchWorker processes ids from the queue.
func fetchWorker[T any](ctx context.Context, timeout time.Duration, queue <-chan int, results chan<- itemResult[T],
	wg *sync.WaitGroup, fetch func(ctx context.Context, id int) (T, error)) {
	defer wg.Done()

	for id := range queue {
		if ctx.Err() != nil {
			return
		}

		itemCtx, cancel := context.WithTimeout(ctx, timeout)
		value, err := fetch(itemCtx, id)
		cancel()

		select {
		case results <- itemResult[T]{id: id, value: value, err: err}:
		case <-ctx.Done():
			return
		}
	}
}
