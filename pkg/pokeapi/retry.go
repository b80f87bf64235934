package pokeapi

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_retries_total",
		Help: "PokeAPI requests repeated after a retryable failure",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_retry_backoff_seconds",
		Help:    "Delay slept before repeating a PokeAPI request",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_retry_exhausted_total",
		Help: "PokeAPI requests that still failed on their last attempt",
	}, []string{"error_class"})
)

// RetryConfig bounds how often and how patiently a single upstream request is
// repeated. MaxAttempts counts the first try.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig allows two retries starting at half a second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ForErrorClass adjusts the delays to the kind of failure: 429s wait four
// times longer with a tripled ceiling, network errors start at twice the base.
// Attempts and multiplier are clamped to at least one.
func (c RetryConfig) ForErrorClass(errorClass ErrorClass) RetryConfig {
	out := c
	out.MaxAttempts = max(out.MaxAttempts, 1)
	out.BackoffMultiplier = max(out.BackoffMultiplier, 1)

	switch errorClass {
	case ErrorClassRateLimit:
		out.InitialBackoff *= 4
		out.MaxBackoff *= 3
	case ErrorClassNetwork:
		out.InitialBackoff *= 2
	}
	return out
}

// schedule yields successive jittered delays for one retry sequence.
type schedule struct {
	next time.Duration
	cfg  RetryConfig
}

// delay returns the current delay scaled by a random factor in [0.8, 1.2) and
// advances the schedule, capped at MaxBackoff.
func (s *schedule) delay() time.Duration {
	d := time.Duration(float64(s.next) * (0.8 + rand.Float64()*0.4))
	s.next = min(time.Duration(float64(s.next)*s.cfg.BackoffMultiplier), s.cfg.MaxBackoff)
	return d
}

// sleep waits for d or until ctx is done, reporting whether the full delay passed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retryWithBackoff calls fn until it succeeds, fails with a non-retryable
// error, or runs out of attempts. The class of the first failure picks the
// delay profile for the whole sequence.
func retryWithBackoff(ctx context.Context, base RetryConfig, logger zerolog.Logger, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	class := classOf(err)
	if !shouldRetry(class) {
		return err
	}

	cfg := base.ForErrorClass(class)
	sched := &schedule{next: cfg.InitialBackoff, cfg: cfg}
	label := string(class)

	for attempt := 2; attempt <= cfg.MaxAttempts; attempt++ {
		wait := sched.delay()
		retriesTotal.WithLabelValues(label).Inc()
		retryBackoffSeconds.WithLabelValues(label).Observe(wait.Seconds())
		logger.Debug().Str("error_class", label).Int("attempt", attempt).Dur("backoff", wait).Msg("Retrying upstream request")

		if !sleep(ctx, wait) {
			logger.Warn().Str("error_class", label).Int("attempt", attempt).Msg("Retry abandoned, context done")
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		if err = fn(); err == nil {
			logger.Info().Str("error_class", label).Int("attempt", attempt).Msg("Upstream request recovered")
			return nil
		}
		if !shouldRetry(classOf(err)) {
			return err
		}
	}

	retryExhaustedTotal.WithLabelValues(label).Inc()
	logger.Warn().Str("error_class", label).Int("max_attempts", cfg.MaxAttempts).Msg("Upstream retries exhausted")
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, err)
}
