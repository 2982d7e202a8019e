package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	tsRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_retries_total",
		Help: "Total number of retry attempts",
	})

	tsRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts. 0 means retry
	// indefinitely until the operation succeeds or fails with a
	// non-transient error; the caller owns that risk.
	MaxAttempts int

	// Delay is the fixed wait applied before each re-attempt, never before
	// the first. There is no backoff growth; the upstream API recovers on
	// its own schedule and callers size the delay per endpoint.
	Delay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       0,
	}
}

// Retry invokes op until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. Only errors satisfying IsTransient are
// retried. Exhaustion returns ErrRetryExhausted wrapping the last error.
// Negative MaxAttempts or Delay fail with ErrInvalidRetryConfig before op
// is invoked at all.
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts < 0 || cfg.Delay < 0 {
		return fmt.Errorf("%w: max_attempts %d, delay %v", ErrInvalidRetryConfig, cfg.MaxAttempts, cfg.Delay)
	}

	var lastErr error
	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			break
		}

		tsRetriesTotal.Inc()
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", cfg.Delay).
			Msg("Retrying request after delay")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(cfg.Delay):
		}
	}

	tsRetryExhaustedTotal.Inc()
	log.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
