package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	tsRateLimitBlockedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ts_rate_limit_blocked_seconds",
		Help: "Seconds remaining in the current 429 block window",
	})

	tsRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_rate_limit_blocks_total",
		Help: "Total number of requests blocked by the shared 429 window",
	})

	tsRateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_rate_limit_hits_total",
		Help: "Total number of 429 responses observed",
	})
)

// Tracker records 429 block windows in Redis and gates new requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current rate limit state from Redis.
// Returns an open (unblocked) state when no data exists.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	blockedUnix, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	lastUpdateUnix, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	return &State{
		BlockedUntil: time.Unix(blockedUnix, 0),
		LastUpdate:   time.Unix(lastUpdateUnix, 0),
	}, nil
}

// UpdateFromResponse records a 429 response's Retry-After window in Redis.
// Non-429 responses are a no-op.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	retryAfter := DefaultRetryAfter
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	now := time.Now()
	blockedUntil := now.Add(retryAfter)

	pipe := t.redis.Pipeline()
	// The keys expire with the window; a crashed script leaves no stale block.
	pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.Unix(), retryAfter)
	pipe.Set(ctx, RedisKeyLastUpdate, now.Unix(), retryAfter)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	tsRateLimitHitsTotal.Inc()
	tsRateLimitBlockedSeconds.Set(retryAfter.Seconds())

	t.logger.Warn().
		Dur("retry_after", retryAfter).
		Time("blocked_until", blockedUntil).
		Msg("API rate limit hit - blocking new requests")

	return nil
}

// ShouldAllowRequest checks whether a request may proceed. Returns false
// while a shared 429 block window is open.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.IsBlocked() {
		wait := state.TimeUntilUnblocked()

		t.logger.Warn().
			Dur("wait_duration", wait).
			Msg("Shared rate limit window open - blocking request")

		tsRateLimitBlocksTotal.Inc()
		tsRateLimitBlockedSeconds.Set(wait.Seconds())
		return false, nil
	}

	tsRateLimitBlockedSeconds.Set(0)
	return true, nil
}
