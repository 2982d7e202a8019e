// Package ratelimit implements shared request gating for the Threat Stack
// API. The API answers 429 Too Many Requests with a Retry-After header;
// the tracker records the block window in Redis so independently scheduled
// scripts against the same organization share one budget.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyBlockedUntil = "ts:rate_limit:blocked_until"
	RedisKeyLastUpdate   = "ts:rate_limit:last_update"
)

// DefaultRetryAfter is assumed when a 429 arrives without a usable
// Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// State represents the shared rate limit state.
type State struct {
	// BlockedUntil is the end of the current 429 block window. Zero when
	// no block is active.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked returns true while the block window is open.
func (s *State) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining block duration, 0 when open.
func (s *State) TimeUntilUnblocked() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
