// Package cache provides a Redis-backed response cache for GET endpoints.
// The Threat Stack API sends no cache-control metadata, so entries live for
// a caller-configured TTL instead of a server-driven one.
package cache

import (
	"time"
)

// Entry is one cached response body.
type Entry struct {
	// Data is the raw JSON response body.
	Data []byte `json:"data"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry wraps a response body with a fixed TTL.
func NewEntry(data []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}
}

// IsExpired returns true if the entry has passed its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
