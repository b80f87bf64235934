package cache

import (
	"encoding/json"
	"time"
)

// NegativeResult records a permanent upstream failure so repeated requests
// for the same key do not hit the upstream again until the entry expires.
type NegativeResult struct {
	// Kind is the failure category, e.g. "permanent".
	Kind string `json:"kind"`

	// Message is the upstream error text.
	Message string `json:"message"`
}

// Entry is a cached aggregated value.
type Entry struct {
	// Data is the JSON encoded value, empty for negative entries
	Data json.RawMessage `json:"data,omitempty"`

	// Expires is the logical expiry; after it the entry is stale
	Expires time.Time `json:"expires"`

	// CachedAt is when the value was built
	CachedAt time.Time `json:"cached_at"`

	// Negative is set when the entry records a failure instead of a value
	Negative *NegativeResult `json:"negative,omitempty"`
}

// NewEntry creates a positive entry expiring ttl after now.
func NewEntry(data json.RawMessage, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Data:     data,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// NewNegativeEntry creates an entry recording a failure for ttl.
func NewNegativeEntry(kind, message string, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Expires:  now.Add(ttl),
		CachedAt: now,
		Negative: &NegativeResult{Kind: kind, Message: message},
	}
}

// IsExpired returns true if the entry is past its logical expiry.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until logical expiry.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// IsNegative reports whether the entry records a failure.
func (e *Entry) IsNegative() bool {
	return e.Negative != nil
}

// retention is how long a backend keeps the entry physically.
// Returns 0 when the entry must not be stored.
func (e *Entry) retention(now time.Time, staleGrace time.Duration) time.Duration {
	ttl := e.TTL(now)
	if ttl <= 0 {
		return 0
	}
	if e.IsNegative() {
		return ttl
	}
	return ttl + staleGrace
}

func (e *Entry) clone() *Entry {
	out := *e
	if e.Data != nil {
		out.Data = append(json.RawMessage(nil), e.Data...)
	}
	if e.Negative != nil {
		neg := *e.Negative
		out.Negative = &neg
	}
	return &out
}
