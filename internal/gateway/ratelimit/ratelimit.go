// Package ratelimit holds the per-identity request counters the gateway checks
// before admitting a call.
//
// Counters use a sliding window: an admitted request stops counting exactly one
// window after it was admitted, so no identity can exceed the threshold within
// any window-sized interval. Check and increment happen as one atomic step.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Result is the outcome of one counter check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Store is an atomic increment-and-check counter.
type Store interface {
	// AllowN admits cost units when the window has room and records them, or
	// rejects without recording anything.
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*Result, error)

	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error

	// GetCurrentCount returns the units admitted within the trailing window.
	GetCurrentCount(ctx context.Context, key string, window time.Duration) (int, error)
}

const identityKeyPrefix = "ratelimit:identity:"

var keySegmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// SanitizeKeySegment percent-escapes the key delimiter. The escape is
// reversible, so distinct identities never share a counter.
func SanitizeKeySegment(s string) string {
	return keySegmentEscaper.Replace(s)
}

// IdentityKey is the counter key for an authenticated caller.
func IdentityKey(identity string) string {
	return identityKeyPrefix + SanitizeKeySegment(identity)
}

func retryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
