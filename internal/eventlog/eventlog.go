// Package eventlog defines the append-only store of customer events. The log is
// the source of truth; projections and bus deliveries are derived from it.
package eventlog

import (
	"context"
	"time"

	"clm/internal/customer/models"
)

// DefaultScanLimit caps a Scan that does not set Limit.
const DefaultScanLimit = 100

// Entry is an event as recorded in the log.
type Entry struct {
	// Position is the global, strictly increasing log position.
	Position int64
	// StreamVersion is the 1-based position within the customer's own stream.
	StreamVersion int64
	Event         models.Event
	RecordedAt    time.Time
	PublishedAt   *time.Time
}

func (e Entry) Published() bool {
	return e.PublishedAt != nil
}

// ScanOptions filters a Scan. Zero values mean "no filter".
type ScanOptions struct {
	// From returns entries with Position strictly greater than From.
	From            int64
	Limit           int
	CustomerID      string
	UnpublishedOnly bool
	// OlderThan keeps entries recorded before this instant.
	OlderThan time.Time
}

// EffectiveLimit returns the page size, applying DefaultScanLimit.
func (o ScanOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultScanLimit
	}
	return o.Limit
}

// Matches reports whether an entry passes the non-positional filters.
func (o ScanOptions) Matches(e Entry) bool {
	if e.Position <= o.From {
		return false
	}
	if o.CustomerID != "" && e.Event.CustomerID != o.CustomerID {
		return false
	}
	if o.UnpublishedOnly && e.Published() {
		return false
	}
	if !o.OlderThan.IsZero() && !e.RecordedAt.Before(o.OlderThan) {
		return false
	}
	return true
}

// Store is the durable event log.
//
// Append never overwrites: a second append with the same event id returns
// sentinel.ErrConflict. MarkPublished on an unknown id returns sentinel.ErrNotFound.
type Store interface {
	Append(ctx context.Context, event *models.Event) (Entry, error)
	Scan(ctx context.Context, opts ScanOptions) ([]Entry, error)
	MarkPublished(ctx context.Context, eventID string, at time.Time) error
}
