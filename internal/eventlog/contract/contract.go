// Package contract holds behaviour every eventlog.Store adapter must share.
package contract

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/pkg/platform/sentinel"
)

// NewEvent builds a schema-complete CustomerRegistered event.
func NewEvent(customerID string) *models.Event {
	return &models.Event{
		EventID:    uuid.NewString(),
		CustomerID: customerID,
		Type:       models.EventTypeCustomerRegistered,
		Version:    "1.0.0",
		Data: map[string]any{
			"customer_id": customerID,
			"name":        "John Doe",
			"enriched":    true,
		},
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// RunStoreContract runs the shared suite. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) eventlog.Store) {
	t.Run("append assigns increasing positions and stream versions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()

		first, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)
		second, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)
		other, err := store.Append(ctx, NewEvent(uuid.NewString()))
		require.NoError(t, err)

		assert.Greater(t, second.Position, first.Position)
		assert.Greater(t, other.Position, second.Position)
		assert.Equal(t, int64(1), first.StreamVersion)
		assert.Equal(t, int64(2), second.StreamVersion)
		assert.Equal(t, int64(1), other.StreamVersion)
		assert.False(t, first.Published())
		assert.False(t, first.RecordedAt.IsZero())
	})

	t.Run("duplicate event id conflicts and leaves the log unchanged", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()
		event := NewEvent(customer)

		_, err := store.Append(ctx, event)
		require.NoError(t, err)
		_, err = store.Append(ctx, event)
		require.ErrorIs(t, err, sentinel.ErrConflict)

		entries, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer})
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		next, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)
		assert.Equal(t, int64(2), next.StreamVersion, "a rejected append must not consume a stream version")
	})

	t.Run("scan round-trips the event", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()
		event := NewEvent(customer)

		_, err := store.Append(ctx, event)
		require.NoError(t, err)

		entries, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		got := entries[0].Event
		assert.Equal(t, event.EventID, got.EventID)
		assert.Equal(t, event.CustomerID, got.CustomerID)
		assert.Equal(t, event.Type, got.Type)
		assert.Equal(t, event.Version, got.Version)
		assert.Equal(t, "John Doe", got.Data["name"])
		assert.Equal(t, true, got.Data["enriched"])
		assert.True(t, event.OccurredAt.Equal(got.OccurredAt))
	})

	t.Run("scan pages from a position", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()
		for range 5 {
			_, err := store.Append(ctx, NewEvent(customer))
			require.NoError(t, err)
		}

		page, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)

		rest, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer, From: page[1].Position})
		require.NoError(t, err)
		require.Len(t, rest, 3)
		assert.Greater(t, rest[0].Position, page[1].Position)
	})

	t.Run("mark published filters unpublished scans", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()

		a, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)
		b, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)

		publishedAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.MarkPublished(ctx, a.Event.EventID, publishedAt))
		require.NoError(t, store.MarkPublished(ctx, a.Event.EventID, publishedAt.Add(time.Hour)))

		pending, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer, UnpublishedOnly: true})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, b.Event.EventID, pending[0].Event.EventID)

		all, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer})
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.NotNil(t, all[0].PublishedAt)
		assert.True(t, publishedAt.Equal(*all[0].PublishedAt), "first publication time is kept")
	})

	t.Run("mark published on unknown event", func(t *testing.T) {
		store := newStore(t)
		err := store.MarkPublished(context.Background(), uuid.NewString(), time.Now())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("older than filter", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()
		_, err := store.Append(ctx, NewEvent(customer))
		require.NoError(t, err)

		none, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer, OlderThan: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, none)

		some, err := store.Scan(ctx, eventlog.ScanOptions{CustomerID: customer, OlderThan: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Len(t, some, 1)
	})

	t.Run("concurrent appends to one stream get distinct versions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		customer := uuid.NewString()
		const writers = 20

		var wg sync.WaitGroup
		versions := make(chan int64, writers)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entry, err := store.Append(ctx, NewEvent(customer))
				if assert.NoError(t, err) {
					versions <- entry.StreamVersion
				}
			}()
		}
		wg.Wait()
		close(versions)

		seen := make(map[int64]bool)
		for v := range versions {
			assert.False(t, seen[v], "stream version %d assigned twice", v)
			seen[v] = true
		}
		assert.Len(t, seen, writers)
	})
}
