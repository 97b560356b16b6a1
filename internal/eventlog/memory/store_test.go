package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clm/internal/eventlog"
	"clm/internal/eventlog/contract"
)

func TestStoreContract(t *testing.T) {
	contract.RunStoreContract(t, func(*testing.T) eventlog.Store {
		return New()
	})
}

func TestAppend_StoredEventIsIsolatedFromCaller(t *testing.T) {
	store := New()
	event := contract.NewEvent("12345")

	_, err := store.Append(context.Background(), event)
	require.NoError(t, err)
	event.Data["name"] = "Mallory"

	entries, err := store.Scan(context.Background(), eventlog.ScanOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "John Doe", entries[0].Event.Data["name"])

	entries[0].Event.Data["name"] = "Eve"
	again, _ := store.Scan(context.Background(), eventlog.ScanOptions{})
	assert.Equal(t, "John Doe", again[0].Event.Data["name"])
}

func TestAppend_RequiresEventID(t *testing.T) {
	event := contract.NewEvent("12345")
	event.EventID = ""
	_, err := New().Append(context.Background(), event)
	assert.Error(t, err)
	assert.Zero(t, New().Len())
}
