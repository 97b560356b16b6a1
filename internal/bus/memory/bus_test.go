package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clm/internal/customer/models"
)

func TestBus_RecordsEvents(t *testing.T) {
	b := New()
	require.NoError(t, b.Publish(context.Background(), &models.Event{EventID: "a"}))
	require.NoError(t, b.Publish(context.Background(), &models.Event{EventID: "b"}))

	events := b.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].EventID)
	assert.Equal(t, 2, b.Calls())
}

func TestBus_FailNext(t *testing.T) {
	b := New()
	boom := errors.New("boom")
	b.FailNext(2, boom)

	assert.ErrorIs(t, b.Publish(context.Background(), &models.Event{EventID: "a"}), boom)
	assert.ErrorIs(t, b.Publish(context.Background(), &models.Event{EventID: "a"}), boom)
	assert.NoError(t, b.Publish(context.Background(), &models.Event{EventID: "a"}))
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, 3, b.Calls())
}

func TestBus_FailForever(t *testing.T) {
	b := New()
	b.FailNext(-1, nil)
	for range 5 {
		assert.ErrorIs(t, b.Publish(context.Background(), &models.Event{}), ErrInjected)
	}
	b.FailNext(0, nil)
	assert.NoError(t, b.Publish(context.Background(), &models.Event{}))
}

func TestBus_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New().Publish(ctx, &models.Event{}), context.Canceled)
}
