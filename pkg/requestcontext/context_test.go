package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Identity(ctx))
	assert.Empty(t, AuthMethod(ctx))
	assert.Empty(t, RequestID(ctx))

	ctx = WithIdentity(ctx, "user_id", "static")
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "user_id", Identity(ctx))
	assert.Equal(t, "static", AuthMethod(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))

	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}
