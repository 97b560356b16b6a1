package gateway

import (
	"context"
	"time"

	"clm/internal/gateway/ratelimit"
	"clm/internal/identity"
	"clm/pkg/platform/telemetry"
)

// IdentityVerifier resolves an auth token to a caller identity.
// A nil identity with a nil error means the token was not recognised.
type IdentityVerifier interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

// CounterStore performs the atomic increment-and-check for one identity key.
type CounterStore interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*ratelimit.Result, error)
}

// TelemetrySink receives one record per admission outcome. Implementations must not block.
type TelemetrySink interface {
	Record(ctx context.Context, rec telemetry.Record)
}
