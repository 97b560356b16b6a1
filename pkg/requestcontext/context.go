// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// The gateway sets the caller identity after admission; transports set the
// request id and clock. Services only read:
//
//	identity := requestcontext.Identity(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	identityKey    struct{}
	authMethodKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyIdentity    = identityKey{}
	ContextKeyAuthMethod  = authMethodKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Identity retrieves the authenticated caller subject. Empty when the request
// has not passed the gateway.
func Identity(ctx context.Context) string {
	if s, ok := ctx.Value(ContextKeyIdentity).(string); ok {
		return s
	}
	return ""
}

// WithIdentity injects the authenticated caller subject and the verifier that
// resolved it.
func WithIdentity(ctx context.Context, subject, method string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyIdentity, subject)
	return context.WithValue(ctx, ContextKeyAuthMethod, method)
}

// AuthMethod names the verifier that resolved the identity ("static", "jwt", ...).
func AuthMethod(ctx context.Context) string {
	if m, ok := ctx.Value(ContextKeyAuthMethod).(string); ok {
		return m
	}
	return ""
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for contexts no transport touched (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request clock, so every step of one registration sees the
// same instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
