package testutil

import (
	"context"
	"net/http"
	"time"

	"clm/pkg/requestcontext"
)

// WithIdentity adds an authenticated subject to the request context, as the
// gateway would after admission.
func WithIdentity(req *http.Request, subject string) *http.Request {
	if subject == "" {
		return req
	}
	ctx := requestcontext.WithIdentity(req.Context(), subject, "static")
	return req.WithContext(ctx)
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithFixedTime pins requestcontext.Now for the request.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
