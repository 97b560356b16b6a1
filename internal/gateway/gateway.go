package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clm/internal/customer/models"
	"clm/internal/gateway/metrics"
	"clm/internal/gateway/ratelimit"
	"clm/internal/identity"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/telemetry"
	"clm/pkg/requestcontext"
)

const (
	DefaultThreshold = 100
	DefaultWindow    = time.Minute

	component = "gateway"
)

// Admission is the outcome of a successful authenticateAndRoute.
type Admission struct {
	Identity  *identity.Identity
	RateLimit *ratelimit.Result
}

// RateLimitError is returned when the caller exhausted its window.
type RateLimitError struct {
	Result *ratelimit.Result
	err    *dErrors.Error
}

func (e *RateLimitError) Error() string { return e.err.Error() }
func (e *RateLimitError) Unwrap() error { return e.err }

// RetryAfter returns seconds until the caller may retry.
func (e *RateLimitError) RetryAfter() int {
	if e.Result == nil {
		return 0
	}
	return e.Result.RetryAfter
}

type Gateway struct {
	verifier  IdentityVerifier
	counters  CounterStore
	sink      TelemetrySink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	threshold int
	window    time.Duration
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithTelemetry(sink TelemetrySink) Option {
	return func(g *Gateway) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// WithLimit overrides the per-identity threshold and window. Non-positive values keep the defaults.
func WithLimit(threshold int, window time.Duration) Option {
	return func(g *Gateway) {
		if threshold > 0 {
			g.threshold = threshold
		}
		if window > 0 {
			g.window = window
		}
	}
}

func New(verifier IdentityVerifier, counters CounterStore, opts ...Option) (*Gateway, error) {
	if verifier == nil {
		return nil, errors.New("identity verifier is required")
	}
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	g := &Gateway{
		verifier:  verifier,
		counters:  counters,
		sink:      telemetry.Nop{},
		logger:    slog.Default(),
		threshold: DefaultThreshold,
		window:    DefaultWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gateway) Threshold() int        { return g.threshold }
func (g *Gateway) Window() time.Duration { return g.window }

// AuthenticateAndRoute resolves the caller, then charges one unit against its window.
// The returned context carries the resolved identity. Unresolved tokens never touch the counter.
func (g *Gateway) AuthenticateAndRoute(ctx context.Context, authToken string, req *models.Request) (context.Context, *Admission, error) {
	start := time.Now()
	action := ""
	if req != nil {
		action = req.Action
	}

	ident, err := g.verifier.Authenticate(ctx, authToken)
	if err != nil || ident == nil || ident.Subject == "" {
		if err != nil {
			g.logger.WarnContext(ctx, "identity verifier failed", "error", err)
		}
		g.incAuthFailures()
		authErr := dErrors.New(dErrors.CodeUnauthorized, "Authentication failed")
		g.record(ctx, start, "", action, authErr, nil)
		return ctx, nil, authErr
	}

	result, err := g.counters.AllowN(ctx, ratelimit.IdentityKey(ident.Subject), 1, g.threshold, g.window)
	if err != nil {
		g.logger.ErrorContext(ctx, "rate limit counter failed", "error", err, "identity", ident.Subject)
		g.incCounterStoreErrors()
		storeErr := dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
		g.record(ctx, start, ident.Subject, action, storeErr, nil)
		return ctx, nil, storeErr
	}
	if !result.Allowed {
		g.incRateLimited()
		limitErr := &RateLimitError{
			Result: result,
			err:    dErrors.New(dErrors.CodeRateLimitExceeded, "Rate limit exceeded").(*dErrors.Error),
		}
		g.record(ctx, start, ident.Subject, action, limitErr, result)
		return ctx, nil, limitErr
	}

	if g.metrics != nil {
		g.metrics.IncAdmitted(ident.Method)
	}
	ctx = requestcontext.WithIdentity(ctx, ident.Subject, ident.Method)
	g.record(ctx, start, ident.Subject, action, nil, result)
	return ctx, &Admission{Identity: ident, RateLimit: result}, nil
}

func (g *Gateway) record(ctx context.Context, start time.Time, subject, action string, err error, result *ratelimit.Result) {
	elapsed := time.Since(start)
	if g.metrics != nil {
		g.metrics.ObserveAdmission(elapsed.Seconds())
	}
	rec := telemetry.Record{
		Component:  component,
		Identity:   subject,
		Action:     action,
		Status:     "admitted",
		DurationMS: elapsed.Milliseconds(),
		Remaining:  -1,
	}
	if result != nil {
		rec.Remaining = result.Remaining
	}
	if err != nil {
		rec.Status = "rejected"
		rec.Code = string(dErrors.CodeOf(err))
		rec.Message = dErrors.MessageOf(err)
	}
	g.sink.Record(ctx, rec)
}

func (g *Gateway) incAuthFailures() {
	if g.metrics != nil {
		g.metrics.IncAuthFailures()
	}
}

func (g *Gateway) incRateLimited() {
	if g.metrics != nil {
		g.metrics.IncRateLimited()
	}
}

func (g *Gateway) incCounterStoreErrors() {
	if g.metrics != nil {
		g.metrics.IncCounterStoreErrors()
	}
}
