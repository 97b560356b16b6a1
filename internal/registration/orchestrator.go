// Package registration drives one customer registration through its guardrails:
// enrichment, authorization, compliance, schema validation, then append,
// publish and projection. Steps run in a fixed order and the first failure
// rejects the attempt.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"clm/internal/customer/models"
	"clm/internal/registration/metrics"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/tracing"
	"clm/pkg/requestcontext"
)

const (
	DefaultEnrichmentTimeout    = 10 * time.Second
	DefaultAuthorizationTimeout = 3 * time.Second
)

type Orchestrator struct {
	enricher   Enricher
	oracle     AuthorizationOracle
	compliance ComplianceChecker
	schemas    SchemaValidator
	publisher  EventPublisher
	projector  Projector

	enrichTimeout time.Duration
	authzTimeout  time.Duration
	newID         func() string
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Deps are the collaborators every registration needs.
type Deps struct {
	Enricher   Enricher
	Oracle     AuthorizationOracle
	Compliance ComplianceChecker
	Schemas    SchemaValidator
	Publisher  EventPublisher
	Projector  Projector
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithStepTimeouts bounds the enrichment and authorization steps. Non-positive values keep the defaults.
func WithStepTimeouts(enrichment, authorization time.Duration) Option {
	return func(o *Orchestrator) {
		if enrichment > 0 {
			o.enrichTimeout = enrichment
		}
		if authorization > 0 {
			o.authzTimeout = authorization
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Enricher == nil:
		return nil, errors.New("enricher is required")
	case deps.Oracle == nil:
		return nil, errors.New("authorization oracle is required")
	case deps.Compliance == nil:
		return nil, errors.New("compliance checker is required")
	case deps.Schemas == nil:
		return nil, errors.New("schema validator is required")
	case deps.Publisher == nil:
		return nil, errors.New("event publisher is required")
	case deps.Projector == nil:
		return nil, errors.New("projector is required")
	}
	o := &Orchestrator{
		enricher:      deps.Enricher,
		oracle:        deps.Oracle,
		compliance:    deps.Compliance,
		schemas:       deps.Schemas,
		publisher:     deps.Publisher,
		projector:     deps.Projector,
		enrichTimeout: DefaultEnrichmentTimeout,
		authzTimeout:  DefaultAuthorizationTimeout,
		newID:         uuid.NewString,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	// The step bound never cuts the enricher's own retry budget short.
	if b, ok := o.enricher.(bounded); ok && b.Bound() > o.enrichTimeout {
		o.enrichTimeout = b.Bound()
	}
	return o, nil
}

// Register runs one registration. The outcome is always returned; the error is
// non-nil exactly when the outcome is Rejected and carries the domain code.
//
// The projection is written only after the event validated, was appended and
// was published. If publishing fails the event stays in the log and the
// reconciler delivers and projects it later.
func (o *Orchestrator) Register(ctx context.Context, data map[string]any) (*Outcome, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.InFlight.Inc()
		defer o.metrics.InFlight.Dec()
	}

	ctx, span := tracing.StartSpan(ctx, "registration.Register")
	defer span.End()

	out := &Outcome{}
	out.advance(StateReceived)

	err := o.run(ctx, data, out)
	if o.metrics != nil {
		o.metrics.Duration.Observe(time.Since(start).Seconds())
		o.metrics.Registrations.WithLabelValues(string(out.State)).Inc()
	}
	span.SetAttributes(tracing.CustomerID(out.CustomerID), tracing.Outcome(string(out.State)))
	if err != nil {
		tracing.RecordError(span, err)
		o.rejected(ctx, out, err)
		return out, err
	}
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, data map[string]any, out *Outcome) error {
	// Enriched
	submitted := models.Submitted(data)
	rec, err := step(ctx, "enrich", o.enrichTimeout, func(ctx context.Context) (*models.CustomerRecord, error) {
		return o.enricher.Enrich(ctx, submitted)
	})
	if err != nil {
		return o.fail(out, withCode(err, dErrors.CodeEnrichmentFailed, "Customer data enrichment failed"))
	}
	out.CustomerID = rec.CustomerID
	out.advance(StateEnriched)

	// AuthorizationChecked
	authorized, err := step(ctx, "authorize", o.authzTimeout, func(ctx context.Context) (bool, error) {
		return o.oracle.IsAuthorizedToTrade(ctx, rec.CustomerID)
	})
	if err != nil {
		return o.fail(out, withCode(err, dErrors.CodeAuthorizationDenied, "Customer not authorized to trade"))
	}
	if !authorized {
		return o.fail(out, dErrors.New(dErrors.CodeAuthorizationDenied, "Customer not authorized to trade"))
	}
	rec.Set(models.AttrAuthorizedToTrade, true)
	out.advance(StateAuthorizationChecked)

	// ComplianceChecked
	if _, err := step(ctx, "compliance", 0, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.compliance.Check(ctx, rec)
	}); err != nil {
		return o.fail(out, err)
	}
	out.advance(StateComplianceChecked)

	// EventAssembled
	event := &models.Event{
		EventID:    o.newID(),
		CustomerID: rec.CustomerID,
		Type:       models.EventTypeCustomerRegistered,
		Version:    o.schemas.Current(),
		Data:       maps.Clone(rec.Attributes),
		OccurredAt: requestcontext.Now(ctx).UTC(),
	}
	out.Event = event
	out.advance(StateEventAssembled)

	// Validated
	if err := o.schemas.Validate(event); err != nil {
		return o.fail(out, err)
	}
	out.advance(StateValidated)

	// Committed: append + publish, then project.
	entry, err := o.publisher.Publish(ctx, event)
	if err != nil {
		return o.fail(out, err)
	}
	if _, err := step(ctx, "project", 0, func(ctx context.Context) (*models.CustomerRecord, error) {
		return o.projector.Apply(ctx, entry)
	}); err != nil {
		return o.fail(out, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update customer projection"))
	}
	out.advance(StateCommitted)
	return nil
}

// step runs fn in a child span, under timeout when positive.
func step[T any](ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartSpan(ctx, "registration."+name, tracing.Step(name))
	defer span.End()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return v, err
}

// withCode wraps err unless it already carries code.
func withCode(err error, code dErrors.Code, message string) error {
	if dErrors.HasCode(err, code) {
		return err
	}
	return dErrors.Wrap(err, code, message)
}

func (o *Orchestrator) fail(out *Outcome, err error) error {
	out.reject(dErrors.MessageOf(err))
	return err
}

func (o *Orchestrator) rejected(ctx context.Context, out *Outcome, err error) {
	code := dErrors.CodeOf(err)
	if o.metrics != nil {
		o.metrics.Rejections.WithLabelValues(string(out.FailedAt), string(code)).Inc()
	}
	attrs := []any{
		"customer_id", out.CustomerID,
		"failed_at", string(out.FailedAt),
		"code", string(code),
		"error", err,
	}
	if out.Event != nil {
		attrs = append(attrs, "event_id", out.Event.EventID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, "trace_id", sc.TraceID().String())
	}
	o.logger.WarnContext(ctx, "registration rejected", attrs...)
}
