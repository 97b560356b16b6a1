// Package publisher makes events durable and then delivers them to the bus.
//
// An event is appended to the log before any delivery is attempted, so a
// subscriber can never observe an event the log does not hold. Delivery is
// at-least-once: a failed publish leaves the entry unpublished in the log and
// the Reconciler retries it later.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/publisher/metrics"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/circuit"
	"clm/pkg/platform/retry"
	"clm/pkg/platform/tracing"
)

const DefaultPublishTimeout = 10 * time.Second

// Bus delivers an event to subscribers.
type Bus interface {
	Publish(ctx context.Context, event *models.Event) error
}

// ErrCircuitOpen is returned when the bus breaker is rejecting calls.
var ErrCircuitOpen = errors.New("bus circuit open")

type Publisher struct {
	log     eventlog.Store
	bus     Bus
	policy  retry.Policy
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithRetryPolicy(p retry.Policy) Option {
	return func(pub *Publisher) {
		pub.policy = p
	}
}

// WithPublishTimeout bounds each bus attempt. A whole delivery may take up to
// the retry policy's Bound of it.
func WithPublishTimeout(d time.Duration) Option {
	return func(pub *Publisher) {
		if d > 0 {
			pub.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(pub *Publisher) {
		pub.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(pub *Publisher) {
		pub.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(pub *Publisher) {
		pub.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(pub *Publisher) {
		if now != nil {
			pub.now = now
		}
	}
}

func New(log eventlog.Store, bus Bus, opts ...Option) (*Publisher, error) {
	if log == nil {
		return nil, errors.New("event log is required")
	}
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	p := &Publisher{
		log:     log,
		bus:     bus,
		policy:  retry.DefaultPolicy(),
		timeout: DefaultPublishTimeout,
		breaker: circuit.New("bus", circuit.WithSuccessThreshold(1)),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish appends event to the log, then delivers it. The returned entry is
// valid whenever the append succeeded, including when delivery failed with
// CodePublishFailed.
func (p *Publisher) Publish(ctx context.Context, event *models.Event) (eventlog.Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "publisher.Publish",
		tracing.EventID(event.EventID),
		tracing.CustomerID(event.CustomerID),
	)
	defer span.End()

	entry, err := p.log.Append(ctx, event)
	if err != nil {
		tracing.RecordError(span, err)
		p.logger.ErrorContext(ctx, "event append failed", "event_id", event.EventID, "error", err)
		return eventlog.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	if p.metrics != nil {
		p.metrics.Appended.Inc()
	}

	if err := p.Deliver(ctx, entry, "direct"); err != nil {
		tracing.RecordError(span, err)
		return entry, err
	}
	published := p.now()
	entry.PublishedAt = &published
	return entry, nil
}

// Deliver publishes an already-logged entry and marks it published. path labels
// the caller in metrics ("direct" or "reconcile").
func (p *Publisher) Deliver(ctx context.Context, entry eventlog.Entry, path string) error {
	if !p.breaker.Allow() {
		p.failed(ctx, entry, "circuit_open", ErrCircuitOpen)
		return dErrors.Wrap(ErrCircuitOpen, dErrors.CodePublishFailed, "Event publish failed")
	}

	// Delivery outlives the caller: an abandoned request must not abort a publish in flight.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.policy.Bound(p.timeout))
	defer cancel()

	start := p.now()
	event := entry.Event
	err := retry.Do(pubCtx, p.policy, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.bus.Publish(attemptCtx, &event)
	}, retry.OnRetry(func(attempt int, err error, next time.Duration) {
		if p.metrics != nil {
			p.metrics.Retries.Inc()
		}
		p.logger.WarnContext(ctx, "bus publish failed, retrying",
			"event_id", event.EventID,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	}))
	if p.metrics != nil {
		p.metrics.PublishLatency.Observe(p.now().Sub(start).Seconds())
	}

	if err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "bus circuit opened", "breaker", p.breaker.Name())
			p.setCircuitGauge()
		}
		p.failed(ctx, entry, "exhausted", err)
		return dErrors.Wrap(err, dErrors.CodePublishFailed, "Event publish failed")
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "bus circuit closed", "breaker", p.breaker.Name())
		p.setCircuitGauge()
	}

	if err := p.log.MarkPublished(pubCtx, event.EventID, p.now()); err != nil {
		// Delivered but not marked: the reconciler will deliver it again.
		p.logger.WarnContext(ctx, "mark published failed", "event_id", event.EventID, "error", err)
	}
	if p.metrics != nil {
		p.metrics.Published.WithLabelValues(path).Inc()
	}
	return nil
}

func (p *Publisher) failed(ctx context.Context, entry eventlog.Entry, reason string, err error) {
	if p.metrics != nil {
		p.metrics.PublishFailed.WithLabelValues(reason).Inc()
	}
	p.logger.ErrorContext(ctx, "event publish failed",
		"event_id", entry.Event.EventID,
		"customer_id", entry.Event.CustomerID,
		"position", entry.Position,
		"reason", reason,
		"error", err,
	)
}

func (p *Publisher) setCircuitGauge() {
	if p.metrics == nil {
		return
	}
	if p.breaker.IsOpen() {
		p.metrics.CircuitState.Set(1)
		return
	}
	p.metrics.CircuitState.Set(0)
}

// Breaker exposes the bus breaker for health reporting.
func (p *Publisher) Breaker() *circuit.Breaker {
	return p.breaker
}
