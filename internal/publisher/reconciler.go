package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/publisher/metrics"
)

const (
	DefaultReconcileInterval = 30 * time.Second
	DefaultGracePeriod       = 30 * time.Second
	DefaultReconcileBatch    = 100
	DefaultConcurrency       = 4
)

// Projector folds a delivered entry into the customer view.
type Projector interface {
	Apply(ctx context.Context, entry eventlog.Entry) (*models.CustomerRecord, error)
}

// Reconciler republishes log entries that were appended but never delivered,
// then projects them. Entries younger than the grace period are left to the
// request that appended them.
type Reconciler struct {
	log         eventlog.Store
	publisher   *Publisher
	projector   Projector
	interval    time.Duration
	grace       time.Duration
	batch       int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithGracePeriod(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d >= 0 {
			r.grace = d
		}
	}
}

func WithBatchSize(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithReconcilerMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReconciler(log eventlog.Store, publisher *Publisher, projector Projector, opts ...ReconcilerOption) (*Reconciler, error) {
	if log == nil {
		return nil, errors.New("event log is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	r := &Reconciler{
		log:         log,
		publisher:   publisher,
		projector:   projector,
		interval:    DefaultReconcileInterval,
		grace:       DefaultGracePeriod,
		batch:       DefaultReconcileBatch,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReconcileOnce delivers one batch of pending entries and returns how many were
// delivered. Failures do not stop the batch; they are joined into the error.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	pending, err := r.log.Scan(ctx, eventlog.ScanOptions{
		UnpublishedOnly: true,
		OlderThan:       r.now().Add(-r.grace),
		Limit:           r.batch,
	})
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.Pending.Set(float64(len(pending)))
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		delivered atomic.Int64
		mu        sync.Mutex
		errs      []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, entry := range pending {
		g.Go(func() error {
			if err := r.publisher.Deliver(gctx, entry, "reconcile"); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			delivered.Add(1)
			if r.metrics != nil {
				r.metrics.Reconciled.Inc()
			}
			if r.projector != nil {
				if _, err := r.projector.Apply(gctx, entry); err != nil {
					r.logger.ErrorContext(gctx, "projection after reconcile failed",
						"event_id", entry.Event.EventID,
						"error", err,
					)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(delivered.Load())
	r.logger.InfoContext(ctx, "reconcile pass finished",
		"pending", len(pending),
		"delivered", n,
		"failed", len(errs),
	)
	return n, errors.Join(errs...)
}

// Run reconciles on every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "reconcile pass had failures", "error", err)
			}
		}
	}
}
