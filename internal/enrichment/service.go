// Package enrichment augments submitted customer data before any decision is made.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clm/internal/customer/models"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/retry"
)

const DefaultTimeout = 5 * time.Second

// Source supplies external attributes for a customer. A customer the source
// knows nothing about yields nil attributes and a nil error.
type Source interface {
	Lookup(ctx context.Context, customerID string) (map[string]any, error)
}

type Service struct {
	source  Source
	policy  retry.Policy
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Service)

func WithSource(source Source) Option {
	return func(s *Service) {
		s.source = source
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithTimeout bounds each source attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		policy:  retry.DefaultPolicy(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enrich returns an enriched copy of data. On already-enriched data the source
// is not consulted again and existing marker fields are left as they are.
//
// An absent complies_with_standards is defaulted to true and flagged with
// standards_defaulted. That is a policy default, not a verification.
func (s *Service) Enrich(ctx context.Context, data map[string]any) (*models.CustomerRecord, error) {
	rec := models.NewCustomerRecord(data)

	if !rec.Enriched() && s.source != nil && rec.CustomerID != "" {
		attrs, err := s.lookup(ctx, rec.CustomerID)
		if err != nil {
			s.logger.WarnContext(ctx, "enrichment failed",
				"customer_id", rec.CustomerID,
				"category", string(CategoryOf(err)),
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeEnrichmentFailed, "Customer data enrichment failed")
		}
		for k, v := range attrs {
			if !rec.Has(k) {
				rec.Set(k, v)
			}
		}
	}

	rec.Set(models.AttrEnriched, true)
	if !rec.Has(models.AttrCompliesWithStandards) {
		rec.Set(models.AttrCompliesWithStandards, true)
		rec.Set(models.AttrStandardsDefaulted, true)
	}
	return rec, nil
}

// Bound is the longest Enrich can spend on the source, every attempt and
// retry delay included. Callers bounding the whole step should use at least this.
func (s *Service) Bound() time.Duration {
	return s.policy.Bound(s.timeout)
}

func (s *Service) lookup(ctx context.Context, customerID string) (map[string]any, error) {
	var attrs map[string]any
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		got, err := s.source.Lookup(attemptCtx, customerID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = NewSourceError(CategoryTimeout, "lookup timed out", err)
			}
			if !IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		attrs = got
		return nil
	}, retry.OnRetry(func(attempt int, err error, next time.Duration) {
		s.logger.DebugContext(ctx, "retrying enrichment lookup",
			"customer_id", customerID,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	}))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && CategoryOf(err) == CategoryInternal {
		err = NewSourceError(CategoryTimeout, "enrichment deadline exceeded", err)
	}
	return attrs, err
}
