// Package authorization answers whether a customer may trade. Answers are read
// from the backing source on every call and never cached.
package authorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const DefaultTimeout = 2 * time.Second

// Source is the system of record for trading authorization.
// Unknown customers return false with a nil error.
type Source interface {
	AuthorizedToTrade(ctx context.Context, customerID string) (bool, error)
}

type Oracle struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Oracle)

func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = logger
	}
}

func New(source Source, opts ...Option) (*Oracle, error) {
	if source == nil {
		return nil, errors.New("authorization source is required")
	}
	o := &Oracle{
		source:  source,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// IsAuthorizedToTrade consults the source. An empty id is never authorized.
func (o *Oracle) IsAuthorizedToTrade(ctx context.Context, customerID string) (bool, error) {
	if customerID == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ok, err := o.source.AuthorizedToTrade(ctx, customerID)
	if err != nil {
		o.logger.WarnContext(ctx, "authorization lookup failed", "customer_id", customerID, "error", err)
		return false, fmt.Errorf("authorization lookup for %s: %w", customerID, err)
	}
	return ok, nil
}
