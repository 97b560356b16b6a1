package registration

import (
	"context"
	"time"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/schema"
)

type Enricher interface {
	Enrich(ctx context.Context, data map[string]any) (*models.CustomerRecord, error)
}

// bounded is implemented by enrichers that retry internally.
type bounded interface {
	Bound() time.Duration
}

type AuthorizationOracle interface {
	IsAuthorizedToTrade(ctx context.Context, customerID string) (bool, error)
}

type ComplianceChecker interface {
	Check(ctx context.Context, record *models.CustomerRecord) error
}

type SchemaValidator interface {
	Current() string
	Validate(event schema.Fielder) error
}

// EventPublisher appends then delivers. The entry is valid whenever the append succeeded.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.Event) (eventlog.Entry, error)
}

type Projector interface {
	Apply(ctx context.Context, entry eventlog.Entry) (*models.CustomerRecord, error)
}
