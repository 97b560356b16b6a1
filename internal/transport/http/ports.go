package httptransport

import (
	"context"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/gateway"
)

// RequestProcessor runs an inbound request through the pipeline.
type RequestProcessor interface {
	Dispatch(ctx context.Context, req *models.Request) (*models.Response, error)
}

// Admitter authenticates and rate-limits read requests.
type Admitter interface {
	AuthenticateAndRoute(ctx context.Context, authToken string, req *models.Request) (context.Context, *gateway.Admission, error)
}

// CustomerReader serves the current customer view.
type CustomerReader interface {
	Get(ctx context.Context, customerID string) (*models.CustomerRecord, error)
}

// EventReader serves a customer's event history.
type EventReader interface {
	Scan(ctx context.Context, opts eventlog.ScanOptions) ([]eventlog.Entry, error)
}
