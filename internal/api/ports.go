package api

import (
	"context"

	"clm/internal/customer/models"
	"clm/internal/gateway"
	"clm/internal/registration"
)

// Admitter authenticates and rate-limits a request before any action runs.
type Admitter interface {
	AuthenticateAndRoute(ctx context.Context, authToken string, req *models.Request) (context.Context, *gateway.Admission, error)
}

// Registrar runs the registration pipeline for one customer.
type Registrar interface {
	Register(ctx context.Context, data map[string]any) (*registration.Outcome, error)
}
