// Package api processes inbound calls: gateway admission, translation into the
// canonical request, then dispatch on the action name.
package api

import (
	"context"
	"errors"
	"log/slog"

	"clm/internal/customer/models"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/tracing"
	"clm/pkg/requestcontext"
)

const msgUnknownAction = "Unknown action"

type Service struct {
	gateway    Admitter
	registrar  Registrar
	translator *Translator
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(gateway Admitter, registrar Registrar, opts ...Option) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if registrar == nil {
		return nil, errors.New("registrar is required")
	}
	s := &Service{
		gateway:    gateway,
		registrar:  registrar,
		translator: NewTranslator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process handles one request and always returns a response envelope.
func (s *Service) Process(ctx context.Context, req *models.Request) *models.Response {
	resp, _ := s.Dispatch(ctx, req)
	return resp
}

// Dispatch is Process that also returns the error behind an error envelope so
// transports can pick a status code. The response is never nil.
func (s *Service) Dispatch(ctx context.Context, req *models.Request) (*models.Response, error) {
	if req == nil {
		err := dErrors.New(dErrors.CodeBadRequest, "request is required")
		return s.fail(ctx, nil, err), err
	}

	ctx, span := tracing.StartSpan(ctx, "api.Dispatch")
	defer span.End()

	ctx, _, err := s.gateway.AuthenticateAndRoute(ctx, req.AuthToken, req)
	if err != nil {
		tracing.RecordError(span, err)
		return s.fail(ctx, req, err), err
	}

	canonical, err := s.translator.Canonical(req)
	if err != nil {
		tracing.RecordError(span, err)
		return s.fail(ctx, req, err), err
	}

	switch canonical.Action {
	case models.ActionRegisterCustomer:
		out, err := s.registrar.Register(ctx, canonical.Data)
		if err != nil {
			tracing.RecordError(span, err)
			return s.fail(ctx, canonical, err), err
		}
		return &models.Response{
			Status:     models.StatusSuccess,
			CustomerID: out.CustomerID,
			Event:      out.Event,
		}, nil
	default:
		err := dErrors.New(dErrors.CodeUnknownAction, msgUnknownAction)
		return s.fail(ctx, canonical, err), err
	}
}

func (s *Service) fail(ctx context.Context, req *models.Request, err error) *models.Response {
	msg := dErrors.MessageOf(err)
	action := ""
	if req != nil {
		action = req.Action
	}
	s.logger.InfoContext(ctx, "request failed",
		"action", action,
		"code", string(dErrors.CodeOf(err)),
		"identity", requestcontext.Identity(ctx),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return models.ErrorResponse(msg)
}
