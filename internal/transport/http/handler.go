package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clm/internal/api"
	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/gateway"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/httputil"
	"clm/pkg/platform/sentinel"
	"clm/pkg/requestcontext"
)

// Read actions are only used for admission; they never reach the dispatcher.
const (
	actionReadCustomer = "read_customer"
	actionReadEvents   = "read_customer_events"

	maxEventsPage = 500
)

// Handler is the thin HTTP layer over the request processor and the read models.
type Handler struct {
	processor  RequestProcessor
	admitter   Admitter
	customers  CustomerReader
	events     EventReader
	translator *api.Translator
	logger     *slog.Logger
}

func NewHandler(processor RequestProcessor, admitter Admitter, customers CustomerReader, events EventReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		processor:  processor,
		admitter:   admitter,
		customers:  customers,
		events:     events,
		translator: api.NewTranslator(),
		logger:     logger,
	}
}

// Register mounts the v1 endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/requests", h.HandleRequest)
	r.Post("/v1/customers", h.HandleRegisterCustomer)
	r.Get("/v1/customers/{id}", h.HandleGetCustomer)
	r.Get("/v1/customers/{id}/events", h.HandleListEvents)
}

// HandleRequest handles POST /v1/requests: a full {auth_token, action, data}
// envelope in JSON or XML.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := api.FormatFor(r.Header.Get("Content-Type"))

	req, err := h.translator.Decode(format, r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestcontext.RequestID(ctx),
			"format", format,
			"error", err,
		)
		h.writeEnvelope(w, format, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return
	}

	resp, err := h.processor.Dispatch(ctx, req)
	h.writeEnvelope(w, req.Format, resp, err, http.StatusOK)
}

// HandleRegisterCustomer handles POST /v1/customers: a Bearer token and the
// customer data as the JSON body.
func (h *Handler) HandleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var data map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, api.MaxBodyBytes))
	if err := dec.Decode(&data); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		derr := dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(msg), derr, http.StatusCreated)
		return
	}

	resp, err := h.processor.Dispatch(ctx, &models.Request{
		AuthToken: bearerToken(r),
		Action:    models.ActionRegisterCustomer,
		Data:      data,
		Format:    api.FormatJSON,
	})
	h.writeEnvelope(w, api.FormatJSON, resp, err, http.StatusCreated)
}

type customerResponse struct {
	CustomerID string         `json:"customer_id"`
	Attributes map[string]any `json:"attributes"`
	Version    int64          `json:"version"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HandleGetCustomer handles GET /v1/customers/{id}.
func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.admit(w, r, actionReadCustomer)
	if !ok {
		return
	}
	customerID := chi.URLParam(r, "id")

	rec, err := h.customers.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.Wrap(err, dErrors.CodeNotFound, "Customer not found")
		} else {
			h.logger.ErrorContext(ctx, "failed to read customer",
				"request_id", requestcontext.RequestID(ctx),
				"customer_id", customerID,
				"error", err,
			)
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to read customer")
		}
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, customerResponse{
		CustomerID: rec.CustomerID,
		Attributes: rec.Attributes,
		Version:    rec.Version,
		UpdatedAt:  rec.UpdatedAt,
	})
}

type eventResponse struct {
	Position      int64        `json:"position"`
	StreamVersion int64        `json:"stream_version"`
	Event         models.Event `json:"event"`
	RecordedAt    time.Time    `json:"recorded_at"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
	// Next is the ?from= value for the following page; omitted when done.
	Next int64 `json:"next,omitempty"`
}

// HandleListEvents handles GET /v1/customers/{id}/events?from=&limit=.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.admit(w, r, actionReadEvents)
	if !ok {
		return
	}

	opts := eventlog.ScanOptions{CustomerID: chi.URLParam(r, "id")}
	var err error
	if opts.From, err = queryInt(r, "from"); err != nil {
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return
	}
	opts.Limit = int(min(limit, maxEventsPage))

	entries, err := h.events.Scan(ctx, opts)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to scan events",
			"request_id", requestcontext.RequestID(ctx),
			"customer_id", opts.CustomerID,
			"error", err,
		)
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to read events")
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return
	}

	out := eventsResponse{Events: make([]eventResponse, 0, len(entries))}
	for _, e := range entries {
		out.Events = append(out.Events, eventResponse{
			Position:      e.Position,
			StreamVersion: e.StreamVersion,
			Event:         e.Event,
			RecordedAt:    e.RecordedAt,
			PublishedAt:   e.PublishedAt,
		})
	}
	if len(entries) == opts.EffectiveLimit() {
		out.Next = entries[len(entries)-1].Position
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// admit runs read requests through the gateway so they share the caller's
// rate-limit window with writes.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, action string) (context.Context, bool) {
	ctx, _, err := h.admitter.AuthenticateAndRoute(r.Context(), bearerToken(r), &models.Request{Action: action})
	if err != nil {
		h.writeEnvelope(w, api.FormatJSON, models.ErrorResponse(dErrors.MessageOf(err)), err, http.StatusOK)
		return nil, false
	}
	return ctx, true
}

// writeEnvelope writes resp in format. A nil err uses okStatus; otherwise the
// status follows the error code and rate-limit denials carry Retry-After.
func (h *Handler) writeEnvelope(w http.ResponseWriter, format string, resp *models.Response, err error, okStatus int) {
	status := okStatus
	if err != nil {
		status = httputil.StatusFor(dErrors.CodeOf(err))
		var rl *gateway.RateLimitError
		if errors.As(err, &rl) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter()))
		}
	}

	body, encErr := h.translator.Encode(format, resp)
	if encErr != nil {
		h.logger.Error("failed to encode response", "format", format, "error", encErr)
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse("internal error"))
		return
	}
	w.Header().Set("Content-Type", api.ContentType(format))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func bearerToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func queryInt(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+key+" parameter")
	}
	return n, nil
}
