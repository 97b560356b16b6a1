package httptransport

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/internal/gateway"
	"clm/internal/gateway/ratelimit"
	"clm/internal/identity"
	"clm/internal/platform/metrics"
	"clm/internal/transport/http/mocks"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/sentinel"
	"clm/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	processor *mocks.MockRequestProcessor
	admitter  *mocks.MockAdmitter
	customers *mocks.MockCustomerReader
	events    *mocks.MockEventReader
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.processor = mocks.NewMockRequestProcessor(s.ctrl)
	s.admitter = mocks.NewMockAdmitter(s.ctrl)
	s.customers = mocks.NewMockCustomerReader(s.ctrl)
	s.events = mocks.NewMockEventReader(s.ctrl)

	reg := prometheus.NewRegistry()
	h := NewHandler(s.processor, s.admitter, s.customers, s.events, nil)
	s.router = NewRouter(h, NewHealth(time.Second), RouterConfig{Metrics: metrics.New(reg), Gatherer: reg})
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) admitAll() {
	s.admitter.EXPECT().AuthenticateAndRoute(gomock.Any(), "valid-token", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ *models.Request) (context.Context, *gateway.Admission, error) {
			return ctx, &gateway.Admission{}, nil
		})
}

func (s *HandlerSuite) TestPostRequestJSON() {
	event := &models.Event{EventID: "e-1", CustomerID: "12345", Type: models.EventTypeCustomerRegistered, Version: "1.0.0"}
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *models.Request) (*models.Response, error) {
			s.Equal("valid-token", req.AuthToken)
			s.Equal(models.ActionRegisterCustomer, req.Action)
			s.Equal("John Doe", req.Data["name"])
			return &models.Response{Status: models.StatusSuccess, CustomerID: "12345", Event: event}, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/requests", map[string]any{
		"auth_token": "valid-token",
		"action":     "register_customer",
		"data":       map[string]any{"customer_id": "12345", "name": "John Doe"},
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "success")
	testutil.AssertJSONContains(s.T(), rr, "customer_id", "12345")
	s.NotEmpty(rr.Header().Get("X-Request-Id"))
}

func (s *HandlerSuite) TestPostRequestXML() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *models.Request) (*models.Response, error) {
			s.Equal("xml", req.Format)
			return models.ErrorResponse("Unknown action"), dErrors.New(dErrors.CodeUnknownAction, "Unknown action")
		})

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/requests", "application/xml",
		`<request><auth_token>valid-token</auth_token><action>nope</action><data/></request>`)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	s.Contains(rr.Header().Get("Content-Type"), "application/xml")
	s.Contains(rr.Body.String(), "<message>Unknown action</message>")
}

func (s *HandlerSuite) TestPostRequestMalformed() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(0)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/requests", "application/json", "{bad")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "malformed json request")
}

func (s *HandlerSuite) TestPostRequestErrorStatuses() {
	cases := []struct {
		code   dErrors.Code
		msg    string
		status int
	}{
		{dErrors.CodeUnauthorized, "Authentication failed", http.StatusUnauthorized},
		{dErrors.CodeAuthorizationDenied, "Customer not authorized to trade", http.StatusForbidden},
		{dErrors.CodeComplianceRejected, "Compliance rules not met: name_present", http.StatusUnprocessableEntity},
		{dErrors.CodePublishFailed, "Event publish failed", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		s.Run(string(tc.code), func() {
			s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
				Return(models.ErrorResponse(tc.msg), dErrors.New(tc.code, tc.msg))

			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/requests", map[string]any{"action": "register_customer"})
			rr := testutil.DoRequest(s.router, req)

			testutil.AssertStatusAndError(s.T(), rr, tc.status, tc.msg)
		})
	}
}

func (s *HandlerSuite) TestPostCustomers() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *models.Request) (*models.Response, error) {
			s.Equal("valid-token", req.AuthToken)
			s.Equal(models.ActionRegisterCustomer, req.Action)
			return &models.Response{Status: models.StatusSuccess, CustomerID: "12345"}, nil
		})

	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/customers",
		map[string]any{"customer_id": "12345", "name": "John Doe"}), "valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "customer_id", "12345")
}

func (s *HandlerSuite) TestPostCustomersEmptyBody() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(0)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/customers", "application/json", "")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "request body is required")
}

func (s *HandlerSuite) TestGetCustomer() {
	s.admitAll()
	s.customers.EXPECT().Get(gomock.Any(), "12345").Return(&models.CustomerRecord{
		CustomerID: "12345",
		Attributes: map[string]any{"name": "John Doe"},
		Version:    1,
	}, nil)

	req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/v1/customers/12345"), "valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "customer_id", "12345")
	testutil.AssertJSONContains(s.T(), rr, "version", float64(1))
}

func (s *HandlerSuite) TestGetCustomerNotFound() {
	s.admitAll()
	s.customers.EXPECT().Get(gomock.Any(), "nope").Return(nil, sentinel.ErrNotFound)

	req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/v1/customers/nope"), "valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "Customer not found")
}

func (s *HandlerSuite) TestGetCustomerRequiresAdmission() {
	s.admitter.EXPECT().AuthenticateAndRoute(gomock.Any(), "", gomock.Any()).
		Return(nil, nil, dErrors.New(dErrors.CodeUnauthorized, "Authentication failed"))
	s.customers.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/customers/12345"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "Authentication failed")
}

func (s *HandlerSuite) TestListEvents() {
	s.admitAll()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.events.EXPECT().Scan(gomock.Any(), eventlog.ScanOptions{CustomerID: "12345", From: 3, Limit: 2}).
		Return([]eventlog.Entry{
			{Position: 4, StreamVersion: 1, Event: models.Event{EventID: "a"}, RecordedAt: now},
			{Position: 9, StreamVersion: 2, Event: models.Event{EventID: "b"}, RecordedAt: now, PublishedAt: &now},
		}, nil)

	req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/v1/customers/12345/events?from=3&limit=2"), "valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[eventsResponse](s.T(), rr)
	s.Len(got.Events, 2)
	s.Equal(int64(9), got.Next)
	s.Nil(got.Events[0].PublishedAt)
	s.NotNil(got.Events[1].PublishedAt)
}

func (s *HandlerSuite) TestListEventsBadParam() {
	s.admitAll()
	s.events.EXPECT().Scan(gomock.Any(), gomock.Any()).Times(0)

	req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/v1/customers/12345/events?limit=-1"), "valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid limit parameter")
}

func (s *HandlerSuite) TestPanicIsRecovered() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *models.Request) (*models.Response, error) { panic("boom") })

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/requests", map[string]any{"action": "x"})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal error")
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	s.processor.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&models.Response{Status: models.StatusSuccess}, nil)
	testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/requests", map[string]any{"action": "x"}))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))

	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Body.String(), `clm_http_requests_total{method="POST",route="/v1/requests",status="200"} 1`)
}

func TestRetryAfterOnRateLimit(t *testing.T) {
	gw, err := gateway.New(
		identity.NewStaticVerifier(map[string]string{"valid-token": "user_id"}),
		ratelimit.NewMemoryStore(),
		gateway.WithLimit(1, time.Minute),
	)
	require.NoError(t, err)
	reader := readerFunc(func(context.Context, string) (*models.CustomerRecord, error) {
		return &models.CustomerRecord{CustomerID: "1"}, nil
	})
	router := NewRouter(NewHandler(nopProcessor{}, gw, reader, nil, nil), NewHealth(0), RouterConfig{})

	get := func() *http.Request {
		return testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/v1/customers/1"), "valid-token")
	}
	testutil.AssertStatusOK(t, testutil.DoRequest(router, get()))

	rr := testutil.DoRequest(router, get())
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "Rate limit exceeded")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestReadiness(t *testing.T) {
	health := NewHealth(50 * time.Millisecond)
	health.Add("postgres", func(context.Context) error { return nil })
	router := NewRouter(NewHandler(nopProcessor{}, nil, nil, nil, nil), health, RouterConfig{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatusOK(t, rr)

	health.Add("kafka", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("broker unreachable")
	})
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `"name":"kafka","status":"failed"`), body)
	assert.Contains(t, body, `"name":"postgres","status":"ok"`)

	testutil.AssertStatusOK(t, testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz")))
}

type nopProcessor struct{}

func (nopProcessor) Dispatch(context.Context, *models.Request) (*models.Response, error) {
	return &models.Response{Status: models.StatusSuccess}, nil
}

type readerFunc func(ctx context.Context, id string) (*models.CustomerRecord, error)

func (f readerFunc) Get(ctx context.Context, id string) (*models.CustomerRecord, error) {
	return f(ctx, id)
}
