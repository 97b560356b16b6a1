package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"clm/internal/authorization"
	busmemory "clm/internal/bus/memory"
	"clm/internal/compliance"
	"clm/internal/customer/models"
	"clm/internal/enrichment"
	"clm/internal/eventlog"
	logmemory "clm/internal/eventlog/memory"
	"clm/internal/projection"
	projmemory "clm/internal/projection/memory"
	"clm/internal/publisher"
	"clm/internal/registration/metrics"
	"clm/internal/schema"
	dErrors "clm/pkg/domain-errors"
	"clm/pkg/platform/retry"
	"clm/pkg/platform/sentinel"
)

type RegistrationSuite struct {
	suite.Suite
	authz     *authorization.MemorySource
	log       *logmemory.Store
	bus       *busmemory.Bus
	store     *projmemory.Store
	schemas   *schema.Registry
	projector *projection.Projector
	publisher *publisher.Publisher
	metrics   *metrics.Metrics
	orch      *Orchestrator
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) SetupTest() {
	s.authz = authorization.NewMemorySource(map[string]bool{"12345": true})
	s.log = logmemory.New()
	s.bus = busmemory.New()
	s.store = projmemory.New()
	s.schemas = schema.NewRegistry()
	s.metrics = metrics.New(prometheus.NewRegistry())

	projector, err := projection.NewProjector(s.store, nil)
	s.Require().NoError(err)
	s.projector = projector

	pub, err := publisher.New(s.log, s.bus,
		publisher.WithRetryPolicy(retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}))
	s.Require().NoError(err)
	s.publisher = pub

	s.orch = s.build(Deps{})
}

// build fills unset deps with the suite's real collaborators.
func (s *RegistrationSuite) build(deps Deps) *Orchestrator {
	oracle, err := authorization.New(s.authz)
	s.Require().NoError(err)
	if deps.Enricher == nil {
		deps.Enricher = enrichment.New()
	}
	if deps.Oracle == nil {
		deps.Oracle = oracle
	}
	if deps.Compliance == nil {
		deps.Compliance = compliance.NewDefault()
	}
	if deps.Schemas == nil {
		deps.Schemas = s.schemas
	}
	if deps.Publisher == nil {
		deps.Publisher = s.publisher
	}
	if deps.Projector == nil {
		deps.Projector = s.projector
	}
	o, err := New(deps, WithMetrics(s.metrics))
	s.Require().NoError(err)
	return o
}

func johnDoe() map[string]any {
	return map[string]any{
		"customer_id":         "12345",
		"name":                "John Doe",
		"email":               "john.doe@example.com",
		"authorized_to_trade": true,
	}
}

func (s *RegistrationSuite) TestRegistersAuthorizedCustomer() {
	out, err := s.orch.Register(context.Background(), johnDoe())
	s.Require().NoError(err)

	s.Equal(StateCommitted, out.State)
	s.Equal([]State{
		StateReceived,
		StateEnriched,
		StateAuthorizationChecked,
		StateComplianceChecked,
		StateEventAssembled,
		StateValidated,
		StateCommitted,
	}, out.Transitions)
	s.Equal("12345", out.CustomerID)

	s.Require().NotNil(out.Event)
	s.Equal(models.EventTypeCustomerRegistered, out.Event.Type)
	s.Equal("1.0.0", out.Event.Version)
	s.Equal("12345", out.Event.CustomerID)
	s.NotEmpty(out.Event.EventID)
	s.Equal(true, out.Event.Data["enriched"])
	s.Equal(true, out.Event.Data["complies_with_standards"])

	s.Len(s.bus.Events(), 1)
	s.Equal(1, s.log.Len())
	rec, err := s.store.Get(context.Background(), "12345")
	s.Require().NoError(err)
	s.Equal("John Doe", rec.Name())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Registrations.WithLabelValues(string(StateCommitted))))
}

func (s *RegistrationSuite) TestUnknownCustomerIsDenied() {
	data := johnDoe()
	data["customer_id"] = "99999"

	out, err := s.orch.Register(context.Background(), data)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	s.Equal("Customer not authorized to trade", dErrors.MessageOf(err))
	s.Equal(StateRejected, out.State)
	s.Equal(StateEnriched, out.FailedAt)
	s.assertNothingCommitted("99999")
}

func (s *RegistrationSuite) TestSubmittedAuthorizationFlagIsIgnored() {
	s.authz.Set("12345", false)

	_, err := s.orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorizationDenied),
		"the authoritative source wins over the submitted flag")
}

func (s *RegistrationSuite) TestEmptyNameFailsCompliance() {
	data := johnDoe()
	data["name"] = ""

	out, err := s.orch.Register(context.Background(), data)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	s.Equal("Compliance rules not met: name_present", dErrors.MessageOf(err))
	s.Equal(StateAuthorizationChecked, out.FailedAt)
	s.assertNothingCommitted("12345")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Rejections.WithLabelValues(string(StateAuthorizationChecked), string(dErrors.CodeComplianceRejected))))
}

func (s *RegistrationSuite) TestEnrichmentFailure() {
	failing := enrichmentSourceFunc(func(context.Context, string) (map[string]any, error) {
		return nil, enrichment.NewSourceError(enrichment.CategoryOutage, "down", nil)
	})
	orch := s.build(Deps{Enricher: enrichment.New(
		enrichment.WithSource(failing),
		enrichment.WithRetryPolicy(retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}),
	)})

	out, err := orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeEnrichmentFailed))
	s.Equal("Customer data enrichment failed", dErrors.MessageOf(err))
	s.Equal(StateReceived, out.FailedAt)
	s.assertNothingCommitted("12345")
}

func (s *RegistrationSuite) TestSubmittedMarkersDoNotSkipEnrichment() {
	lookups := 0
	source := enrichmentSourceFunc(func(context.Context, string) (map[string]any, error) {
		lookups++
		return map[string]any{"risk_tier": "high"}, nil
	})
	orch := s.build(Deps{Enricher: enrichment.New(enrichment.WithSource(source))})

	data := johnDoe()
	data["enriched"] = true
	data["standards_defaulted"] = false
	out, err := orch.Register(context.Background(), data)
	s.Require().NoError(err)

	s.Equal(1, lookups, "the source is consulted regardless of submitted markers")
	s.Equal("high", out.Event.Data["risk_tier"])
	s.Equal(true, out.Event.Data["complies_with_standards"])
	s.Equal(true, out.Event.Data["standards_defaulted"])
}

func (s *RegistrationSuite) TestStalledEnrichmentSourceGetsEveryAttempt() {
	attempts := 0
	stallsTwice := enrichmentSourceFunc(func(ctx context.Context, _ string) (map[string]any, error) {
		attempts++
		if attempts < 3 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return map[string]any{"segment": "retail"}, nil
	})
	enricher := enrichment.New(
		enrichment.WithSource(stallsTwice),
		enrichment.WithTimeout(20*time.Millisecond),
		enrichment.WithRetryPolicy(retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}),
	)
	oracle, err := authorization.New(s.authz)
	s.Require().NoError(err)
	orch, err := New(Deps{
		Enricher:   enricher,
		Oracle:     oracle,
		Compliance: compliance.NewDefault(),
		Schemas:    s.schemas,
		Publisher:  s.publisher,
		Projector:  s.projector,
	}, WithStepTimeouts(20*time.Millisecond, 0))
	s.Require().NoError(err)

	out, err := orch.Register(context.Background(), johnDoe())
	s.Require().NoError(err)
	s.Equal(3, attempts)
	s.Equal("retail", out.Event.Data["segment"])
}

func (s *RegistrationSuite) TestUnsupportedSchemaVersion() {
	orch := s.build(Deps{Schemas: schema.NewRegistry(schema.WithCurrentVersion("9.9.9"))})

	out, err := orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedSchemaVersion))
	s.Equal(StateEventAssembled, out.FailedAt)
	s.assertNothingCommitted("12345")
}

func (s *RegistrationSuite) TestPublishFailureKeepsEventButNoProjection() {
	s.bus.FailNext(-1, nil)

	out, err := s.orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodePublishFailed))
	s.Equal(StateValidated, out.FailedAt)

	pending, scanErr := s.log.Scan(context.Background(), eventlog.ScanOptions{UnpublishedOnly: true})
	s.Require().NoError(scanErr)
	s.Require().Len(pending, 1)
	s.Equal(out.Event.EventID, pending[0].Event.EventID)

	_, getErr := s.store.Get(context.Background(), "12345")
	s.ErrorIs(getErr, sentinel.ErrNotFound, "projection waits for delivery")
}

func (s *RegistrationSuite) TestProjectionFailureIsInternal() {
	orch := s.build(Deps{Projector: projectorFunc(func(context.Context, eventlog.Entry) (*models.CustomerRecord, error) {
		return nil, errors.New("disk full")
	})})

	_, err := orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Len(s.bus.Events(), 1, "the event was already delivered")
}

func (s *RegistrationSuite) TestAuthorizationSourceErrorFailsClosed() {
	orch := s.build(Deps{Oracle: oracleFunc(func(context.Context, string) (bool, error) {
		return true, errors.New("connection reset")
	})})

	_, err := orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	s.assertNothingCommitted("12345")
}

func (s *RegistrationSuite) TestAuthorizationTimeout() {
	slow := oracleFunc(func(ctx context.Context, _ string) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	orch := s.build(Deps{Oracle: slow})
	orch.authzTimeout = 10 * time.Millisecond

	_, err := orch.Register(context.Background(), johnDoe())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RegistrationSuite) TestCallerDataIsNotMutated() {
	data := johnDoe()
	_, err := s.orch.Register(context.Background(), data)
	s.Require().NoError(err)
	s.NotContains(data, "enriched")
}

func (s *RegistrationSuite) TestConcurrentRegistrations() {
	const n = 50
	for i := range n {
		s.authz.Set(fmt.Sprintf("c-%d", i), true)
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orch.Register(context.Background(), map[string]any{
				"customer_id": fmt.Sprintf("c-%d", i),
				"name":        "Customer",
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(n, s.log.Len())
	s.Equal(n, s.store.Len())
	s.Len(s.bus.Events(), n)
}

func (s *RegistrationSuite) assertNothingCommitted(customerID string) {
	s.Zero(s.log.Len(), "no event may be appended")
	s.Empty(s.bus.Events(), "no event may be published")
	_, err := s.store.Get(context.Background(), customerID)
	s.ErrorIs(err, sentinel.ErrNotFound, "no projection may be written")
}

type enrichmentSourceFunc func(ctx context.Context, id string) (map[string]any, error)

func (f enrichmentSourceFunc) Lookup(ctx context.Context, id string) (map[string]any, error) {
	return f(ctx, id)
}

type oracleFunc func(ctx context.Context, id string) (bool, error)

func (f oracleFunc) IsAuthorizedToTrade(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

type projectorFunc func(ctx context.Context, entry eventlog.Entry) (*models.CustomerRecord, error)

func (f projectorFunc) Apply(ctx context.Context, entry eventlog.Entry) (*models.CustomerRecord, error) {
	return f(ctx, entry)
}

func TestRegister_EmitsStepSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}()

	oracle, err := authorization.New(authorization.NewMemorySource(map[string]bool{"12345": true}))
	require.NoError(t, err)
	store := projmemory.New()
	projector, err := projection.NewProjector(store, nil)
	require.NoError(t, err)
	pub, err := publisher.New(logmemory.New(), busmemory.New())
	require.NoError(t, err)

	orch, err := New(Deps{
		Enricher:   enrichment.New(),
		Oracle:     oracle,
		Compliance: compliance.NewDefault(),
		Schemas:    schema.NewRegistry(),
		Publisher:  pub,
		Projector:  projector,
	})
	require.NoError(t, err)

	_, err = orch.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	for _, want := range []string{
		"registration.Register",
		"registration.enrich",
		"registration.authorize",
		"registration.compliance",
		"registration.project",
		"publisher.Publish",
	} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
