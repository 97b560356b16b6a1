package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"clm/internal/api"
	"clm/internal/authorization"
	"clm/internal/bus/kafka"
	busmemory "clm/internal/bus/memory"
	"clm/internal/bus/sqs"
	"clm/internal/compliance"
	"clm/internal/enrichment"
	"clm/internal/eventlog"
	logmemory "clm/internal/eventlog/memory"
	logpostgres "clm/internal/eventlog/postgres"
	"clm/internal/gateway"
	gatewaymetrics "clm/internal/gateway/metrics"
	"clm/internal/gateway/ratelimit"
	"clm/internal/identity"
	"clm/internal/platform/config"
	platformpg "clm/internal/platform/postgres"
	platformredis "clm/internal/platform/redis"
	"clm/internal/projection"
	projmemory "clm/internal/projection/memory"
	projpostgres "clm/internal/projection/postgres"
	"clm/internal/publisher"
	publishermetrics "clm/internal/publisher/metrics"
	"clm/internal/registration"
	registrationmetrics "clm/internal/registration/metrics"
	"clm/internal/schema"
	httptransport "clm/internal/transport/http"
	"clm/pkg/platform/circuit"
	"clm/pkg/platform/retry"
	"clm/pkg/platform/telemetry"
)

// application holds the long-lived components main drives.
type application struct {
	handler    *httptransport.Handler
	health     *httptransport.Health
	telemetry  *telemetry.Buffered
	reconciler *publisher.Reconciler
	closers    []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build constructs every component selected by cfg. On error the handles opened
// so far are released.
func build(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (_ *application, err error) {
	app := &application{health: httptransport.NewHealth(httptransport.DefaultCheckTimeout)}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		app.health.Add("redis", redisClient.Health)
	}

	db, pool, err := openPostgres(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
		app.health.Add("postgres", db.PingContext)
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
	}

	// Gateway: identity, per-identity counters, telemetry.
	verifier, err := buildVerifier(cfg.Identity, log)
	if err != nil {
		return nil, err
	}
	var counters gateway.CounterStore = ratelimit.NewMemoryStore()
	if cfg.RateLimit.Store == config.BackendRedis {
		counters = ratelimit.NewRedisStore(redisClient.Client)
	}
	app.telemetry, err = telemetry.NewBuffered(telemetry.NewLogExporter(log),
		telemetry.WithLogger(log),
		telemetry.WithMetrics(telemetry.NewMetrics(reg)),
		telemetry.WithCapacity(cfg.Telemetry.BufferSize),
		telemetry.WithBatchSize(cfg.Telemetry.BatchSize),
		telemetry.WithFlushInterval(cfg.Telemetry.FlushInterval),
	)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(verifier, counters,
		gateway.WithLogger(log),
		gateway.WithMetrics(gatewaymetrics.New(reg)),
		gateway.WithTelemetry(app.telemetry),
		gateway.WithLimit(cfg.RateLimit.Threshold, cfg.RateLimit.Window),
	)
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		Attempts:   cfg.Retry.Attempts,
		BaseDelay:  cfg.Retry.BaseDelay,
		Multiplier: 1,
		Jitter:     cfg.Retry.Jitter,
	}

	// Registration steps.
	enrichOpts := []enrichment.Option{
		enrichment.WithRetryPolicy(policy),
		enrichment.WithTimeout(cfg.Timeouts.Enrichment),
		enrichment.WithLogger(log),
	}
	if cfg.Enrichment.Source == config.BackendRedis {
		enrichOpts = append(enrichOpts, enrichment.WithSource(enrichment.NewRedisSource(redisClient.Client)))
	}
	enricher := enrichment.New(enrichOpts...)

	source, err := buildAuthorizationSource(ctx, cfg.Authorization, redisClient, pool)
	if err != nil {
		return nil, err
	}
	oracle, err := authorization.New(source,
		authorization.WithTimeout(cfg.Timeouts.Authorization),
		authorization.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	engine, err := buildCompliance(ctx, cfg.Compliance)
	if err != nil {
		return nil, err
	}

	// Event log, bus and publisher.
	var events eventlog.Store = logmemory.New()
	var store projection.Store = projmemory.New()
	if cfg.EventStore == config.BackendPostgres {
		events = logpostgres.New(db)
		store = projpostgres.New(pool)
	}

	bus, err := buildBus(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	pubMetrics := publishermetrics.New(reg)
	pub, err := publisher.New(events, bus,
		publisher.WithRetryPolicy(policy),
		publisher.WithPublishTimeout(cfg.Timeouts.Publish),
		publisher.WithBreaker(circuit.New("bus", circuit.WithSuccessThreshold(1))),
		publisher.WithLogger(log),
		publisher.WithMetrics(pubMetrics),
	)
	if err != nil {
		return nil, err
	}
	projector, err := projection.NewProjector(store, log)
	if err != nil {
		return nil, err
	}
	if cfg.RebuildProjection {
		if _, err := projector.Rebuild(ctx, events); err != nil {
			return nil, fmt.Errorf("rebuild projection: %w", err)
		}
	}

	orch, err := registration.New(registration.Deps{
		Enricher:   enricher,
		Oracle:     oracle,
		Compliance: engine,
		Schemas:    schema.NewRegistry(),
		Publisher:  pub,
		Projector:  projector,
	},
		registration.WithLogger(log),
		registration.WithMetrics(registrationmetrics.New(reg)),
		registration.WithStepTimeouts(enricher.Bound(), cfg.Timeouts.Authorization),
	)
	if err != nil {
		return nil, err
	}

	svc, err := api.New(gw, orch, api.WithLogger(log))
	if err != nil {
		return nil, err
	}
	app.handler = httptransport.NewHandler(svc, gw, store, events, log)

	if cfg.Reconciler.Enabled {
		app.reconciler, err = publisher.NewReconciler(events, pub, projector,
			publisher.WithInterval(cfg.Reconciler.Interval),
			publisher.WithGracePeriod(cfg.Reconciler.GracePeriod),
			publisher.WithBatchSize(cfg.Reconciler.BatchSize),
			publisher.WithConcurrency(cfg.Reconciler.Concurrency),
			publisher.WithReconcilerLogger(log),
			publisher.WithReconcilerMetrics(pubMetrics),
		)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

func openPostgres(ctx context.Context, cfg config.Config, log *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	if cfg.Postgres.URL == "" {
		return nil, nil, nil
	}
	db, err := platformpg.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.Migrate {
		if err := platformpg.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("database migrations applied")
	}
	pool, err := platformpg.NewPool(ctx, cfg.Postgres)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, pool, nil
}

func buildVerifier(cfg config.Identity, log *slog.Logger) (*identity.Chain, error) {
	var verifiers []identity.Verifier
	if len(cfg.StaticTokens) > 0 {
		verifiers = append(verifiers, identity.NewStaticVerifier(cfg.StaticTokens))
	}
	if cfg.JWTSigningKey != "" {
		verifiers = append(verifiers, identity.NewJWTVerifier(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience))
	}
	if len(cfg.APIKeys) > 0 {
		keyring := identity.NewKeyringVerifier()
		for _, k := range cfg.APIKeys {
			if err := keyring.Add(k.ID, k.Subject, k.Hash); err != nil {
				return nil, fmt.Errorf("api key %s: %w", k.ID, err)
			}
		}
		verifiers = append(verifiers, keyring)
	}
	return identity.NewChain(log, verifiers...)
}

// buildCompliance puts the configured rules after the baseline name rule.
func buildCompliance(ctx context.Context, cfg config.Compliance) (*compliance.Engine, error) {
	rules := []compliance.Rule{compliance.NamePresent()}
	if len(cfg.RequiredAttributes) > 0 {
		rules = append(rules, compliance.RequiredAttributes(cfg.RequiredAttributes...))
	}
	if cfg.EnforceStandards {
		rules = append(rules, compliance.StandardsCompliant())
	}
	for _, path := range cfg.RegoPolicies {
		rule, err := compliance.LoadRegoRule(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("compliance policy %s: %w", path, err)
		}
		rules = append(rules, rule)
	}
	return compliance.New(rules...), nil
}

// seeder is implemented by the durable authorization sources.
type seeder interface {
	Set(ctx context.Context, customerID string, authorized bool) error
}

func buildAuthorizationSource(ctx context.Context, cfg config.Authorization, rc *platformredis.Client, pool *pgxpool.Pool) (authorization.Source, error) {
	var src authorization.Source
	switch cfg.Source {
	case config.BackendRedis:
		src = authorization.NewRedisSource(rc.Client)
	case config.BackendPostgres:
		src = authorization.NewPostgresSource(pool)
	default:
		return authorization.NewMemorySource(cfg.Seed), nil
	}
	s, ok := src.(seeder)
	if !ok {
		return src, nil
	}
	for id, authorized := range cfg.Seed {
		if err := s.Set(ctx, id, authorized); err != nil {
			return nil, fmt.Errorf("seed authorization for %s: %w", id, err)
		}
	}
	return src, nil
}

func buildBus(ctx context.Context, cfg config.Config, app *application) (publisher.Bus, error) {
	switch cfg.EventBus {
	case config.BackendKafka:
		b, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, b.Close)
		if cfg.Kafka.CreateTopic {
			if err := b.EnsureTopic(ctx, cfg.Kafka.Partitions, -1); err != nil {
				return nil, err
			}
		}
		app.health.Add("kafka", b.Health)
		return b, nil
	case config.BackendSQS:
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.SQS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.SQS.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		var sqsOpts []sqs.Option
		if cfg.SQS.FIFO {
			sqsOpts = append(sqsOpts, sqs.WithFIFO())
		}
		b, err := sqs.New(awssqs.NewFromConfig(awsCfg), cfg.SQS.QueueURL, sqsOpts...)
		if err != nil {
			return nil, err
		}
		app.health.Add("sqs", b.Health)
		return b, nil
	case config.BackendMemory:
		b := busmemory.New()
		app.health.Add("bus", b.Health)
		return b, nil
	default:
		return nil, errors.New("unsupported event bus " + cfg.EventBus)
	}
}
