// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "clm/pkg/platform/strings"
)

// Backend names accepted by the *_STORE / *_SOURCE / EVENT_BUS variables.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
	BackendSQS      = "sqs"
	BackendNone     = "none"
)

// Config is the full server configuration.
type Config struct {
	Server        Server
	RateLimit     RateLimit
	Retry         Retry
	Timeouts      Timeouts
	Redis         RedisConfig
	Postgres      Postgres
	Kafka         Kafka
	SQS           SQS
	Identity      Identity
	Authorization Authorization
	Enrichment    Enrichment
	Compliance    Compliance
	Telemetry     Telemetry
	Tracing       Tracing
	Reconciler    Reconciler
	EventStore    string
	EventBus      string

	// RebuildProjection replays the event log into the projection at startup.
	RebuildProjection bool
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

type RateLimit struct {
	Store     string
	Threshold int
	Window    time.Duration
}

// Retry is the shared policy for enrichment and publishing.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	Jitter    float64
}

type Timeouts struct {
	Enrichment    time.Duration
	Authorization time.Duration
	Publish       time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Postgres struct {
	URL      string
	MaxConns int32
	Migrate  bool
}

type Kafka struct {
	Brokers     []string
	Topic       string
	CreateTopic bool
	Partitions  int32
}

type SQS struct {
	QueueURL string
	Region   string
	FIFO     bool
}

// Identity configures token verification. StaticTokens maps token to subject.
type Identity struct {
	StaticTokens  map[string]string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	APIKeys       []APIKey
}

// APIKey is one "<id>:<subject>:<bcrypt hash>" entry of API_KEYS.
type APIKey struct {
	ID      string
	Subject string
	Hash    string
}

// Authorization selects the authoritative trading-authorization source. Seed
// preloads the memory source.
type Authorization struct {
	Source string
	Seed   map[string]bool
}

type Enrichment struct {
	Source string
}

// Compliance lists the optional rules evaluated after the baseline rule, in
// field order.
type Compliance struct {
	RequiredAttributes []string
	EnforceStandards   bool
	RegoPolicies       []string
}

type Telemetry struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Tracing struct {
	Endpoint    string
	SampleRatio float64
}

type Reconciler struct {
	Enabled     bool
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
	Concurrency int
}

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed values are reported together rather than silently defaulted.
func FromEnv() (Config, error) {
	e := &env{lookup: os.LookupEnv}
	return e.load()
}

// FromMap builds a Config from an explicit variable set.
func FromMap(vars map[string]string) (Config, error) {
	e := &env{lookup: func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}}
	return e.load()
}

func (e *env) load() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            e.str("CLM_ADDR", ":8080"),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			LogLevel:        e.str("LOG_LEVEL", "info"),
			LogFormat:       e.str("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimit{
			Store:     e.str("RATE_LIMIT_STORE", BackendMemory),
			Threshold: e.int("RATE_LIMIT_THRESHOLD", 100),
			Window:    e.duration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Retry: Retry{
			Attempts:  e.int("RETRY_ATTEMPTS", 3),
			BaseDelay: e.duration("RETRY_BASE_DELAY", time.Second),
			Jitter:    e.float("RETRY_JITTER", 0),
		},
		Timeouts: Timeouts{
			Enrichment:    e.duration("ENRICHMENT_TIMEOUT", 10*time.Second),
			Authorization: e.duration("AUTHORIZATION_TIMEOUT", 3*time.Second),
			Publish:       e.duration("PUBLISH_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			URL:      e.str("DATABASE_URL", ""),
			MaxConns: int32(e.int("DATABASE_MAX_CONNS", 10)),
			Migrate:  e.bool("DATABASE_MIGRATE", true),
		},
		Kafka: Kafka{
			Brokers:     e.list("KAFKA_BROKERS"),
			Topic:       e.str("KAFKA_TOPIC", "clm.customer-events"),
			CreateTopic: e.bool("KAFKA_CREATE_TOPIC", true),
			Partitions:  int32(e.int("KAFKA_PARTITIONS", 3)),
		},
		SQS: SQS{
			QueueURL: e.str("SQS_QUEUE_URL", ""),
			Region:   e.str("AWS_REGION", ""),
			FIFO:     e.bool("SQS_FIFO", false),
		},
		Identity: Identity{
			StaticTokens:  e.pairs("STATIC_TOKENS", map[string]string{"valid-token": "user_id"}),
			JWTSigningKey: e.str("JWT_SIGNING_KEY", ""),
			JWTIssuer:     e.str("JWT_ISSUER", "clm"),
			JWTAudience:   e.str("JWT_AUDIENCE", "clm-api"),
			APIKeys:       e.apiKeys("API_KEYS"),
		},
		Authorization: Authorization{
			Source: e.str("AUTHZ_SOURCE", BackendMemory),
			Seed:   e.boolPairs("AUTHZ_SEED"),
		},
		Enrichment: Enrichment{
			Source: e.str("ENRICHMENT_SOURCE", BackendNone),
		},
		Compliance: Compliance{
			RequiredAttributes: e.list("COMPLIANCE_REQUIRED_ATTRIBUTES"),
			EnforceStandards:   e.bool("COMPLIANCE_ENFORCE_STANDARDS", false),
			RegoPolicies:       e.list("COMPLIANCE_REGO_POLICIES"),
		},
		Telemetry: Telemetry{
			BufferSize:    e.int("TELEMETRY_BUFFER_SIZE", 10000),
			BatchSize:     e.int("TELEMETRY_BATCH_SIZE", 100),
			FlushInterval: e.duration("TELEMETRY_FLUSH_INTERVAL", time.Second),
		},
		Tracing: Tracing{
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRatio: e.float("OTEL_SAMPLE_RATIO", 1),
		},
		Reconciler: Reconciler{
			Enabled:     e.bool("RECONCILER_ENABLED", true),
			Interval:    e.duration("RECONCILER_INTERVAL", 30*time.Second),
			GracePeriod: e.duration("RECONCILER_GRACE_PERIOD", 30*time.Second),
			BatchSize:   e.int("RECONCILER_BATCH_SIZE", 100),
			Concurrency: e.int("RECONCILER_CONCURRENCY", 4),
		},
		EventStore: e.str("EVENT_STORE", BackendMemory),
		EventBus:   e.str("EVENT_BUS", BackendMemory),

		RebuildProjection: e.bool("PROJECTION_REBUILD", false),
	}
	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.RateLimit.Threshold <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_THRESHOLD must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Retry.Attempts <= 0 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be positive"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("RETRY_BASE_DELAY must not be negative"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATIO must be within [0, 1]"))
	}

	errs = append(errs, oneOf("RATE_LIMIT_STORE", c.RateLimit.Store, BackendMemory, BackendRedis))
	errs = append(errs, oneOf("EVENT_STORE", c.EventStore, BackendMemory, BackendPostgres))
	errs = append(errs, oneOf("EVENT_BUS", c.EventBus, BackendMemory, BackendKafka, BackendSQS))
	errs = append(errs, oneOf("AUTHZ_SOURCE", c.Authorization.Source, BackendMemory, BackendRedis, BackendPostgres))
	errs = append(errs, oneOf("ENRICHMENT_SOURCE", c.Enrichment.Source, BackendNone, BackendRedis))

	needsRedis := c.RateLimit.Store == BackendRedis || c.Authorization.Source == BackendRedis || c.Enrichment.Source == BackendRedis
	if needsRedis && c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required by the selected backends"))
	}
	if (c.EventStore == BackendPostgres || c.Authorization.Source == BackendPostgres) && c.Postgres.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required by the selected backends"))
	}
	if c.EventBus == BackendKafka && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENT_BUS=kafka"))
	}
	if c.EventBus == BackendSQS && c.SQS.QueueURL == "" {
		errs = append(errs, errors.New("SQS_QUEUE_URL is required when EVENT_BUS=sqs"))
	}
	if len(c.Identity.StaticTokens) == 0 && c.Identity.JWTSigningKey == "" && len(c.Identity.APIKeys) == 0 {
		errs = append(errs, errors.New("one of STATIC_TOKENS, JWT_SIGNING_KEY or API_KEYS must be set"))
	}
	return errors.Join(errs...)
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s=%q must be one of %s", key, value, strings.Join(allowed, ", "))
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	return platformstrings.SplitList(v, ",")
}

// pairs parses "k1=v1,k2=v2".
func (e *env) pairs(key string, def map[string]string) map[string]string {
	items := e.list(key)
	if items == nil {
		return def
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			e.errs = append(e.errs, fmt.Errorf("%s: malformed pair %q", key, item))
			continue
		}
		out[k] = v
	}
	return out
}

func (e *env) boolPairs(key string) map[string]bool {
	raw := e.pairs(key, nil)
	if raw == nil {
		return nil
	}
	out := make(map[string]bool, len(raw))
	for k, v := range raw {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %s: %w", key, k, err))
			continue
		}
		out[k] = b
	}
	return out
}

func (e *env) apiKeys(key string) []APIKey {
	var out []APIKey
	for _, item := range e.list(key) {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			e.errs = append(e.errs, fmt.Errorf("%s: malformed entry %q", key, item))
			continue
		}
		out = append(out, APIKey{ID: parts[0], Subject: parts[1], Hash: parts[2]})
	}
	return out
}
