package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.RateLimit.Threshold)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, map[string]string{"valid-token": "user_id"}, cfg.Identity.StaticTokens)
	assert.Equal(t, BackendMemory, cfg.EventStore)
	assert.Equal(t, BackendMemory, cfg.EventBus)
	assert.Equal(t, BackendNone, cfg.Enrichment.Source)
	assert.True(t, cfg.Reconciler.Enabled)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"RATE_LIMIT_THRESHOLD": "5",
		"RATE_LIMIT_WINDOW":    "10s",
		"AUTHZ_SEED":           "12345=true, 999=false",
		"STATIC_TOKENS":        "a=alice,b=bob",
		"EVENT_BUS":            "kafka",
		"KAFKA_BROKERS":        "k1:9092, k2:9092",
		"OTEL_SAMPLE_RATIO":    "0.25",

		"COMPLIANCE_REQUIRED_ATTRIBUTES": "email, email,segment",
		"COMPLIANCE_ENFORCE_STANDARDS":   "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RateLimit.Threshold)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, map[string]bool{"12345": true, "999": false}, cfg.Authorization.Seed)
	assert.Equal(t, map[string]string{"a": "alice", "b": "bob"}, cfg.Identity.StaticTokens)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, []string{"email", "segment"}, cfg.Compliance.RequiredAttributes)
	assert.True(t, cfg.Compliance.EnforceStandards)
}

func TestFromMap_ParseErrorsAreReported(t *testing.T) {
	_, err := FromMap(map[string]string{
		"RATE_LIMIT_THRESHOLD": "lots",
		"RETRY_BASE_DELAY":     "soon",
		"AUTHZ_SEED":           "12345",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_THRESHOLD")
	assert.Contains(t, err.Error(), "RETRY_BASE_DELAY")
	assert.Contains(t, err.Error(), "AUTHZ_SEED")
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"zero threshold":       {"RATE_LIMIT_THRESHOLD": "0"},
		"zero attempts":        {"RETRY_ATTEMPTS": "0"},
		"unknown bus":          {"EVENT_BUS": "carrier-pigeon"},
		"redis without url":    {"RATE_LIMIT_STORE": "redis"},
		"postgres without url": {"EVENT_STORE": "postgres"},
		"kafka without broker": {"EVENT_BUS": "kafka"},
		"sqs without queue":    {"EVENT_BUS": "sqs"},
		"ratio out of range":   {"OTEL_SAMPLE_RATIO": "2"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromMap(vars)
			assert.Error(t, err)
		})
	}
}

func TestFromMap_APIKeys(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"API_KEYS": "k1:svc-a:$2a$10$abcdefghijklmnopqrstuv",
	})
	require.NoError(t, err)
	require.Len(t, cfg.Identity.APIKeys, 1)
	assert.Equal(t, APIKey{ID: "k1", Subject: "svc-a", Hash: "$2a$10$abcdefghijklmnopqrstuv"}, cfg.Identity.APIKeys[0])

	_, err = FromMap(map[string]string{"API_KEYS": "k1-only"})
	assert.Error(t, err)
}
