package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for gateway admission.
type Metrics struct {
	Admitted            *prometheus.CounterVec
	AuthFailures        prometheus.Counter
	RateLimited         prometheus.Counter
	CounterStoreErrors  prometheus.Counter
	AdmissionLatencySec prometheus.Histogram
}

// New registers gateway metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Admitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clm_gateway_admitted_total",
			Help: "Requests admitted by the gateway, by auth method",
		}, []string{"method"}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_gateway_auth_failures_total",
			Help: "Requests rejected because the token did not resolve to an identity",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_gateway_rate_limited_total",
			Help: "Requests rejected by the per-identity rate limit",
		}),
		CounterStoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_gateway_counter_store_errors_total",
			Help: "Rate limit counter store failures (requests fail closed)",
		}),
		AdmissionLatencySec: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clm_gateway_admission_duration_seconds",
			Help:    "Time spent authenticating and rate limiting a request",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncAdmitted(method string) {
	m.Admitted.WithLabelValues(method).Inc()
}

func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}

func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}

func (m *Metrics) IncCounterStoreErrors() {
	m.CounterStoreErrors.Inc()
}

func (m *Metrics) ObserveAdmission(seconds float64) {
	m.AdmissionLatencySec.Observe(seconds)
}
