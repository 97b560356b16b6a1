package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Appended       prometheus.Counter
	Published      *prometheus.CounterVec
	PublishFailed  *prometheus.CounterVec
	Retries        prometheus.Counter
	CircuitState   prometheus.Gauge
	Reconciled     prometheus.Counter
	Pending        prometheus.Gauge
	PublishLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_events_appended_total",
			Help: "Events appended to the event log",
		}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clm_events_published_total",
			Help: "Events delivered to the bus, by path",
		}, []string{"path"}),
		PublishFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clm_events_publish_failed_total",
			Help: "Events whose delivery failed after retries, by reason",
		}, []string{"reason"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_events_publish_retries_total",
			Help: "Bus publish attempts that were retried",
		}),
		CircuitState: f.NewGauge(prometheus.GaugeOpts{
			Name: "clm_bus_circuit_open",
			Help: "1 when the bus circuit breaker is open",
		}),
		Reconciled: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_events_reconciled_total",
			Help: "Unpublished events delivered by the reconciler",
		}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "clm_events_pending",
			Help: "Unpublished events seen by the last reconcile pass",
		}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clm_events_publish_duration_seconds",
			Help:    "Time to deliver one event, retries included",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
