package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registrations *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
	Duration      prometheus.Histogram
	InFlight      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clm_registrations_total",
			Help: "Registration attempts by terminal state",
		}, []string{"state"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clm_registration_rejections_total",
			Help: "Rejected registrations by the step that rejected them and error code",
		}, []string{"step", "code"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clm_registration_duration_seconds",
			Help:    "End-to-end registration latency",
			Buckets: prometheus.DefBuckets,
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "clm_registrations_in_flight",
			Help: "Registrations currently being processed",
		}),
	}
}
