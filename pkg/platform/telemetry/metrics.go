package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the telemetry sink.
type Metrics struct {
	Recorded        prometheus.Counter
	Dropped         prometheus.Counter
	ExportFailures  prometheus.Counter
	BufferedRecords prometheus.Gauge
}

// NewMetrics registers telemetry sink metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_telemetry_records_total",
			Help: "Total number of telemetry records accepted by the sink",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_telemetry_dropped_total",
			Help: "Total number of telemetry records dropped because the buffer was full",
		}),
		ExportFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "clm_telemetry_export_failures_total",
			Help: "Total number of telemetry batches the exporter failed to ship",
		}),
		BufferedRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "clm_telemetry_buffered_records",
			Help: "Records waiting in the telemetry buffer",
		}),
	}
}
