// Package telemetry is the observability sink for request/response records.
//
// Recording never blocks and never fails the caller: records land in a bounded
// buffer and a background flusher hands them to an Exporter. When the buffer is
// full the oldest records are dropped and counted.
package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// Record is one observed request and the response it produced.
type Record struct {
	Timestamp  time.Time
	RequestID  string
	Component  string
	Identity   string
	Action     string
	Status     string
	Code       string
	Message    string
	Remaining  int
	DurationMS int64
}

// Sink accepts records on the request path.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// Exporter ships a batch of records somewhere durable or visible.
type Exporter interface {
	Export(ctx context.Context, batch []Record) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}

// LogExporter writes each record as a structured log line.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter returns an exporter writing to logger, or slog.Default when nil.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) Export(ctx context.Context, batch []Record) error {
	for _, rec := range batch {
		e.logger.InfoContext(ctx, "telemetry",
			"log_type", "telemetry",
			"component", rec.Component,
			"request_id", rec.RequestID,
			"identity", rec.Identity,
			"action", rec.Action,
			"status", rec.Status,
			"code", rec.Code,
			"message", rec.Message,
			"remaining", rec.Remaining,
			"duration_ms", rec.DurationMS,
			"recorded_at", rec.Timestamp,
		)
	}
	return nil
}
