package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clm/pkg/requestcontext"
)

// Buffered is a Sink that buffers records and exports them in the background.
type Buffered struct {
	buffer    *RingBuffer
	exporter  Exporter
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration

	notify    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Buffered sink.
type Option func(*Buffered)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffered) {
		b.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(b *Buffered) {
		b.metrics = m
	}
}

// WithCapacity bounds the number of records held before the oldest are dropped.
func WithCapacity(n int) Option {
	return func(b *Buffered) {
		b.buffer = NewRingBuffer(n)
	}
}

// WithBatchSize bounds how many records one Export call receives.
func WithBatchSize(n int) Option {
	return func(b *Buffered) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Buffered) {
		if d > 0 {
			b.interval = d
		}
	}
}

// NewBuffered creates a sink exporting to exporter. Call Start to begin flushing
// and Close to drain.
func NewBuffered(exporter Exporter, opts ...Option) (*Buffered, error) {
	if exporter == nil {
		return nil, errors.New("telemetry exporter is required")
	}
	b := &Buffered{
		buffer:    NewRingBuffer(10000),
		exporter:  exporter,
		logger:    slog.Default(),
		batchSize: 100,
		interval:  time.Second,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Record buffers rec without blocking. Missing timestamp and request id are
// filled from ctx.
func (b *Buffered) Record(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}
	if rec.RequestID == "" {
		rec.RequestID = requestcontext.RequestID(ctx)
	}
	dropped := b.buffer.Enqueue(rec)
	if b.metrics != nil {
		b.metrics.Recorded.Inc()
		if dropped {
			b.metrics.Dropped.Inc()
		}
		b.metrics.BufferedRecords.Set(float64(b.buffer.Len()))
	}
	if b.buffer.Len() >= b.batchSize {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
}

// Start launches the background flusher. It stops when ctx ends or Close is called.
func (b *Buffered) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run(ctx)
	})
}

func (b *Buffered) run(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.Flush(ctx)
		case <-b.notify:
			b.Flush(ctx)
		}
	}
}

// Flush exports everything currently buffered. Export failures are logged and
// the batch is discarded; telemetry is best effort.
func (b *Buffered) Flush(ctx context.Context) {
	for {
		batch := b.buffer.DequeueBatch(b.batchSize)
		if len(batch) == 0 {
			break
		}
		if err := b.exporter.Export(ctx, batch); err != nil {
			if b.metrics != nil {
				b.metrics.ExportFailures.Inc()
			}
			b.logger.WarnContext(ctx, "telemetry export failed", "records", len(batch), "error", err)
		}
	}
	if b.metrics != nil {
		b.metrics.BufferedRecords.Set(float64(b.buffer.Len()))
	}
}

// Close stops the flusher and drains the buffer with ctx as the deadline.
func (b *Buffered) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
	b.Flush(ctx)
	return ctx.Err()
}

// Len returns buffered record count.
func (b *Buffered) Len() int {
	return b.buffer.Len()
}

// Dropped returns the number of records dropped for lack of space.
func (b *Buffered) Dropped() int64 {
	return b.buffer.Dropped()
}
