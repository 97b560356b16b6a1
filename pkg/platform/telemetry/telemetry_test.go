package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clm/pkg/requestcontext"
)

type captureExporter struct {
	mu      sync.Mutex
	records []Record
	fail    bool
	block   chan struct{}
}

func (c *captureExporter) Export(_ context.Context, batch []Record) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("exporter down")
	}
	c.records = append(c.records, batch...)
	return nil
}

func (c *captureExporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRingBuffer(t *testing.T) {
	t.Run("drops oldest when full", func(t *testing.T) {
		b := NewRingBuffer(3)
		for i := range 5 {
			b.Enqueue(Record{Action: string(rune('a' + i))})
		}
		assert.Equal(t, 3, b.Len())
		assert.Equal(t, int64(2), b.Dropped())

		batch := b.DequeueBatch(10)
		require.Len(t, batch, 3)
		assert.Equal(t, "c", batch[0].Action)
		assert.Equal(t, "e", batch[2].Action)
		assert.Nil(t, b.DequeueBatch(1))
	})

	t.Run("non-positive capacity uses default", func(t *testing.T) {
		assert.Equal(t, 10000, NewRingBuffer(0).capacity)
	})
}

func TestBuffered(t *testing.T) {
	t.Run("requires an exporter", func(t *testing.T) {
		_, err := NewBuffered(nil)
		require.Error(t, err)
	})

	t.Run("close drains buffered records and fills request metadata", func(t *testing.T) {
		exp := &captureExporter{}
		sink, err := NewBuffered(exp, WithLogger(discardLogger()), WithFlushInterval(time.Hour))
		require.NoError(t, err)
		sink.Start(context.Background())

		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), fixed), "req-7")
		sink.Record(ctx, Record{Component: "gateway", Status: "admitted"})

		require.NoError(t, sink.Close(context.Background()))
		require.Equal(t, 1, exp.count())
		assert.Equal(t, "req-7", exp.records[0].RequestID)
		assert.Equal(t, fixed, exp.records[0].Timestamp)
	})

	t.Run("record never blocks on a stalled exporter", func(t *testing.T) {
		exp := &captureExporter{block: make(chan struct{})}
		sink, err := NewBuffered(exp, WithCapacity(10), WithBatchSize(1), WithLogger(discardLogger()))
		require.NoError(t, err)
		sink.Start(context.Background())

		done := make(chan struct{})
		go func() {
			for range 1000 {
				sink.Record(context.Background(), Record{Component: "gateway"})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Record blocked on a stalled exporter")
		}
		assert.Positive(t, sink.Dropped())
		close(exp.block)
		require.NoError(t, sink.Close(context.Background()))
	})

	t.Run("export failures are counted and swallowed", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg)
		exp := &captureExporter{fail: true}
		sink, err := NewBuffered(exp, WithMetrics(m), WithLogger(discardLogger()))
		require.NoError(t, err)

		sink.Record(context.Background(), Record{})
		sink.Flush(context.Background())

		assert.Equal(t, 0, sink.Len())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ExportFailures))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Recorded))
	})
}

func TestLogExporter(t *testing.T) {
	exp := NewLogExporter(discardLogger())
	require.NoError(t, exp.Export(context.Background(), []Record{{Component: "gateway"}}))
	Nop{}.Record(context.Background(), Record{})
}
