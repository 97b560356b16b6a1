// Package postgres is the PostgreSQL event log, backed by database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/pkg/platform/sentinel"
	"clm/pkg/platform/tx"
)

const uniqueViolation = "23505"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists events in the event_log table. Per-customer stream versions are
// tracked in event_streams so an append is a single row lock plus an insert.
type Store struct {
	db        *sql.DB
	txTimeout time.Duration
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) dbtx {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event *models.Event) (eventlog.Entry, error) {
	if event == nil || event.EventID == "" {
		return eventlog.Entry{}, fmt.Errorf("append: event id is required")
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return eventlog.Entry{}, fmt.Errorf("encode event payload: %w", err)
	}

	var entry eventlog.Entry
	err = tx.RunInTx(ctx, s.db, s.txTimeout, func(ctx context.Context) error {
		c := s.conn(ctx)

		var streamVersion int64
		err := c.QueryRowContext(ctx, `
			INSERT INTO event_streams (customer_id, version, updated_at)
			VALUES ($1, 1, NOW())
			ON CONFLICT (customer_id) DO UPDATE SET version = event_streams.version + 1, updated_at = NOW()
			RETURNING version
		`, event.CustomerID).Scan(&streamVersion)
		if err != nil {
			return fmt.Errorf("advance stream version: %w", err)
		}

		var (
			position   int64
			recordedAt time.Time
		)
		err = c.QueryRowContext(ctx, `
			INSERT INTO event_log (
				event_id, customer_id, stream_version, event_type,
				schema_version, payload, occurred_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING position, recorded_at
		`,
			event.EventID,
			event.CustomerID,
			streamVersion,
			string(event.Type),
			event.Version,
			payload,
			event.OccurredAt,
		).Scan(&position, &recordedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("append event %s: %w", event.EventID, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert event: %w", err)
		}

		entry = eventlog.Entry{
			Position:      position,
			StreamVersion: streamVersion,
			Event:         *event.Clone(),
			RecordedAt:    recordedAt,
		}
		return nil
	})
	if err != nil {
		return eventlog.Entry{}, err
	}
	return entry, nil
}

func (s *Store) Scan(ctx context.Context, opts eventlog.ScanOptions) ([]eventlog.Entry, error) {
	var (
		where = []string{"position > $1"}
		args  = []any{max(opts.From, 0)}
	)
	if opts.CustomerID != "" {
		args = append(args, opts.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if opts.UnpublishedOnly {
		where = append(where, "published_at IS NULL")
	}
	if !opts.OlderThan.IsZero() {
		args = append(args, opts.OlderThan)
		where = append(where, fmt.Sprintf("recorded_at < $%d", len(args)))
	}
	args = append(args, opts.EffectiveLimit())

	query := fmt.Sprintf(`
		SELECT position, stream_version, event_id, customer_id, event_type,
			schema_version, payload, occurred_at, recorded_at, published_at
		FROM event_log
		WHERE %s
		ORDER BY position ASC
		LIMIT $%d
	`, strings.Join(where, " AND "), len(args))

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	defer rows.Close()

	var entries []eventlog.Entry
	for rows.Next() {
		var (
			e           eventlog.Entry
			eventType   string
			payload     []byte
			publishedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.Position,
			&e.StreamVersion,
			&e.Event.EventID,
			&e.Event.CustomerID,
			&eventType,
			&e.Event.Version,
			&payload,
			&e.Event.OccurredAt,
			&e.RecordedAt,
			&publishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Event.Type = models.EventType(eventType)
		if err := json.Unmarshal(payload, &e.Event.Data); err != nil {
			return nil, fmt.Errorf("decode event payload %s: %w", e.Event.EventID, err)
		}
		if publishedAt.Valid {
			at := publishedAt.Time
			e.PublishedAt = &at
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event log: %w", err)
	}
	return entries, nil
}

// MarkPublished records the first successful delivery. Later calls keep the original timestamp.
func (s *Store) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	var found bool
	err := s.conn(ctx).QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE event_log SET published_at = COALESCE(published_at, $2)
			WHERE event_id = $1
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM updated)
	`, eventID, at).Scan(&found)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	if !found {
		return fmt.Errorf("mark published %s: %w", eventID, sentinel.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
