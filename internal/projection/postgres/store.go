// Package postgres is the PostgreSQL projection store, backed by a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clm/internal/customer/models"
	"clm/pkg/platform/sentinel"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, customerID string) (*models.CustomerRecord, error) {
	var (
		raw       []byte
		version   int64
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT attributes, version, updated_at
		FROM customer_projection
		WHERE customer_id = $1
	`, customerID).Scan(&raw, &version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer projection: %w", err)
	}

	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode customer attributes: %w", err)
	}
	rec := models.NewCustomerRecord(attrs)
	rec.CustomerID = customerID
	rec.Version = version
	rec.UpdatedAt = updatedAt
	return rec, nil
}

// Put takes a transaction-scoped advisory lock on the customer id so concurrent
// writers for one customer queue up, then upserts only a newer version.
func (s *Store) Put(ctx context.Context, rec *models.CustomerRecord) (bool, error) {
	if rec == nil || rec.CustomerID == "" {
		return false, fmt.Errorf("put: customer id is required")
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return false, fmt.Errorf("encode customer attributes: %w", err)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var applied bool
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.CustomerID); err != nil {
			return fmt.Errorf("lock customer projection: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO customer_projection (customer_id, attributes, version, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (customer_id) DO UPDATE
			SET attributes = EXCLUDED.attributes,
				version = EXCLUDED.version,
				updated_at = EXCLUDED.updated_at
			WHERE customer_projection.version < EXCLUDED.version
		`, rec.CustomerID, attrs, rec.Version, updatedAt)
		if err != nil {
			return fmt.Errorf("upsert customer projection: %w", err)
		}
		applied = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
