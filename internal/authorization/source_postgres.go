package authorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads the trading_authorizations table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) AuthorizedToTrade(ctx context.Context, customerID string) (bool, error) {
	var authorized bool
	err := s.pool.QueryRow(ctx,
		`SELECT authorized FROM trading_authorizations WHERE customer_id = $1`,
		customerID,
	).Scan(&authorized)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query trading authorization: %w", err)
	}
	return authorized, nil
}

// Set upserts the authorization flag for a customer.
func (s *PostgresSource) Set(ctx context.Context, customerID string, authorized bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trading_authorizations (customer_id, authorized, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (customer_id) DO UPDATE SET authorized = EXCLUDED.authorized, updated_at = NOW()
	`, customerID, authorized)
	if err != nil {
		return fmt.Errorf("upsert trading authorization: %w", err)
	}
	return nil
}
