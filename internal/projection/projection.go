// Package projection maintains the current customer view derived from the event log.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
)

// Store holds the current view, one record per customer.
//
// Put is serialized per customer id and only replaces a stored record with a
// strictly higher Version, so replaying the log is idempotent. It reports
// whether the write was applied. Get returns sentinel.ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, customerID string) (*models.CustomerRecord, error)
	Put(ctx context.Context, rec *models.CustomerRecord) (bool, error)
}

type Projector struct {
	store  Store
	logger *slog.Logger
}

func NewProjector(store Store, logger *slog.Logger) (*Projector, error) {
	if store == nil {
		return nil, errors.New("projection store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{store: store, logger: logger}, nil
}

// Apply folds one log entry into the view. Event types the view does not track are skipped.
func (p *Projector) Apply(ctx context.Context, entry eventlog.Entry) (*models.CustomerRecord, error) {
	switch entry.Event.Type {
	case models.EventTypeCustomerRegistered:
	default:
		return nil, nil
	}

	rec := models.NewCustomerRecord(entry.Event.Data)
	rec.CustomerID = entry.Event.CustomerID
	rec.Version = entry.StreamVersion
	rec.UpdatedAt = entry.Event.OccurredAt

	applied, err := p.store.Put(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("project event %s: %w", entry.Event.EventID, err)
	}
	if !applied {
		p.logger.DebugContext(ctx, "projection already up to date",
			"customer_id", rec.CustomerID,
			"event_id", entry.Event.EventID,
			"version", rec.Version,
		)
	}
	return rec, nil
}

// Rebuild replays the whole log into the store and returns the number of entries read.
func (p *Projector) Rebuild(ctx context.Context, log eventlog.Store) (int, error) {
	var (
		from  int64
		total int
	)
	for {
		page, err := log.Scan(ctx, eventlog.ScanOptions{From: from, Limit: eventlog.DefaultScanLimit})
		if err != nil {
			return total, fmt.Errorf("rebuild scan from %d: %w", from, err)
		}
		for _, entry := range page {
			if _, err := p.Apply(ctx, entry); err != nil {
				return total, err
			}
			from = entry.Position
			total++
		}
		if len(page) < eventlog.DefaultScanLimit {
			break
		}
	}
	p.logger.InfoContext(ctx, "projection rebuilt", "entries", total)
	return total, nil
}
