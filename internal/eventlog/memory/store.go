// Package memory is an in-process event log.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clm/internal/customer/models"
	"clm/internal/eventlog"
	"clm/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	entries  []eventlog.Entry
	byID     map[string]int
	versions map[string]int64
	now      func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		byID:     make(map[string]int),
		versions: make(map[string]int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(_ context.Context, event *models.Event) (eventlog.Entry, error) {
	if event == nil || event.EventID == "" {
		return eventlog.Entry{}, fmt.Errorf("append: event id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.EventID]; exists {
		return eventlog.Entry{}, fmt.Errorf("append event %s: %w", event.EventID, sentinel.ErrConflict)
	}
	s.versions[event.CustomerID]++
	entry := eventlog.Entry{
		Position:      int64(len(s.entries)) + 1,
		StreamVersion: s.versions[event.CustomerID],
		Event:         *event.Clone(),
		RecordedAt:    s.now(),
	}
	s.byID[event.EventID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return copyEntry(entry), nil
}

func (s *Store) Scan(_ context.Context, opts eventlog.ScanOptions) ([]eventlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.EffectiveLimit()
	out := make([]eventlog.Entry, 0, min(limit, len(s.entries)))
	start := max(opts.From, 0)
	for i := int(start); i < len(s.entries) && len(out) < limit; i++ {
		if opts.Matches(s.entries[i]) {
			out = append(out, copyEntry(s.entries[i]))
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[eventID]
	if !ok {
		return fmt.Errorf("mark published %s: %w", eventID, sentinel.ErrNotFound)
	}
	if s.entries[idx].PublishedAt == nil {
		s.entries[idx].PublishedAt = &at
	}
	return nil
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyEntry(e eventlog.Entry) eventlog.Entry {
	e.Event = *e.Event.Clone()
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		e.PublishedAt = &at
	}
	return e
}
