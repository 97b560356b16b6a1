// Package memory is an in-process projection store.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"clm/internal/customer/models"
	"clm/pkg/platform/sentinel"
)

const numShards = 64

// keyedMutex serializes writers per customer id without a global lock.
type keyedMutex struct {
	shards [numShards]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%numShards]
	m.Lock()
	return m.Unlock
}

type Store struct {
	writers keyedMutex
	mu      sync.RWMutex
	records map[string]*models.CustomerRecord
}

func New() *Store {
	return &Store{records: make(map[string]*models.CustomerRecord)}
}

func (s *Store) Get(_ context.Context, customerID string) (*models.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) Put(_ context.Context, rec *models.CustomerRecord) (bool, error) {
	if rec == nil || rec.CustomerID == "" {
		return false, fmt.Errorf("put: customer id is required")
	}
	unlock := s.writers.lock(rec.CustomerID)
	defer unlock()

	s.mu.RLock()
	current, exists := s.records[rec.CustomerID]
	s.mu.RUnlock()
	if exists && current.Version >= rec.Version {
		return false, nil
	}

	s.mu.Lock()
	s.records[rec.CustomerID] = rec.Clone()
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
