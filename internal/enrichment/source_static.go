package enrichment

import (
	"context"
	"maps"
	"sync"
)

// StaticSource serves attributes from an in-process table, keyed by customer id.
type StaticSource struct {
	mu    sync.RWMutex
	attrs map[string]map[string]any
}

func NewStaticSource() *StaticSource {
	return &StaticSource{attrs: make(map[string]map[string]any)}
}

// Put replaces the attributes known for a customer.
func (s *StaticSource) Put(customerID string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[customerID] = maps.Clone(attrs)
}

func (s *StaticSource) Lookup(_ context.Context, customerID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.attrs[customerID]), nil
}
