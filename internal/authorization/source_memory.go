package authorization

import (
	"context"
	"sync"
)

// MemorySource holds authorization state in process. Changes are visible to
// the next call immediately.
type MemorySource struct {
	mu         sync.RWMutex
	authorized map[string]bool
}

func NewMemorySource(seed map[string]bool) *MemorySource {
	m := &MemorySource{authorized: make(map[string]bool, len(seed))}
	for id, ok := range seed {
		m.authorized[id] = ok
	}
	return m
}

func (m *MemorySource) Set(customerID string, authorized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized[customerID] = authorized
}

func (m *MemorySource) AuthorizedToTrade(_ context.Context, customerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorized[customerID], nil
}
