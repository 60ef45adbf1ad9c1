package memory

import (
	"context"
	"sync"

	id "certo/pkg/domain"
	"certo/pkg/platform/auditlog"
)

// InMemoryStore keeps trail events per tenant. Used in development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.TenantID][]auditlog.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.TenantID][]auditlog.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event auditlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.TenantID] = append(s.events[event.TenantID], event)
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]auditlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auditlog.Event{}, s.events[tenantID]...), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]auditlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []auditlog.Event
	for _, tenantEvents := range s.events {
		all = append(all, tenantEvents...)
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.TenantID][]auditlog.Event)
}
