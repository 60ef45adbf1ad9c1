package tenant

import (
	"context"
	"strings"
	"sync"

	"certo/internal/tenant/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemory keeps tenants in process memory. Name uniqueness is
// case-insensitive, matching the functional index on the postgres store.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
	byName  map[string]id.TenantID
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[id.TenantID]*models.Tenant),
		byName:  make(map[string]id.TenantID),
	}
}

func (s *InMemory) CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(tenant.Name)
	if _, taken := s.byName[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.tenants[tenant.ID]; exists {
		return sentinel.ErrConflict
	}
	s.tenants[tenant.ID] = cloneTenant(tenant)
	s.byName[key] = tenant.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTenant(tenant), nil
}

func (s *InMemory) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTenant(s.tenants[tenantID]), nil
}

func (s *InMemory) Update(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tenants[tenant.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	newKey := strings.ToLower(tenant.Name)
	oldKey := strings.ToLower(current.Name)
	if newKey != oldKey {
		if owner, taken := s.byName[newKey]; taken && owner != tenant.ID {
			return sentinel.ErrAlreadyUsed
		}
		delete(s.byName, oldKey)
		s.byName[newKey] = tenant.ID
	}
	s.tenants[tenant.ID] = cloneTenant(tenant)
	return nil
}

func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}

func cloneTenant(t *models.Tenant) *models.Tenant {
	clone := *t
	return &clone
}
