package apikey

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"certo/internal/tenant/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemory keeps API keys in process memory.
type InMemory struct {
	mu      sync.RWMutex
	keys    map[uuid.UUID]*models.APIKey
	byKeyID map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		keys:    make(map[uuid.UUID]*models.APIKey),
		byKeyID: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.byKeyID[key.KeyID]; taken {
		return sentinel.ErrConflict
	}
	s.keys[key.ID] = cloneKey(key)
	s.byKeyID[key.KeyID] = key.ID
	return nil
}

func (s *InMemory) Update(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.keys[key.ID] = cloneKey(key)
	return nil
}

func (s *InMemory) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, keyUUID uuid.UUID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyUUID]
	if !ok || key.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return cloneKey(key), nil
}

func (s *InMemory) FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyUUID, ok := s.byKeyID[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneKey(s.keys[keyUUID]), nil
}

func (s *InMemory) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.APIKey
	for _, key := range s.keys {
		if key.TenantID == tenantID {
			out = append(out, cloneKey(key))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, key := range s.keys {
		if key.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func cloneKey(k *models.APIKey) *models.APIKey {
	clone := *k
	return &clone
}
