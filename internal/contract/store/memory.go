package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"certo/internal/contract/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemory keeps contracts in process.
type InMemory struct {
	mu        sync.RWMutex
	contracts map[id.ContractID]*models.Contract
	numbers   map[id.TenantID]map[string]id.ContractID
}

func NewInMemory() *InMemory {
	return &InMemory{
		contracts: make(map[id.ContractID]*models.Contract),
		numbers:   make(map[id.TenantID]map[string]id.ContractID),
	}
}

func (s *InMemory) Create(_ context.Context, contract *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(contract.ContractNumber)
	byNumber, ok := s.numbers[contract.TenantID]
	if !ok {
		byNumber = make(map[string]id.ContractID)
		s.numbers[contract.TenantID] = byNumber
	}
	if _, exists := byNumber[key]; exists {
		return sentinel.ErrConflict
	}
	byNumber[key] = contract.ID
	copied := *contract
	s.contracts[contract.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contract, ok := s.contracts[contractID]
	if !ok || contract.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	copied := *contract
	return &copied, nil
}

func (s *InMemory) Update(_ context.Context, contract *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contracts[contract.ID]
	if !ok || existing.TenantID != contract.TenantID {
		return sentinel.ErrNotFound
	}
	copied := *contract
	s.contracts[contract.ID] = &copied
	return nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contract
	for _, contract := range s.contracts {
		if contract.TenantID == tenantID {
			copied := *contract
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractNumber < out[j].ContractNumber })
	return out, nil
}
