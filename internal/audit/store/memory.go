package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"certo/internal/audit/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemory keeps audits in process. Used in development and tests; the
// Postgres store is the production implementation.
type InMemory struct {
	mu     sync.RWMutex
	audits map[id.AuditID]*models.Audit
	// numbers enforces audit-number uniqueness per tenant, case-insensitive.
	numbers map[id.TenantID]map[string]id.AuditID
}

func NewInMemory() *InMemory {
	return &InMemory{
		audits:  make(map[id.AuditID]*models.Audit),
		numbers: make(map[id.TenantID]map[string]id.AuditID),
	}
}

// Create inserts a new audit, rejecting duplicate audit numbers within the tenant.
func (s *InMemory) Create(_ context.Context, audit *models.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(audit.AuditNumber)
	byNumber, ok := s.numbers[audit.TenantID]
	if !ok {
		byNumber = make(map[string]id.AuditID)
		s.numbers[audit.TenantID] = byNumber
	}
	if _, exists := byNumber[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.audits[audit.ID]; exists {
		return sentinel.ErrConflict
	}

	byNumber[key] = audit.ID
	s.audits[audit.ID] = clone(audit)
	return nil
}

// FindByID returns the audit owned by tenantID, or ErrNotFound. Tenant scoping
// at the store keeps cross-tenant reads structurally impossible.
func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audit, ok := s.audits[auditID]
	if !ok || audit.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return clone(audit), nil
}

// Update persists the full aggregate.
func (s *InMemory) Update(_ context.Context, audit *models.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.audits[audit.ID]
	if !ok || existing.TenantID != audit.TenantID {
		return sentinel.ErrNotFound
	}
	s.audits[audit.ID] = clone(audit)
	return nil
}

// ListByTenant returns the tenant's audits ordered by audit number.
func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Audit
	for _, audit := range s.audits {
		if audit.TenantID == tenantID {
			out = append(out, clone(audit))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuditNumber < out[j].AuditNumber })
	return out, nil
}

func clone(a *models.Audit) *models.Audit {
	copied := *a
	copied.Responses = append([]models.ChecklistResponse(nil), a.Responses...)
	return &copied
}
