package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"certo/internal/certification/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemory keeps certifications in process. Used in development and tests;
// the Postgres store is the production implementation.
type InMemory struct {
	mu    sync.RWMutex
	certs map[id.CertificationID]*models.Certification
	// byAudit enforces the 1:1 audit relation the same way the Postgres
	// unique index on audit_id does.
	byAudit map[id.AuditID]id.CertificationID
	// numbers enforces certificate-number uniqueness per tenant, case-insensitive.
	numbers map[id.TenantID]map[string]id.CertificationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		certs:   make(map[id.CertificationID]*models.Certification),
		byAudit: make(map[id.AuditID]id.CertificationID),
		numbers: make(map[id.TenantID]map[string]id.CertificationID),
	}
}

// Create inserts a new certification, rejecting a second record for the same
// audit or a duplicate certificate number within the tenant.
func (s *InMemory) Create(_ context.Context, cert *models.Certification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(cert)
}

func (s *InMemory) create(cert *models.Certification) error {
	if _, exists := s.byAudit[cert.AuditID]; exists {
		return sentinel.ErrConflict
	}
	key := strings.ToLower(cert.CertificateNumber)
	byNumber, ok := s.numbers[cert.TenantID]
	if !ok {
		byNumber = make(map[string]id.CertificationID)
		s.numbers[cert.TenantID] = byNumber
	}
	if _, exists := byNumber[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.certs[cert.ID]; exists {
		return sentinel.ErrConflict
	}

	s.byAudit[cert.AuditID] = cert.ID
	byNumber[key] = cert.ID
	s.certs[cert.ID] = cloneCert(cert)
	return nil
}

// CreateIfAbsent atomically inserts cert unless the audit already has one,
// in which case the existing record wins and is returned. Mirrors the
// Postgres ON CONFLICT (audit_id) DO NOTHING + refetch path.
func (s *InMemory) CreateIfAbsent(_ context.Context, cert *models.Certification) (*models.Certification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byAudit[cert.AuditID]; ok {
		existing := s.certs[existingID]
		if existing.TenantID != cert.TenantID {
			return nil, false, sentinel.ErrConflict
		}
		return cloneCert(existing), false, nil
	}
	if err := s.create(cert); err != nil {
		return nil, false, err
	}
	return cloneCert(cert), true, nil
}

// FindByID returns the certification owned by tenantID, or ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, certID id.CertificationID) (*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[certID]
	if !ok || cert.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return cloneCert(cert), nil
}

// FindByAuditID resolves the 1:1 relation via the index, not a scan.
func (s *InMemory) FindByAuditID(_ context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certID, ok := s.byAudit[auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cert := s.certs[certID]
	if cert.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return cloneCert(cert), nil
}

// Update persists the full record.
func (s *InMemory) Update(_ context.Context, cert *models.Certification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.certs[cert.ID]
	if !ok || existing.TenantID != cert.TenantID {
		return sentinel.ErrNotFound
	}
	if !strings.EqualFold(existing.CertificateNumber, cert.CertificateNumber) {
		byNumber := s.numbers[cert.TenantID]
		newKey := strings.ToLower(cert.CertificateNumber)
		if _, taken := byNumber[newKey]; taken {
			return sentinel.ErrConflict
		}
		delete(byNumber, strings.ToLower(existing.CertificateNumber))
		byNumber[newKey] = cert.ID
	}
	s.certs[cert.ID] = cloneCert(cert)
	return nil
}

// ListByTenant returns the tenant's certifications ordered by certificate number.
func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Certification
	for _, cert := range s.certs {
		if cert.TenantID == tenantID {
			out = append(out, cloneCert(cert))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CertificateNumber < out[j].CertificateNumber })
	return out, nil
}

// ListIssued returns every active certification across tenants. The
// surveillance sweeper walks this to refresh overdue gauges.
func (s *InMemory) ListIssued(_ context.Context) ([]*models.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Certification
	for _, cert := range s.certs {
		if cert.Status == models.CertStatusActive {
			out = append(out, cloneCert(cert))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CertificateNumber < out[j].CertificateNumber })
	return out, nil
}

func cloneCert(c *models.Certification) *models.Certification {
	copied := *c
	return &copied
}
