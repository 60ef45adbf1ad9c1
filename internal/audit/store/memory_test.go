package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certo/internal/audit/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

type AuditStoreSuite struct {
	suite.Suite
	store    *InMemory
	ctx      context.Context
	tenantID id.TenantID
}

func (s *AuditStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.tenantID = id.TenantID(uuid.New())
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) newAudit(number string) *models.Audit {
	audit, err := models.NewAudit(
		id.AuditID(uuid.New()), s.tenantID, number,
		"Acme Manufacturing", "ISO 9001:2015", models.AuditTypeInitial, time.Now(),
	)
	s.Require().NoError(err)
	return audit
}

func (s *AuditStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds audit by ID", func() {
		audit := s.newAudit("AUD-2026-001")
		s.Require().NoError(s.store.Create(s.ctx, audit))

		found, err := s.store.FindByID(s.ctx, s.tenantID, audit.ID)
		s.Require().NoError(err)
		s.Equal("AUD-2026-001", found.AuditNumber)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, s.tenantID, id.AuditID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("hides audits from other tenants", func() {
		audit := s.newAudit("AUD-2026-002")
		s.Require().NoError(s.store.Create(s.ctx, audit))

		_, err := s.store.FindByID(s.ctx, id.TenantID(uuid.New()), audit.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AuditStoreSuite) TestNumberUniqueness() {
	s.Run("rejects duplicate audit number in tenant", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newAudit("AUD-DUP")))
		err := s.store.Create(s.ctx, s.newAudit("aud-dup"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("same number allowed across tenants", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newAudit("AUD-SHARED")))

		other := s.newAudit("AUD-SHARED")
		other.TenantID = id.TenantID(uuid.New())
		s.Require().NoError(s.store.Create(s.ctx, other))
	})
}

func (s *AuditStoreSuite) TestUpdates() {
	s.Run("persists certificate fields and status", func() {
		audit := s.newAudit("AUD-UPD")
		s.Require().NoError(s.store.Create(s.ctx, audit))

		now := time.Now()
		audit.Certify("CERT-AUD-UPD", now, now.AddDate(3, 0, 0), now, now)
		s.Require().NoError(s.store.Update(s.ctx, audit))

		found, err := s.store.FindByID(s.ctx, s.tenantID, audit.ID)
		s.Require().NoError(err)
		s.Equal("CERT-AUD-UPD", found.CertificateNumber)
		s.Equal(models.AuditStatusCompleted, found.Status)
	})

	s.Run("returns ErrNotFound for non-existent audit", func() {
		err := s.store.Update(s.ctx, s.newAudit("AUD-GHOST"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("stored aggregate is isolated from caller mutation", func() {
		audit := s.newAudit("AUD-ISO")
		audit.Responses = []models.ChecklistResponse{{Clause: "4.1", ComplianceStatus: models.CompliancePending}}
		s.Require().NoError(s.store.Create(s.ctx, audit))

		audit.Responses[0].ComplianceStatus = models.ComplianceCompliant

		found, err := s.store.FindByID(s.ctx, s.tenantID, audit.ID)
		s.Require().NoError(err)
		s.Equal(models.CompliancePending, found.Responses[0].ComplianceStatus)
	})
}

func (s *AuditStoreSuite) TestListByTenant() {
	s.Require().NoError(s.store.Create(s.ctx, s.newAudit("AUD-B")))
	s.Require().NoError(s.store.Create(s.ctx, s.newAudit("AUD-A")))

	audits, err := s.store.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(audits, 2)
	s.Equal("AUD-A", audits[0].AuditNumber)
	s.Equal("AUD-B", audits[1].AuditNumber)
}
