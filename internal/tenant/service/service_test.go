package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	apikeystore "certo/internal/tenant/store/apikey"
	tenantstore "certo/internal/tenant/store/tenant"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	trailmemory "certo/pkg/platform/auditlog/store/memory"
	"certo/pkg/requestcontext"
)

type TenantServiceSuite struct {
	suite.Suite
	svc   *Service
	trail auditlog.Store
	ctx   context.Context
	now   time.Time
}

func (s *TenantServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.trail = trailmemory.NewInMemoryStore()
	s.now = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.svc = New(
		tenantstore.NewInMemory(),
		apikeystore.NewInMemory(),
		WithLogger(logger),
		WithTrailPublisher(auditlog.NewStorePublisher(s.trail, logger)),
	)
}

func TestTenantServiceSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceSuite))
}

func (s *TenantServiceSuite) TestCreateTenant() {
	tenant, err := s.svc.CreateTenant(s.ctx, "  Nordic Certification AB  ")
	s.Require().NoError(err)
	s.Equal("Nordic Certification AB", tenant.Name)
	s.True(tenant.IsActive())
	s.Equal(s.now, tenant.CreatedAt)

	found, err := s.svc.GetTenantByName(s.ctx, "nordic certification ab")
	s.Require().NoError(err)
	s.Equal(tenant.ID, found.ID)
}

func (s *TenantServiceSuite) TestCreateTenantRejectsDuplicateName() {
	_, err := s.svc.CreateTenant(s.ctx, "Bureau Veritas")
	s.Require().NoError(err)

	_, err = s.svc.CreateTenant(s.ctx, "BUREAU VERITAS")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TenantServiceSuite) TestCreateTenantValidatesName() {
	_, err := s.svc.CreateTenant(s.ctx, "   ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *TenantServiceSuite) TestDeactivateAndReactivate() {
	tenant, err := s.svc.CreateTenant(s.ctx, "SGS Group")
	s.Require().NoError(err)

	deactivated, err := s.svc.DeactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.False(deactivated.IsActive())

	_, err = s.svc.DeactivateTenant(s.ctx, tenant.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	reactivated, err := s.svc.ReactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.True(reactivated.IsActive())
}

func (s *TenantServiceSuite) TestIssueKeyReturnsSecretOnce() {
	tenant, err := s.svc.CreateTenant(s.ctx, "TUV Rheinland")
	s.Require().NoError(err)

	key, secret, err := s.svc.IssueKey(s.ctx, tenant.ID, "automation")
	s.Require().NoError(err)
	s.NotEmpty(secret)
	s.NotEmpty(key.KeyID)
	s.NotEqual(secret, key.SecretHash)

	details, err := s.svc.GetTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal(1, details.KeyCount)
}

func (s *TenantServiceSuite) TestIssueKeyRejectsInactiveTenant() {
	tenant, err := s.svc.CreateTenant(s.ctx, "DNV")
	s.Require().NoError(err)
	_, err = s.svc.DeactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)

	_, _, err = s.svc.IssueKey(s.ctx, tenant.ID, "automation")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TenantServiceSuite) TestResolveKey() {
	tenant, err := s.svc.CreateTenant(s.ctx, "Intertek")
	s.Require().NoError(err)
	key, secret, err := s.svc.IssueKey(s.ctx, tenant.ID, "portal")
	s.Require().NoError(err)

	s.Run("valid credentials resolve", func() {
		resolvedKey, resolvedTenant, err := s.svc.ResolveKey(s.ctx, key.KeyID, secret)
		s.Require().NoError(err)
		s.Equal(key.ID, resolvedKey.ID)
		s.Equal(tenant.ID, resolvedTenant.ID)
	})

	s.Run("wrong secret is unauthorized", func() {
		_, _, err := s.svc.ResolveKey(s.ctx, key.KeyID, "wrong")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown key id is unauthorized", func() {
		_, _, err := s.svc.ResolveKey(s.ctx, uuid.NewString(), secret)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *TenantServiceSuite) TestResolveKeyFailsForInactiveTenant() {
	tenant, err := s.svc.CreateTenant(s.ctx, "Lloyds Register")
	s.Require().NoError(err)
	key, secret, err := s.svc.IssueKey(s.ctx, tenant.ID, "portal")
	s.Require().NoError(err)

	_, err = s.svc.DeactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)

	// Key is still active but the tenant boundary wins.
	_, _, err = s.svc.ResolveKey(s.ctx, key.KeyID, secret)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.ReactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)
	_, _, err = s.svc.ResolveKey(s.ctx, key.KeyID, secret)
	s.Require().NoError(err)
}

func (s *TenantServiceSuite) TestRevokeKey() {
	tenant, err := s.svc.CreateTenant(s.ctx, "BSI Group")
	s.Require().NoError(err)
	key, secret, err := s.svc.IssueKey(s.ctx, tenant.ID, "legacy")
	s.Require().NoError(err)

	revoked, err := s.svc.RevokeKey(s.ctx, tenant.ID, key.ID)
	s.Require().NoError(err)
	s.False(revoked.IsActive())

	_, _, err = s.svc.ResolveKey(s.ctx, key.KeyID, secret)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.RevokeKey(s.ctx, tenant.ID, key.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TenantServiceSuite) TestLifecycleEmitsTrailEvents() {
	tenant, err := s.svc.CreateTenant(s.ctx, "Trail Test Body")
	s.Require().NoError(err)
	_, err = s.svc.DeactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)
	_, err = s.svc.ReactivateTenant(s.ctx, tenant.ID)
	s.Require().NoError(err)

	events, err := s.trail.ListRecent(s.ctx, 10)
	s.Require().NoError(err)

	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(auditlog.EventTenantCreated))
	s.Contains(actions, string(auditlog.EventTenantDeactivated))
	s.Contains(actions, string(auditlog.EventTenantReactivated))
}
