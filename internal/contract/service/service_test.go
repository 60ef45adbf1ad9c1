package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certo/internal/contract/models"
	"certo/internal/contract/store"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

type ContractServiceSuite struct {
	suite.Suite
	ctx      context.Context
	tenantID id.TenantID
	svc      *Service
}

func TestContractServiceSuite(t *testing.T) {
	suite.Run(t, new(ContractServiceSuite))
}

func (s *ContractServiceSuite) SetupTest() {
	s.tenantID = id.TenantID(uuid.New())
	s.ctx = requestcontext.WithTenantID(context.Background(), s.tenantID)
	s.ctx = requestcontext.WithTime(s.ctx, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	s.svc = New(store.NewInMemory())
}

func (s *ContractServiceSuite) create() *models.Contract {
	contract, err := s.svc.Create(s.ctx, s.tenantID, &models.CreateContractRequest{
		ContractNumber: "CTR-2026-001",
		ClientName:     "Meridian Foods Ltd",
		ISOStandard:    "ISO 22000:2018",
	})
	s.Require().NoError(err)
	return contract
}

func (s *ContractServiceSuite) TestCreateAndGet() {
	created := s.create()
	s.Equal(models.ContractStatusDraft, created.Status)

	got, err := s.svc.Get(s.ctx, s.tenantID, created.ID)
	s.Require().NoError(err)
	s.Equal("CTR-2026-001", got.ContractNumber)
}

func (s *ContractServiceSuite) TestCreateDuplicateNumber() {
	s.create()
	_, err := s.svc.Create(s.ctx, s.tenantID, &models.CreateContractRequest{
		ContractNumber: "ctr-2026-001",
		ClientName:     "Meridian Foods Ltd",
		ISOStandard:    "ISO 22000:2018",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ContractServiceSuite) TestSignLifecycle() {
	created := s.create()

	signed, err := s.svc.Sign(s.ctx, s.tenantID, created.ID)
	s.Require().NoError(err)
	s.Equal(models.ContractStatusSigned, signed.Status)

	_, err = s.svc.Sign(s.ctx, s.tenantID, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	terminated, err := s.svc.Terminate(s.ctx, s.tenantID, created.ID)
	s.Require().NoError(err)
	s.Equal(models.ContractStatusTerminated, terminated.Status)

	_, err = s.svc.Sign(s.ctx, s.tenantID, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ContractServiceSuite) TestTenantScoping() {
	created := s.create()
	_, err := s.svc.Get(s.ctx, id.TenantID(uuid.New()), created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
