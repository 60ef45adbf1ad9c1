package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"certo/internal/contract/models"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
)

// ContractStore is the persistence the service depends on.
type ContractStore interface {
	Create(ctx context.Context, contract *models.Contract) error
	FindByID(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error)
	Update(ctx context.Context, contract *models.Contract) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Contract, error)
}

// Service owns contract CRUD and signing.
type Service struct {
	contracts ContractStore
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(contracts ContractStore, opts ...Option) *Service {
	s := &Service{contracts: contracts, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, tenantID id.TenantID, req *models.CreateContractRequest) (*models.Contract, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contract, err := models.NewContract(tenantID, req.ContractNumber, req.ClientName, req.ISOStandard, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.contracts.Create(ctx, contract); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "contract number already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contract")
	}
	return contract, nil
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	contract, err := s.contracts.FindByID(ctx, tenantID, contractID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	return contract, nil
}

func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Contract, error) {
	contracts, err := s.contracts.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contracts")
	}
	return contracts, nil
}

func (s *Service) Sign(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	return s.transition(ctx, tenantID, contractID, (*models.Contract).Sign)
}

func (s *Service) Terminate(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	return s.transition(ctx, tenantID, contractID, (*models.Contract).Terminate)
}

func (s *Service) transition(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, apply func(*models.Contract, time.Time) error) (*models.Contract, error) {
	contract, err := s.Get(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	if err := apply(contract, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save contract")
	}
	return contract, nil
}
