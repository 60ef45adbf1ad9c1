package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"certo/internal/platform/metrics"
	"certo/internal/tenant/models"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
	"certo/pkg/secrets"
)

type TenantStore interface {
	CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Count(ctx context.Context) (int, error)
}

type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	Update(ctx context.Context, key *models.APIKey) error
	FindByTenantAndID(ctx context.Context, tenantID id.TenantID, keyUUID uuid.UUID) (*models.APIKey, error)
	FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error)
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// Service orchestrates certification body tenants and their API keys.
type Service struct {
	tenants TenantStore
	keys    KeyStore
	logger  *slog.Logger
	trail   auditlog.Publisher
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTrailPublisher(publisher auditlog.Publisher) Option {
	return func(s *Service) { s.trail = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(tenants TenantStore, keys KeyStore, opts ...Option) *Service {
	s := &Service{
		tenants: tenants,
		keys:    keys,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)

	tenant, err := models.NewTenant(id.TenantID(uuid.New()), name, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.tenants.CreateIfNameAvailable(ctx, tenant); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	if s.metrics != nil {
		s.metrics.TenantsCreated.Inc()
	}
	s.emit(ctx, auditlog.EventTenantCreated, tenant.ID.String(), "")
	return tenant, nil
}

// GetTenant fetches tenant metadata with its key count.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	keyCount, err := s.keys.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count api keys")
	}
	return &models.TenantDetails{Tenant: tenant, KeyCount: keyCount}, nil
}

// GetTenantByName retrieves a tenant by name (case-insensitive).
func (s *Service) GetTenantByName(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name is required")
	}
	tenant, err := s.tenants.FindByName(ctx, name)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return tenant, nil
}

// DeactivateTenant transitions a tenant to inactive status. API key
// resolution for the tenant fails for as long as it stays inactive.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.transition(ctx, tenantID, func(t *models.Tenant) error {
		if err := t.CanDeactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, "tenant is already inactive")
		}
		t.ApplyDeactivation(requestcontext.Now(ctx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, auditlog.EventTenantDeactivated, tenant.ID.String(), "")
	return tenant, nil
}

// ReactivateTenant transitions a tenant back to active status.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.transition(ctx, tenantID, func(t *models.Tenant) error {
		if err := t.CanReactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, "tenant is already active")
		}
		t.ApplyReactivation(requestcontext.Now(ctx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, auditlog.EventTenantReactivated, tenant.ID.String(), "")
	return tenant, nil
}

// IssueKey creates an API key under a tenant. Returns the created key and
// the cleartext secret, which is only available at creation time.
func (s *Service) IssueKey(ctx context.Context, tenantID id.TenantID, name string) (*models.APIKey, string, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, "", wrapTenantErr(err)
	}
	if !tenant.IsActive() {
		return nil, "", dErrors.New(dErrors.CodeConflict, "tenant is inactive")
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key secret")
	}
	secretHash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash api key secret")
	}

	key, err := models.NewAPIKey(uuid.New(), tenantID, strings.TrimSpace(name), uuid.NewString(), secretHash, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, "", dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, "", err
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create api key")
	}
	return key, secret, nil
}

// RevokeKey permanently disables an API key.
func (s *Service) RevokeKey(ctx context.Context, tenantID id.TenantID, keyUUID uuid.UUID) (*models.APIKey, error) {
	key, err := s.keys.FindByTenantAndID(ctx, tenantID, keyUUID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "api key not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load api key")
	}
	if err := key.Revoke(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.keys.Update(ctx, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke api key")
	}
	return key, nil
}

// ListKeys returns all API keys registered under a tenant.
func (s *Service) ListKeys(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, wrapTenantErr(err)
	}
	keys, err := s.keys.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list api keys")
	}
	return keys, nil
}

// ResolveKey maps key_id plus secret to a key and its tenant as a single
// choke point. A key under an inactive tenant never resolves, regardless of
// the key's own status.
func (s *Service) ResolveKey(ctx context.Context, keyID, secret string) (*models.APIKey, *models.Tenant, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "key_id is required")
	}

	key, err := s.keys.FindByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "unknown api key")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve api key")
	}
	if !key.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "api key is revoked")
	}
	if err := secrets.Verify(secret, key.SecretHash); err != nil {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid api key secret")
	}

	tenant, err := s.tenants.FindByID(ctx, key.TenantID)
	if err != nil {
		return nil, nil, wrapTenantErr(err)
	}
	if !tenant.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	return key, tenant, nil
}

func (s *Service) transition(ctx context.Context, tenantID id.TenantID, apply func(*models.Tenant) error) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	if err := apply(tenant); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err)
	}
	return tenant, nil
}

func (s *Service) emit(ctx context.Context, action auditlog.TrailEvent, subject, reason string) {
	if s.trail == nil {
		return
	}
	event := auditlog.Event{
		Timestamp:  requestcontext.Now(ctx),
		TenantID:   requestcontext.TenantID(ctx),
		OperatorID: requestcontext.OperatorID(ctx),
		Subject:    subject,
		Action:     string(action),
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		Client:     auditlog.ClientLabel(requestcontext.UserAgent(ctx)),
	}
	if err := s.trail.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "trail emit failed", "action", action, "error", err)
	}
}

func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tenant store failure")
}
