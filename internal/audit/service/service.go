package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"certo/internal/audit/models"
	"certo/internal/audit/progress"
	"certo/internal/platform/metrics"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
)

// AuditStore is the persistence the service depends on.
type AuditStore interface {
	Create(ctx context.Context, audit *models.Audit) error
	FindByID(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Audit, error)
	Update(ctx context.Context, audit *models.Audit) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Audit, error)
}

// Service orchestrates audit scheduling and checklist recording.
type Service struct {
	audits  AuditStore
	logger  *slog.Logger
	trail   auditlog.Publisher
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTrailPublisher(publisher auditlog.Publisher) Option {
	return func(s *Service) { s.trail = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(audits AuditStore, opts ...Option) *Service {
	s := &Service{audits: audits, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule creates an audit for the tenant in scope.
func (s *Service) Schedule(ctx context.Context, tenantID id.TenantID, req *models.ScheduleAuditRequest) (*models.Audit, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	audit, err := models.NewAudit(id.AuditID(uuid.New()), tenantID, req.AuditNumber, req.ClientName, req.ISOStandard, req.Type, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	audit.ContractID = req.ContractID
	audit.Scope = req.Scope
	audit.LeadAuditor = req.LeadAuditor
	audit.PlannedStart = req.PlannedStart
	audit.PlannedEnd = req.PlannedEnd

	if err := s.audits.Create(ctx, audit); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "audit number must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create audit")
	}

	s.emit(ctx, auditlog.EventAuditScheduled, audit.ID.String(), "")
	if s.metrics != nil {
		s.metrics.AuditsScheduled.Inc()
	}
	return audit, nil
}

// Get returns an audit with its computed progress.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Audit, progress.Report, error) {
	audit, err := s.audits.FindByID(ctx, tenantID, auditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, progress.Report{}, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		return nil, progress.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}
	return audit, progress.Evaluate(audit.Responses), nil
}

// List returns the tenant's audits.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Audit, error) {
	audits, err := s.audits.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audits")
	}
	return audits, nil
}

// Patch applies the certificate-field and status subset. Issuance and
// revocation write through here; operators can also correct fields directly.
func (s *Service) Patch(ctx context.Context, tenantID id.TenantID, auditID id.AuditID, req *models.PatchAuditRequest) (*models.Audit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	audit, err := s.audits.FindByID(ctx, tenantID, auditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}

	if req.CertificateNumber != nil {
		audit.CertificateNumber = *req.CertificateNumber
	}
	if req.CertificateIssueDate != nil {
		audit.CertificateIssueDate = *req.CertificateIssueDate
	}
	if req.CertificateExpiryDate != nil {
		audit.CertificateExpiryDate = *req.CertificateExpiryDate
	}
	if req.CertificateOriginalRegistration != nil {
		audit.CertificateOriginalRegistration = *req.CertificateOriginalRegistration
	}
	if req.Status != nil {
		audit.Status = *req.Status
	}
	audit.UpdatedAt = requestcontext.Now(ctx)

	if err := s.audits.Update(ctx, audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update audit")
	}
	return audit, nil
}

// ReplaceResponses swaps the audit's checklist wholesale.
func (s *Service) ReplaceResponses(ctx context.Context, tenantID id.TenantID, auditID id.AuditID, req *models.ReplaceResponsesRequest) (*models.Audit, progress.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, progress.Report{}, err
	}
	req.Normalize()

	audit, err := s.audits.FindByID(ctx, tenantID, auditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, progress.Report{}, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		return nil, progress.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}

	if err := audit.ReplaceResponses(req.Responses, requestcontext.Now(ctx)); err != nil {
		return nil, progress.Report{}, err
	}
	if err := s.audits.Update(ctx, audit); err != nil {
		return nil, progress.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save checklist")
	}

	s.emit(ctx, auditlog.EventChecklistUpdated, audit.ID.String(), "")
	return audit, progress.Evaluate(audit.Responses), nil
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
