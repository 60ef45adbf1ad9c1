package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	auditmodels "certo/internal/audit/models"
	"certo/internal/certification/models"
	"certo/internal/certification/surveillance"
	"certo/internal/platform/metrics"
	"certo/internal/platform/redis"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	"certo/pkg/platform/sentinel"
)

// CertificationStore is the persistence the service depends on.
type CertificationStore interface {
	Create(ctx context.Context, cert *models.Certification) error
	CreateIfAbsent(ctx context.Context, cert *models.Certification) (*models.Certification, bool, error)
	FindByID(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (*models.Certification, error)
	FindByAuditID(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Certification, error)
	Update(ctx context.Context, cert *models.Certification) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Certification, error)
}

// AuditStore is the slice of audit persistence issuance needs.
type AuditStore interface {
	FindByID(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*auditmodels.Audit, error)
	Update(ctx context.Context, audit *auditmodels.Audit) error
}

// Renderer is the external template rendering gateway.
type Renderer interface {
	UpdateTemplate(ctx context.Context, certID id.CertificationID, req *models.UpdateTemplateRequest) error
	Generate(ctx context.Context, certID id.CertificationID, templateType string) (documentURL string, err error)
}

// TxRunner executes fn atomically; stores inside fn observe the transaction
// through the context. The default runner is passthrough, which is what the
// in-memory stores need.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service owns certification reconciliation and lifecycle.
type Service struct {
	certs    CertificationStore
	audits   AuditStore
	renderer Renderer
	tx       TxRunner
	logger   *slog.Logger
	trail    auditlog.Publisher
	metrics  *metrics.Metrics
	lock     *redis.Lock
	tracer   trace.Tracer
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

func WithRenderer(r Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

// WithReconcileLock guards reconcile stampedes across replicas. Nil is fine;
// the audit_id unique constraint remains the correctness guard either way.
func WithReconcileLock(lock *redis.Lock) Option {
	return func(s *Service) { s.lock = lock }
}

// New constructs a Service.
func New(certs CertificationStore, audits AuditStore, opts ...Option) *Service {
	s := &Service{
		certs:  certs,
		audits: audits,
		tx:     passthroughTx{},
		logger: slog.Default(),
		tracer: otel.Tracer("certo/certification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const reconcileLockTTL = 10 * time.Second

// Reconcile guarantees a certification record exists for the audit, creating
// one with derived defaults when absent. Sequential calls are idempotent:
// the second call finds the first call's record and mutates nothing. A
// revoked record is the one exception: it is superseded back to pending so
// the audit can be certified anew.
func (s *Service) Reconcile(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Certification, error) {
	ctx, span := s.tracer.Start(ctx, "certification.Reconcile",
		trace.WithAttributes(attribute.String("audit.id", auditID.String())))
	defer span.End()

	audit, err := s.audits.FindByID(ctx, tenantID, auditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.reconcileOutcome("failed")
			return nil, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		s.reconcileOutcome("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}

	existing, err := s.certs.FindByAuditID(ctx, tenantID, auditID)
	if err == nil {
		if existing.Status == models.CertStatusRevoked {
			return s.supersedeRevoked(ctx, existing)
		}
		s.reconcileOutcome("found")
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.reconcileOutcome("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certification")
	}

	if s.lock != nil {
		release, acquired, lockErr := s.lock.Acquire(ctx, "reconcile:"+auditID.String(), reconcileLockTTL)
		if lockErr != nil {
			s.logger.WarnContext(ctx, "reconcile lock unavailable, proceeding without it", "error", lockErr)
		} else if acquired {
			defer release()
		}
		// Not acquired: fall through anyway. The insert is conflict-safe and
		// the loser refetches the winner's row.
	}

	cert, err := models.NewCertification(
		tenantID, audit.ID, audit.AuditNumber,
		"CERT-"+audit.AuditNumber,
		audit.ClientName, audit.ISOStandard, audit.Scope, audit.LeadAuditor,
		now(ctx),
	)
	if err != nil {
		s.reconcileOutcome("failed")
		return nil, err
	}

	// Missing inputs are logged, then creation proceeds anyway so the store's
	// own validation failure reaches the caller with its exact message.
	if missing := cert.MissingCriticalFields(); len(missing) > 0 {
		s.logger.WarnContext(ctx, "reconciling certification with missing critical fields",
			"audit_id", auditID.String(),
			"missing", fmt.Sprintf("%v", missing),
		)
	}

	created, wasCreated, err := s.certs.CreateIfAbsent(ctx, cert)
	if err != nil {
		s.reconcileOutcome("failed")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "certificate number already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certification")
	}
	if !wasCreated {
		s.reconcileOutcome("found")
		return created, nil
	}

	s.reconcileOutcome("created")
	s.emit(ctx, auditlog.EventCertificationReconciled, created.ID.String(), "")
	return created, nil
}

// supersedeRevoked resets a revoked record to pending with freshly derived
// dates. The revoked record holds the unique audit slot, so re-certification
// reuses it instead of inserting a second row.
func (s *Service) supersedeRevoked(ctx context.Context, cert *models.Certification) (*models.Certification, error) {
	if err := cert.Supersede(now(ctx)); err != nil {
		s.reconcileOutcome("failed")
		return nil, err
	}
	if err := s.certs.Update(ctx, cert); err != nil {
		s.reconcileOutcome("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
	}
	s.reconcileOutcome("created")
	s.emit(ctx, auditlog.EventCertificationReconciled, cert.ID.String(), "superseded revoked record")
	return cert, nil
}

// Get returns the certification with its read-time surveillance schedule.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (*models.Certification, error) {
	cert, err := s.certs.FindByID(ctx, tenantID, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certification")
	}
	return cert, nil
}

// List returns the tenant's certifications.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Certification, error) {
	certs, err := s.certs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certifications")
	}
	return certs, nil
}

// Surveillance computes the schedule for one certification at read time.
func (s *Service) Surveillance(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (surveillance.Schedule, error) {
	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return surveillance.Schedule{}, err
	}
	return surveillance.Compute(cert.IssueDate, cert.ExpiryDate, now(ctx)), nil
}

// Stats aggregates certification and surveillance posture for the tenant.
func (s *Service) Stats(ctx context.Context, tenantID id.TenantID) (surveillance.Stats, error) {
	certs, err := s.certs.ListByTenant(ctx, tenantID)
	if err != nil {
		return surveillance.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certifications")
	}
	return surveillance.Aggregate(certs, now(ctx)), nil
}

func (s *Service) reconcileOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementReconciliation(outcome)
	}
}
