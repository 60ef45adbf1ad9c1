package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certo/internal/audit/progress"
	"certo/internal/certification/models"
	"certo/internal/certification/surveillance"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
)

// Issue formally activates the certification. The audit checklist must be
// fully answered; a certificate number already on the audit means a prior
// issuance and fails with an already-issued error. On success the four
// certificate fields land on the audit (the source of truth for "issued"),
// the audit moves to completed, and the surveillance schedule is returned.
func (s *Service) Issue(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.IssueRequest) (*models.Certification, surveillance.Schedule, error) {
	ctx, span := s.tracer.Start(ctx, "certification.Issue",
		trace.WithAttributes(attribute.String("certification.id", certID.String())))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, surveillance.Schedule{}, err
	}

	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return nil, surveillance.Schedule{}, err
	}
	audit, err := s.audits.FindByID(ctx, tenantID, cert.AuditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, surveillance.Schedule{}, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		return nil, surveillance.Schedule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}

	if err := audit.CanCertify(); err != nil {
		return nil, surveillance.Schedule{}, err
	}
	report := progress.Evaluate(audit.Responses)
	if !report.CertificationReady() {
		return nil, surveillance.Schedule{}, dErrors.WithFields(dErrors.CodeNotReady,
			fmt.Sprintf("audit is %d%% complete, need 100%%", report.Percentage),
			map[string][]string{
				"percentage": {strconv.Itoa(report.Percentage)},
				"completed":  {strconv.Itoa(report.Completed)},
				"total":      {strconv.Itoa(report.Total)},
			})
	}

	at := now(ctx)
	issue, expiry, original := issuanceDates(cert, req, at)
	if number := req.CertificateNumber; number != "" {
		cert.CertificateNumber = number
	}
	if err := cert.Activate(issue, expiry, original, at); err != nil {
		return nil, surveillance.Schedule{}, err
	}
	audit.Certify(cert.CertificateNumber, issue, expiry, original, at)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.certs.Update(ctx, cert); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "certificate number already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
		}
		if err := s.audits.Update(ctx, audit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save audit")
		}
		return nil
	})
	if err != nil {
		return nil, surveillance.Schedule{}, err
	}

	if s.metrics != nil {
		s.metrics.CertificationsIssued.Inc()
	}
	s.emit(ctx, auditlog.EventCertificationIssued, cert.ID.String(), "")
	return cert, surveillance.Compute(cert.IssueDate, cert.ExpiryDate, at), nil
}

// issuanceDates resolves the effective dates: explicit request overrides win,
// then metadata already saved on the record, then policy defaults from today.
func issuanceDates(cert *models.Certification, req *models.IssueRequest, at time.Time) (issue, expiry, original time.Time) {
	issue, expiry, original = req.Dates()
	if issue.IsZero() {
		issue = cert.IssueDate
	}
	if issue.IsZero() {
		issue = at.Truncate(24 * time.Hour)
	}
	if expiry.IsZero() {
		expiry = cert.ExpiryDate
	}
	if expiry.IsZero() || !expiry.After(issue) {
		expiry = issue.AddDate(models.ValidityPeriod, 0, 0)
	}
	if original.IsZero() {
		original = cert.OriginalRegistrationDate
	}
	if original.IsZero() {
		original = issue
	}
	return issue, expiry, original
}

// Revoke is terminal. The confirmation token gate lives in the request
// validation; here the four certificate fields are cleared from the audit
// while its status stays completed, so a later issuance starts from scratch.
func (s *Service) Revoke(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.RevokeRequest) (*models.Certification, error) {
	ctx, span := s.tracer.Start(ctx, "certification.Revoke",
		trace.WithAttributes(attribute.String("certification.id", certID.String())))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return nil, err
	}
	at := now(ctx)
	if err := cert.Revoke(at); err != nil {
		return nil, err
	}

	audit, err := s.audits.FindByID(ctx, tenantID, cert.AuditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit")
	}
	audit.Decertify(at)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.certs.Update(ctx, cert); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
		}
		if err := s.audits.Update(ctx, audit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save audit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CertificationsRevoked.Inc()
	}
	s.emit(ctx, auditlog.EventCertificationRevoked, cert.ID.String(), req.Reason)
	return cert, nil
}

// Suspend pauses an active certification; issuance-dependent actions stay
// blocked until reinstatement.
func (s *Service) Suspend(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, reason string) (*models.Certification, error) {
	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return nil, err
	}
	if err := cert.Suspend(now(ctx)); err != nil {
		return nil, err
	}
	if err := s.certs.Update(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
	}
	s.emit(ctx, auditlog.EventCertificationSuspended, cert.ID.String(), reason)
	return cert, nil
}

// Reinstate returns a suspended certification to active.
func (s *Service) Reinstate(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, reason string) (*models.Certification, error) {
	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return nil, err
	}
	if err := cert.Reinstate(now(ctx)); err != nil {
		return nil, err
	}
	if err := s.certs.Update(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
	}
	s.emit(ctx, auditlog.EventCertificationReinstated, cert.ID.String(), reason)
	return cert, nil
}

// SaveTemplateMetadataResult carries the saved record plus an advisory
// warning. Saving metadata never changes lifecycle status.
type SaveTemplateMetadataResult struct {
	Certification *models.Certification `json:"certification"`
	Warning       string                `json:"warning,omitempty"`
}

// SaveTemplateMetadata updates display-only certificate fields. Blocked on
// revoked or expired records; allowed while suspended, with a warning that
// issuance remains blocked.
func (s *Service) SaveTemplateMetadata(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.TemplateMetadataRequest) (*SaveTemplateMetadataResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return nil, err
	}
	at := now(ctx)
	if cert.IsTerminal(at) {
		return nil, dErrors.Newf(dErrors.CodeTerminalState,
			"certification is %s and can no longer be edited", cert.EffectiveStatus(at))
	}

	req.Apply(cert, at)
	if err := s.certs.Update(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "certificate number already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certification")
	}

	result := &SaveTemplateMetadataResult{Certification: cert}
	if cert.Status == models.CertStatusSuspended {
		result.Warning = "certification is suspended; issuance remains blocked until reinstatement"
	}
	s.emit(ctx, auditlog.EventTemplateMetadataSaved, cert.ID.String(), "")
	return result, nil
}

// UpdateTemplate forwards the visual template and its data payload to the
// rendering gateway after checking the record is still editable.
func (s *Service) UpdateTemplate(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.UpdateTemplateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.renderer == nil {
		return dErrors.New(dErrors.CodeUnavailable, "template rendering is not configured")
	}
	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return err
	}
	at := now(ctx)
	if cert.IsTerminal(at) {
		return dErrors.Newf(dErrors.CodeTerminalState,
			"certification is %s and can no longer be edited", cert.EffectiveStatus(at))
	}
	return s.renderer.UpdateTemplate(ctx, certID, req)
}

// GenerateDocument asks the rendering gateway for a PDF of the certificate.
func (s *Service) GenerateDocument(ctx context.Context, tenantID id.TenantID, certID id.CertificationID, req *models.GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.renderer == nil {
		return "", dErrors.New(dErrors.CodeUnavailable, "template rendering is not configured")
	}
	cert, err := s.Get(ctx, tenantID, certID)
	if err != nil {
		return "", err
	}
	at := now(ctx)
	if cert.IsTerminal(at) {
		return "", dErrors.Newf(dErrors.CodeTerminalState,
			"certification is %s; documents can no longer be generated", cert.EffectiveStatus(at))
	}

	documentURL, err := s.renderer.Generate(ctx, certID, req.TemplateType)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.DocumentsGenerated.Inc()
	}
	s.emit(ctx, auditlog.EventDocumentGenerated, cert.ID.String(), fmt.Sprintf("template_type=%s", req.TemplateType))
	return documentURL, nil
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}

func (s *Service) emit(ctx context.Context, action auditlog.TrailEvent, subject, reason string) {
	if s.trail == nil {
		return
	}
	event := auditlog.Event{
		Timestamp:  now(ctx),
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
