package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	auditmodels "certo/internal/audit/models"
	auditstore "certo/internal/audit/store"
	"certo/internal/certification/models"
	certstore "certo/internal/certification/store"
	"certo/internal/certification/surveillance"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/auditlog"
	trailmemory "certo/pkg/platform/auditlog/store/memory"
	"certo/pkg/requestcontext"
)

type stubRenderer struct {
	updates   int
	generates int
	url       string
	err       error
}

func (r *stubRenderer) UpdateTemplate(context.Context, id.CertificationID, *models.UpdateTemplateRequest) error {
	r.updates++
	return r.err
}

func (r *stubRenderer) Generate(context.Context, id.CertificationID, string) (string, error) {
	r.generates++
	if r.err != nil {
		return "", r.err
	}
	return r.url, nil
}

type CertificationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	tenantID id.TenantID
	audits   *auditstore.InMemory
	certs    *certstore.InMemory
	trail    *trailmemory.InMemoryStore
	renderer *stubRenderer
	svc      *Service
}

func TestCertificationServiceSuite(t *testing.T) {
	suite.Run(t, new(CertificationServiceSuite))
}

func (s *CertificationServiceSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.tenantID = id.TenantID(uuid.New())
	s.ctx = requestcontext.WithTenantID(context.Background(), s.tenantID)
	s.ctx = requestcontext.WithTime(s.ctx, s.now)

	s.audits = auditstore.NewInMemory()
	s.certs = certstore.NewInMemory()
	s.trail = trailmemory.NewInMemoryStore()
	s.renderer = &stubRenderer{url: "https://files.example/cert.pdf"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = New(s.certs, s.audits,
		WithLogger(logger),
		WithTrailPublisher(auditlog.NewStorePublisher(s.trail, logger)),
		WithRenderer(s.renderer),
	)
}

func (s *CertificationServiceSuite) newAudit(number string, responses ...auditmodels.ChecklistResponse) *auditmodels.Audit {
	audit, err := auditmodels.NewAudit(
		id.AuditID(uuid.New()), s.tenantID,
		number, "Meridian Foods Ltd", "ISO 22000:2018", auditmodels.AuditTypeInitial, s.now,
	)
	s.Require().NoError(err)
	audit.Scope = "Food production and packaging"
	if len(responses) > 0 {
		s.Require().NoError(audit.ReplaceResponses(responses, s.now))
	}
	s.Require().NoError(s.audits.Create(s.ctx, audit))
	return audit
}

func fullyCompliant(n int) []auditmodels.ChecklistResponse {
	out := make([]auditmodels.ChecklistResponse, n)
	for i := range out {
		out[i] = auditmodels.ChecklistResponse{
			Clause:           fmt.Sprintf("4.%d", i+1),
			ComplianceStatus: auditmodels.ComplianceCompliant,
		}
	}
	return out
}

func (s *CertificationServiceSuite) reconcile(auditID id.AuditID) *models.Certification {
	cert, err := s.svc.Reconcile(s.ctx, s.tenantID, auditID)
	s.Require().NoError(err)
	return cert
}

func (s *CertificationServiceSuite) TestReconcileCreatesWithDerivedDefaults() {
	audit := s.newAudit("AUD-2026-001")

	cert := s.reconcile(audit.ID)
	s.Equal("CERT-AUD-2026-001", cert.CertificateNumber)
	s.Equal(models.CertStatusPending, cert.Status)
	s.Equal(audit.ID, cert.AuditID)
	s.Equal("Meridian Foods Ltd", cert.ClientName)
	s.Equal("ISO 22000:2018", cert.ISOStandard)
	s.Equal("Food production and packaging", cert.Scope)

	issue := s.now.Truncate(24 * time.Hour)
	s.Equal(issue, cert.IssueDate)
	s.Equal(issue.AddDate(3, 0, 0), cert.ExpiryDate)
	s.Equal(issue, cert.OriginalRegistrationDate)
}

func (s *CertificationServiceSuite) TestReconcileIsIdempotent() {
	audit := s.newAudit("AUD-2026-001")

	first := s.reconcile(audit.ID)
	second := s.reconcile(audit.ID)
	s.Equal(first.ID, second.ID)

	// only one creation was recorded on the trail
	events, err := s.trail.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	var reconciled int
	for _, e := range events {
		if e.Action == string(auditlog.EventCertificationReconciled) {
			reconciled++
		}
	}
	s.Equal(1, reconciled)
}

func (s *CertificationServiceSuite) TestReconcileUsesScopePlaceholderWhenBlank() {
	audit, err := auditmodels.NewAudit(
		id.AuditID(uuid.New()), s.tenantID,
		"AUD-2026-002", "Meridian Foods Ltd", "ISO 22000:2018", auditmodels.AuditTypeInitial, s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.audits.Create(s.ctx, audit))

	cert := s.reconcile(audit.ID)
	s.Equal(models.ScopePlaceholder, cert.Scope)
}

func (s *CertificationServiceSuite) TestReconcileUnknownAudit() {
	_, err := s.svc.Reconcile(s.ctx, s.tenantID, id.AuditID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CertificationServiceSuite) TestIssueBlockedBelowFullCompletion() {
	for completed := 0; completed < 5; completed++ {
		responses := make([]auditmodels.ChecklistResponse, 5)
		for i := range responses {
			status := auditmodels.CompliancePending
			if i < completed {
				status = auditmodels.ComplianceCompliant
			}
			responses[i] = auditmodels.ChecklistResponse{Clause: fmt.Sprintf("4.%d", i+1), ComplianceStatus: status}
		}
		audit := s.newAudit(fmt.Sprintf("AUD-PART-%d", completed), responses...)
		cert := s.reconcile(audit.ID)

		_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotReady), "completed=%d", completed)
		s.Contains(dErrors.MessageOf(err), "need 100%")
	}
}

func (s *CertificationServiceSuite) TestIssueWritesCertificateFieldsToAudit() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(4)...)
	cert := s.reconcile(audit.ID)

	issued, sched, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{
		IssueDate:  "01/02/2026",
		ExpiryDate: "2029-02-01",
	})
	s.Require().NoError(err)
	s.Equal(models.CertStatusActive, issued.Status)
	s.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), issued.IssueDate)
	s.Equal(time.Date(2029, 2, 1, 0, 0, 0, 0, time.UTC), issued.ExpiryDate)

	saved, err := s.audits.FindByID(s.ctx, s.tenantID, audit.ID)
	s.Require().NoError(err)
	s.Equal(issued.CertificateNumber, saved.CertificateNumber)
	s.Equal(issued.IssueDate, saved.CertificateIssueDate)
	s.Equal(issued.ExpiryDate, saved.CertificateExpiryDate)
	s.Equal(auditmodels.AuditStatusCompleted, saved.Status)

	s.Equal(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), sched.Year1.Date)
	s.Equal(surveillance.StatusScheduled, sched.Year1.Status)
}

func (s *CertificationServiceSuite) TestIssueTwiceFailsAlreadyIssued() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)

	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)

	_, _, err = s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyIssued))
}

func (s *CertificationServiceSuite) TestRevokeClearsExactlyFourAuditFields() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)

	_, err = s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: "revoke"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "confirmation token is case-sensitive")

	revoked, err := s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation})
	s.Require().NoError(err)
	s.Equal(models.CertStatusRevoked, revoked.Status)

	saved, err := s.audits.FindByID(s.ctx, s.tenantID, audit.ID)
	s.Require().NoError(err)
	s.Empty(saved.CertificateNumber)
	s.True(saved.CertificateIssueDate.IsZero())
	s.True(saved.CertificateExpiryDate.IsZero())
	s.True(saved.CertificateOriginalRegistration.IsZero())
	s.Equal(auditmodels.AuditStatusCompleted, saved.Status)
	s.Equal(audit.Responses, saved.Responses)
}

func (s *CertificationServiceSuite) TestRevokeIsTerminal() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	_, err = s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation})
	s.Require().NoError(err)

	_, err = s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation})
	s.True(dErrors.HasCode(err, dErrors.CodeTerminalState))

	_, err = s.svc.Reinstate(s.ctx, s.tenantID, cert.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeTerminalState))
}

func (s *CertificationServiceSuite) TestReissueAfterRevokeStartsAnew() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	first := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, first.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	_, err = s.svc.Revoke(s.ctx, s.tenantID, first.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation})
	s.Require().NoError(err)

	// the audit carries no certificate fields again, so a later issuance is
	// treated as issuing anew; reconcile supersedes the revoked record back
	// to pending in place of the occupied 1:1 audit slot
	got := s.reconcile(audit.ID)
	s.Equal(first.ID, got.ID)
	s.Equal(models.CertStatusPending, got.Status)

	saved, err := s.audits.FindByID(s.ctx, s.tenantID, audit.ID)
	s.Require().NoError(err)
	s.NoError(saved.CanCertify())

	reissued, _, err := s.svc.Issue(s.ctx, s.tenantID, got.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	s.Equal(models.CertStatusActive, reissued.Status)

	saved, err = s.audits.FindByID(s.ctx, s.tenantID, audit.ID)
	s.Require().NoError(err)
	s.Equal(reissued.CertificateNumber, saved.CertificateNumber)
}

func (s *CertificationServiceSuite) TestSuspendAndReinstate() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)

	suspended, err := s.svc.Suspend(s.ctx, s.tenantID, cert.ID, "unpaid fees")
	s.Require().NoError(err)
	s.Equal(models.CertStatusSuspended, suspended.Status)

	_, err = s.svc.Suspend(s.ctx, s.tenantID, cert.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	reinstated, err := s.svc.Reinstate(s.ctx, s.tenantID, cert.ID, "fees settled")
	s.Require().NoError(err)
	s.Equal(models.CertStatusActive, reinstated.Status)
}

func (s *CertificationServiceSuite) TestSaveTemplateMetadataRoundTrip() {
	audit := s.newAudit("AUD-2026-001")
	cert := s.reconcile(audit.ID)

	number := "CERT-2026-0042"
	certNumInt := 42
	body := "Meridian Certification Body"
	issue := "15/03/2026"
	result, err := s.svc.SaveTemplateMetadata(s.ctx, s.tenantID, cert.ID, &models.TemplateMetadataRequest{
		CertificateNumber: &number,
		CertNumInt:        &certNumInt,
		CertificationBody: &body,
		IssueDate:         &issue,
	})
	s.Require().NoError(err)
	s.Empty(result.Warning)
	s.Equal(models.CertStatusPending, result.Certification.Status, "saving never flips status")

	got, err := s.svc.Get(s.ctx, s.tenantID, cert.ID)
	s.Require().NoError(err)
	s.Equal("CERT-2026-0042", got.CertificateNumber)
	s.Equal(42, got.CertNumInt)
	s.Equal("Meridian Certification Body", got.CertificationBody)
	s.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), got.IssueDate)
}

func (s *CertificationServiceSuite) TestSaveTemplateMetadataSuspendedWarns() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	_, err = s.svc.Suspend(s.ctx, s.tenantID, cert.ID, "")
	s.Require().NoError(err)

	certNumInt := 7
	result, err := s.svc.SaveTemplateMetadata(s.ctx, s.tenantID, cert.ID, &models.TemplateMetadataRequest{CertNumInt: &certNumInt})
	s.Require().NoError(err)
	s.Contains(result.Warning, "suspended")
}

func (s *CertificationServiceSuite) TestSaveTemplateMetadataBlockedWhenTerminal() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	_, err = s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation})
	s.Require().NoError(err)

	certNumInt := 7
	_, err = s.svc.SaveTemplateMetadata(s.ctx, s.tenantID, cert.ID, &models.TemplateMetadataRequest{CertNumInt: &certNumInt})
	s.True(dErrors.HasCode(err, dErrors.CodeTerminalState))
}

func (s *CertificationServiceSuite) TestGenerateDocument() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)

	url, err := s.svc.GenerateDocument(s.ctx, s.tenantID, cert.ID, &models.GenerateRequest{TemplateType: "certificate"})
	s.Require().NoError(err)
	s.Equal("https://files.example/cert.pdf", url)
	s.Equal(1, s.renderer.generates)
}

func (s *CertificationServiceSuite) TestGenerateDocumentBlockedWhenExpired() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{
		IssueDate:  "2020-01-01",
		ExpiryDate: "2023-01-01",
	})
	s.Require().NoError(err)

	_, err = s.svc.GenerateDocument(s.ctx, s.tenantID, cert.ID, &models.GenerateRequest{TemplateType: "certificate"})
	s.True(dErrors.HasCode(err, dErrors.CodeTerminalState))
	s.Zero(s.renderer.generates)
}

func (s *CertificationServiceSuite) TestStatsAndSurveillance() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{
		IssueDate:  "2025-01-01",
		ExpiryDate: "2028-01-01",
	})
	s.Require().NoError(err)

	sched, err := s.svc.Surveillance(s.ctx, s.tenantID, cert.ID)
	s.Require().NoError(err)
	s.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), sched.Year1.Date)
	s.Equal(surveillance.StatusOverdue, sched.Year1.Status)
	s.Equal(time.Date(2027, 12, 2, 0, 0, 0, 0, time.UTC), sched.Recertification.Date)

	stats, err := s.svc.Stats(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(1, stats.Active)
	s.Equal(1, stats.OverdueSurveillance)
	s.Equal(0, stats.ScheduledSurveillance)
}

func (s *CertificationServiceSuite) TestTrailRecordsLifecycle() {
	audit := s.newAudit("AUD-2026-001", fullyCompliant(3)...)
	cert := s.reconcile(audit.ID)
	_, _, err := s.svc.Issue(s.ctx, s.tenantID, cert.ID, &models.IssueRequest{})
	s.Require().NoError(err)
	_, err = s.svc.Revoke(s.ctx, s.tenantID, cert.ID, &models.RevokeRequest{Confirmation: models.RevokeConfirmation, Reason: "fraud"})
	s.Require().NoError(err)

	events, err := s.trail.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)

	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(auditlog.EventCertificationReconciled))
	s.Contains(actions, string(auditlog.EventCertificationIssued))
	s.Contains(actions, string(auditlog.EventCertificationRevoked))
}
