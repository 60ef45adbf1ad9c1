package models

import (
	"strings"
	"time"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// AuditType distinguishes the engagement kinds in a certification cycle.
type AuditType string

const (
	AuditTypeInitial         AuditType = "initial"
	AuditTypeSurveillance1   AuditType = "surveillance_1"
	AuditTypeSurveillance2   AuditType = "surveillance_2"
	AuditTypeRecertification AuditType = "recertification"
	AuditTypeSpecial         AuditType = "special"
)

func (t AuditType) IsValid() bool {
	switch t {
	case AuditTypeInitial, AuditTypeSurveillance1, AuditTypeSurveillance2,
		AuditTypeRecertification, AuditTypeSpecial:
		return true
	}
	return false
}

// AuditStatus tracks the engagement through its soft lifecycle. Audits are
// never hard-deleted; cancellation is a status transition.
type AuditStatus string

const (
	AuditStatusScheduled  AuditStatus = "scheduled"
	AuditStatusInProgress AuditStatus = "in_progress"
	AuditStatusCompleted  AuditStatus = "completed"
	AuditStatusCancelled  AuditStatus = "cancelled"
)

func (s AuditStatus) IsValid() bool {
	switch s {
	case AuditStatusScheduled, AuditStatusInProgress, AuditStatusCompleted, AuditStatusCancelled:
		return true
	}
	return false
}

// ComplianceStatus is the answer recorded against one checklist item.
// "pending" is the not-yet-answered sentinel; everything else counts toward
// completion.
type ComplianceStatus string

const (
	CompliancePending       ComplianceStatus = "pending"
	ComplianceCompliant     ComplianceStatus = "compliant"
	ComplianceNonCompliant  ComplianceStatus = "non_compliant"
	ComplianceObservation   ComplianceStatus = "observation"
	ComplianceNotApplicable ComplianceStatus = "not_applicable"
)

func (s ComplianceStatus) IsValid() bool {
	switch s {
	case CompliancePending, ComplianceCompliant, ComplianceNonCompliant,
		ComplianceObservation, ComplianceNotApplicable:
		return true
	}
	return false
}

// ChecklistResponse is one compliance item within an audit. Order is
// preserved as recorded.
type ChecklistResponse struct {
	Clause           string           `json:"clause"`
	Requirement      string           `json:"requirement"`
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	Notes            string           `json:"notes,omitempty"`
}

// Audit is the aggregate root for a scheduled inspection engagement.
//
// Invariants:
//   - AuditNumber is non-empty and unique per tenant
//   - TenantID is immutable after construction
//   - CertificateNumber is set if and only if a certificate has been issued
//     for this audit; the presence of CertificateNumber is the source of
//     truth for "issued"
//   - Status transitions are soft only; audits are never deleted
type Audit struct {
	ID          id.AuditID  `json:"id"`
	TenantID    id.TenantID `json:"tenant_id"`
	AuditNumber string      `json:"audit_number"`
	ContractID  id.ContractID `json:"contract_id,omitempty"`

	ClientName  string    `json:"client_name"`
	ISOStandard string    `json:"iso_standard"`
	Type        AuditType `json:"audit_type"`
	Scope       string    `json:"scope,omitempty"`
	LeadAuditor string    `json:"lead_auditor,omitempty"`

	PlannedStart time.Time `json:"planned_start,omitempty"`
	PlannedEnd   time.Time `json:"planned_end,omitempty"`
	ActualStart  time.Time `json:"actual_start,omitempty"`
	ActualEnd    time.Time `json:"actual_end,omitempty"`

	Status    AuditStatus         `json:"status"`
	Responses []ChecklistResponse `json:"checklist_responses"`

	// Certificate fields, populated on issuance and cleared on revocation.
	// These four move together: see Certify and Decertify.
	CertificateNumber               string    `json:"certificate_number,omitempty"`
	CertificateIssueDate            time.Time `json:"certificate_issue_date,omitempty"`
	CertificateExpiryDate           time.Time `json:"certificate_expiry_date,omitempty"`
	CertificateOriginalRegistration time.Time `json:"certificate_original_registration_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAudit constructs a scheduled audit, validating invariants.
func NewAudit(auditID id.AuditID, tenantID id.TenantID, auditNumber, clientName, isoStandard string, auditType AuditType, now time.Time) (*Audit, error) {
	auditNumber = strings.TrimSpace(auditNumber)
	if auditNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit number cannot be empty")
	}
	if strings.TrimSpace(clientName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if strings.TrimSpace(isoStandard) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "iso standard cannot be empty")
	}
	if !auditType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid audit type")
	}
	return &Audit{
		ID:          auditID,
		TenantID:    tenantID,
		AuditNumber: auditNumber,
		ClientName:  strings.TrimSpace(clientName),
		ISOStandard: strings.TrimSpace(isoStandard),
		Type:        auditType,
		Status:      AuditStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsCertified reports whether a certificate has been issued for this audit.
func (a *Audit) IsCertified() bool {
	return a.CertificateNumber != ""
}

// CanCertify checks the issuance preconditions that live on the audit itself.
func (a *Audit) CanCertify() error {
	if a.IsCertified() {
		return dErrors.New(dErrors.CodeAlreadyIssued, "certificate already issued for this audit")
	}
	if a.Status == AuditStatusCancelled {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot certify a cancelled audit")
	}
	return nil
}

// Certify writes the certificate fields and marks the audit completed.
// Call CanCertify first.
func (a *Audit) Certify(certificateNumber string, issueDate, expiryDate, originalRegistration time.Time, now time.Time) {
	a.CertificateNumber = certificateNumber
	a.CertificateIssueDate = issueDate
	a.CertificateExpiryDate = expiryDate
	a.CertificateOriginalRegistration = originalRegistration
	a.Status = AuditStatusCompleted
	a.UpdatedAt = now
}

// Decertify clears exactly the four certificate fields. The audit status
// stays completed: the engagement happened, only the certificate is gone.
// A subsequent issuance is treated as issuing anew.
func (a *Audit) Decertify(now time.Time) {
	a.CertificateNumber = ""
	a.CertificateIssueDate = time.Time{}
	a.CertificateExpiryDate = time.Time{}
	a.CertificateOriginalRegistration = time.Time{}
	a.UpdatedAt = now
}

// ReplaceResponses swaps the checklist. Recording the first response moves a
// scheduled audit into progress.
func (a *Audit) ReplaceResponses(responses []ChecklistResponse, now time.Time) error {
	for i, r := range responses {
		if !r.ComplianceStatus.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "response %d has invalid compliance status %q", i, r.ComplianceStatus)
		}
	}
	a.Responses = responses
	if a.Status == AuditStatusScheduled && len(responses) > 0 {
		a.Status = AuditStatusInProgress
	}
	a.UpdatedAt = now
	return nil
}
