package models

import (
	"strings"
	"time"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// ScheduleAuditRequest creates an audit, typically from a contract.
type ScheduleAuditRequest struct {
	AuditNumber  string        `json:"audit_number"`
	ContractID   id.ContractID `json:"contract_id,omitempty"`
	ClientName   string        `json:"client_name"`
	ISOStandard  string        `json:"iso_standard"`
	Type         AuditType     `json:"audit_type"`
	Scope        string        `json:"scope,omitempty"`
	LeadAuditor  string        `json:"lead_auditor,omitempty"`
	PlannedStart time.Time     `json:"planned_start,omitempty"`
	PlannedEnd   time.Time     `json:"planned_end,omitempty"`
}

func (r *ScheduleAuditRequest) Normalize() {
	r.AuditNumber = strings.TrimSpace(r.AuditNumber)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ISOStandard = strings.TrimSpace(r.ISOStandard)
	r.Scope = strings.TrimSpace(r.Scope)
	r.LeadAuditor = strings.TrimSpace(r.LeadAuditor)
}

func (r *ScheduleAuditRequest) Validate() error {
	if r.AuditNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "audit_number is required")
	}
	if r.ClientName == "" {
		return dErrors.New(dErrors.CodeValidation, "client_name is required")
	}
	if r.ISOStandard == "" {
		return dErrors.New(dErrors.CodeValidation, "iso_standard is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "audit_type must be one of initial, surveillance_1, surveillance_2, recertification, special")
	}
	if !r.PlannedEnd.IsZero() && r.PlannedEnd.Before(r.PlannedStart) {
		return dErrors.New(dErrors.CodeValidation, "planned_end cannot precede planned_start")
	}
	return nil
}

// PatchAuditRequest carries the certificate-field and status subset that
// issuance and revocation write through. Nil pointer means "leave unchanged";
// for the certificate fields an explicit empty value clears.
type PatchAuditRequest struct {
	CertificateNumber               *string      `json:"certificate_number,omitempty"`
	CertificateIssueDate            *time.Time   `json:"certificate_issue_date,omitempty"`
	CertificateExpiryDate           *time.Time   `json:"certificate_expiry_date,omitempty"`
	CertificateOriginalRegistration *time.Time   `json:"certificate_original_registration_date,omitempty"`
	Status                          *AuditStatus `json:"status,omitempty"`
}

func (r *PatchAuditRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid status %q", *r.Status)
	}
	return nil
}

// ReplaceResponsesRequest swaps an audit's checklist wholesale. The UI posts
// the full ordered list every save.
type ReplaceResponsesRequest struct {
	Responses []ChecklistResponse `json:"responses"`
}

func (r *ReplaceResponsesRequest) Validate() error {
	for i, resp := range r.Responses {
		if strings.TrimSpace(resp.Clause) == "" {
			return dErrors.Newf(dErrors.CodeValidation, "response %d missing clause", i)
		}
		if resp.ComplianceStatus == "" {
			continue // treated as pending by Normalize
		}
		if !resp.ComplianceStatus.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "response %d has invalid compliance_status %q", i, resp.ComplianceStatus)
		}
	}
	return nil
}

func (r *ReplaceResponsesRequest) Normalize() {
	for i := range r.Responses {
		if r.Responses[i].ComplianceStatus == "" {
			r.Responses[i].ComplianceStatus = CompliancePending
		}
	}
}
