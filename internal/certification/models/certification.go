package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// CertStatus is the persisted lifecycle state of a certification.
// expired and expiring_soon are never stored; they are derived from the
// expiry date at read time via EffectiveStatus.
type CertStatus string

const (
	CertStatusPending   CertStatus = "pending"
	CertStatusActive    CertStatus = "active"
	CertStatusSuspended CertStatus = "suspended"
	CertStatusRevoked   CertStatus = "revoked"

	// Derived statuses, returned by EffectiveStatus only.
	CertStatusExpiringSoon CertStatus = "expiring_soon"
	CertStatusExpired      CertStatus = "expired"
)

func (s CertStatus) IsValid() bool {
	switch s {
	case CertStatusPending, CertStatusActive, CertStatusSuspended, CertStatusRevoked:
		return true
	}
	return false
}

const (
	// ValidityPeriod is the policy default between issue and expiry.
	ValidityPeriod = 3

	// ExpiryWarningWindow is how far ahead of expiry an active certificate
	// reads as expiring_soon.
	ExpiryWarningWindow = 90 * 24 * time.Hour

	// ScopePlaceholder fills the scope when the source audit carries none.
	ScopePlaceholder = "Scope to be confirmed"
)

// Certification is the certificate record, tied 1:1 to an audit.
//
// Invariants:
//   - AuditID is set and unique across certifications of a tenant.
//   - CertificateNumber is unique per tenant (case-insensitive).
//   - ExpiryDate is after IssueDate.
//   - Status holds only persisted states; revoked is terminal.
type Certification struct {
	ID                       id.CertificationID `json:"id"`
	TenantID                 id.TenantID        `json:"tenant_id"`
	AuditID                  id.AuditID         `json:"audit_id"`
	AuditNumber              string             `json:"audit_number"`
	CertificateNumber        string             `json:"certificate_number"`
	CertNumInt               int                `json:"cert_num_int,omitempty"`
	ClientName               string             `json:"client_name"`
	ISOStandard              string             `json:"iso_standard"`
	Scope                    string             `json:"scope"`
	CertificationBody        string             `json:"certification_body,omitempty"`
	LeadAuditor              string             `json:"lead_auditor,omitempty"`
	Status                   CertStatus         `json:"status"`
	IssueDate                time.Time          `json:"issue_date"`
	ExpiryDate               time.Time          `json:"expiry_date"`
	OriginalRegistrationDate time.Time          `json:"original_registration_date"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// NewCertification builds a pending certification derived from audit data.
// Missing client or standard is reported through MissingCriticalFields, not
// here: reconciliation persists anyway and lets the store-level validation
// speak, so callers see the authoritative error text.
func NewCertification(tenantID id.TenantID, auditID id.AuditID, auditNumber, certificateNumber, clientName, isoStandard, scope, leadAuditor string, now time.Time) (*Certification, error) {
	if tenantID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certification requires a tenant")
	}
	if auditID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certification requires an audit")
	}
	if strings.TrimSpace(scope) == "" {
		scope = ScopePlaceholder
	}
	issue := now.Truncate(24 * time.Hour)
	return &Certification{
		ID:                       id.CertificationID(uuid.New()),
		TenantID:                 tenantID,
		AuditID:                  auditID,
		AuditNumber:              auditNumber,
		CertificateNumber:        certificateNumber,
		ClientName:               clientName,
		ISOStandard:              isoStandard,
		Scope:                    scope,
		LeadAuditor:              leadAuditor,
		Status:                   CertStatusPending,
		IssueDate:                issue,
		ExpiryDate:               issue.AddDate(ValidityPeriod, 0, 0),
		OriginalRegistrationDate: issue,
		CreatedAt:                now,
		UpdatedAt:                now,
	}, nil
}

// MissingCriticalFields lists the derivation inputs that were blank. The
// reconciler logs these before attempting persistence.
func (c *Certification) MissingCriticalFields() []string {
	var missing []string
	if strings.TrimSpace(c.ClientName) == "" {
		missing = append(missing, "client_name")
	}
	if strings.TrimSpace(c.ISOStandard) == "" {
		missing = append(missing, "iso_standard")
	}
	if strings.TrimSpace(c.CertificateNumber) == "" {
		missing = append(missing, "certificate_number")
	}
	return missing
}

// EffectiveStatus derives the read-time status. An active certificate past
// its expiry reads as expired; one inside the warning window reads as
// expiring_soon. All other persisted states pass through unchanged.
func (c *Certification) EffectiveStatus(now time.Time) CertStatus {
	if c.Status != CertStatusActive {
		return c.Status
	}
	if !c.ExpiryDate.IsZero() {
		if !now.Before(c.ExpiryDate) {
			return CertStatusExpired
		}
		if c.ExpiryDate.Sub(now) <= ExpiryWarningWindow {
			return CertStatusExpiringSoon
		}
	}
	return CertStatusActive
}

// IsTerminal reports whether further lifecycle edits are permitted.
func (c *Certification) IsTerminal(now time.Time) bool {
	eff := c.EffectiveStatus(now)
	return eff == CertStatusRevoked || eff == CertStatusExpired
}

func (c *Certification) CanActivate() error {
	switch c.Status {
	case CertStatusPending:
		return nil
	case CertStatusActive:
		return dErrors.New(dErrors.CodeAlreadyIssued, "certification is already active")
	case CertStatusRevoked:
		return dErrors.New(dErrors.CodeTerminalState, "certification has been revoked")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot activate certification in %s state", c.Status)
	}
}

// Activate marks the certification issued, stamping the issue-derived dates.
func (c *Certification) Activate(issue, expiry, originalRegistration time.Time, now time.Time) error {
	if err := c.CanActivate(); err != nil {
		return err
	}
	if !expiry.After(issue) {
		return dErrors.New(dErrors.CodeInvariantViolation, "expiry_date must be after issue_date")
	}
	c.Status = CertStatusActive
	c.IssueDate = issue
	c.ExpiryDate = expiry
	c.OriginalRegistrationDate = originalRegistration
	c.UpdatedAt = now
	return nil
}

func (c *Certification) CanRevoke() error {
	if c.Status == CertStatusRevoked {
		return dErrors.New(dErrors.CodeTerminalState, "certification is already revoked")
	}
	return nil
}

// Revoke is terminal; there is no un-revoke.
func (c *Certification) Revoke(now time.Time) error {
	if err := c.CanRevoke(); err != nil {
		return err
	}
	c.Status = CertStatusRevoked
	c.UpdatedAt = now
	return nil
}

// Supersede returns a revoked record to the pending state a fresh reconcile
// would derive, keeping its identity and audit link. Revocation cleared the
// audit's certificate fields, so a later issuance starts anew; the record is
// reset rather than replaced because it occupies the 1:1 audit slot.
func (c *Certification) Supersede(now time.Time) error {
	if c.Status != CertStatusRevoked {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot supersede certification in %s state", c.Status)
	}
	issue := now.Truncate(24 * time.Hour)
	c.Status = CertStatusPending
	c.IssueDate = issue
	c.ExpiryDate = issue.AddDate(ValidityPeriod, 0, 0)
	c.OriginalRegistrationDate = issue
	c.UpdatedAt = now
	return nil
}

func (c *Certification) CanSuspend() error {
	switch c.Status {
	case CertStatusActive:
		return nil
	case CertStatusRevoked:
		return dErrors.New(dErrors.CodeTerminalState, "certification has been revoked")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot suspend certification in %s state", c.Status)
	}
}

func (c *Certification) Suspend(now time.Time) error {
	if err := c.CanSuspend(); err != nil {
		return err
	}
	c.Status = CertStatusSuspended
	c.UpdatedAt = now
	return nil
}

func (c *Certification) CanReinstate() error {
	switch c.Status {
	case CertStatusSuspended:
		return nil
	case CertStatusRevoked:
		return dErrors.New(dErrors.CodeTerminalState, "certification has been revoked")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot reinstate certification in %s state", c.Status)
	}
}

func (c *Certification) Reinstate(now time.Time) error {
	if err := c.CanReinstate(); err != nil {
		return err
	}
	c.Status = CertStatusActive
	c.UpdatedAt = now
	return nil
}
