package models

import (
	"strings"
	"time"

	"certo/pkg/dates"
	dErrors "certo/pkg/domain-errors"
)

// RevokeConfirmation is the literal token an operator must type to revoke.
const RevokeConfirmation = "REVOKE"

// IssueRequest formally activates a certification. Dates are optional; when
// omitted they default from the certification record. Both DD/MM/YYYY and
// ISO forms are accepted.
type IssueRequest struct {
	CertificateNumber        string `json:"certificate_number,omitempty"`
	IssueDate                string `json:"issue_date,omitempty"`
	ExpiryDate               string `json:"expiry_date,omitempty"`
	OriginalRegistrationDate string `json:"original_registration_date,omitempty"`

	issueDate    time.Time
	expiryDate   time.Time
	originalDate time.Time
}

func (r *IssueRequest) Validate() error {
	r.CertificateNumber = strings.TrimSpace(r.CertificateNumber)
	var err error
	if r.issueDate, err = dates.ParseFlexible(r.IssueDate); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid issue_date")
	}
	if r.expiryDate, err = dates.ParseFlexible(r.ExpiryDate); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid expiry_date")
	}
	if r.originalDate, err = dates.ParseFlexible(r.OriginalRegistrationDate); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid original_registration_date")
	}
	if !r.issueDate.IsZero() && !r.expiryDate.IsZero() && !r.expiryDate.After(r.issueDate) {
		return dErrors.New(dErrors.CodeValidation, "expiry_date must be after issue_date")
	}
	return nil
}

// Dates returns the parsed overrides; zero values mean "not provided".
// Validate must have been called first.
func (r *IssueRequest) Dates() (issue, expiry, original time.Time) {
	return r.issueDate, r.expiryDate, r.originalDate
}

// RevokeRequest revokes a certification. Confirmation must equal the literal
// RevokeConfirmation token; this is friction against accidental revocation,
// not a security control.
type RevokeRequest struct {
	Confirmation string `json:"confirmation"`
	Reason       string `json:"reason,omitempty"`
}

func (r *RevokeRequest) Validate() error {
	if r.Confirmation != RevokeConfirmation {
		return dErrors.Newf(dErrors.CodeValidation, "confirmation must be the literal string %q", RevokeConfirmation)
	}
	return nil
}

// TemplateMetadataRequest updates display-only certificate metadata. Saving
// never changes lifecycle status; issuance is a separate action.
type TemplateMetadataRequest struct {
	CertificateNumber        *string `json:"certificate_number,omitempty"`
	CertNumInt               *int    `json:"cert_num_int,omitempty"`
	CertificationBody        *string `json:"certification_body,omitempty"`
	Scope                    *string `json:"scope,omitempty"`
	IssueDate                *string `json:"issue_date,omitempty"`
	ExpiryDate               *string `json:"expiry_date,omitempty"`
	OriginalRegistrationDate *string `json:"original_registration_date,omitempty"`

	issueDate    time.Time
	expiryDate   time.Time
	originalDate time.Time
}

func (r *TemplateMetadataRequest) Validate() error {
	parse := func(s *string, field string) (time.Time, error) {
		if s == nil {
			return time.Time{}, nil
		}
		t, err := dates.ParseFlexible(*s)
		if err != nil {
			return time.Time{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+field)
		}
		return t, nil
	}
	var err error
	if r.issueDate, err = parse(r.IssueDate, "issue_date"); err != nil {
		return err
	}
	if r.expiryDate, err = parse(r.ExpiryDate, "expiry_date"); err != nil {
		return err
	}
	if r.originalDate, err = parse(r.OriginalRegistrationDate, "original_registration_date"); err != nil {
		return err
	}
	if r.CertificateNumber != nil && strings.TrimSpace(*r.CertificateNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "certificate_number cannot be blank")
	}
	return nil
}

// Apply writes the provided fields onto the certification. Validate must
// have been called first.
func (r *TemplateMetadataRequest) Apply(c *Certification, now time.Time) {
	if r.CertificateNumber != nil {
		c.CertificateNumber = strings.TrimSpace(*r.CertificateNumber)
	}
	if r.CertNumInt != nil {
		c.CertNumInt = *r.CertNumInt
	}
	if r.CertificationBody != nil {
		c.CertificationBody = strings.TrimSpace(*r.CertificationBody)
	}
	if r.Scope != nil {
		c.Scope = strings.TrimSpace(*r.Scope)
	}
	if r.IssueDate != nil {
		c.IssueDate = r.issueDate
	}
	if r.ExpiryDate != nil {
		c.ExpiryDate = r.expiryDate
	}
	if r.OriginalRegistrationDate != nil {
		c.OriginalRegistrationDate = r.originalDate
	}
	c.UpdatedAt = now
}

// UpdateTemplateRequest forwards a visual template document plus the data
// payload that fills it to the rendering gateway.
type UpdateTemplateRequest struct {
	Elements []map[string]any  `json:"elements"`
	Data     map[string]string `json:"data"`
}

func (r *UpdateTemplateRequest) Validate() error {
	if len(r.Elements) == 0 {
		return dErrors.New(dErrors.CodeValidation, "elements are required")
	}
	return nil
}

// GenerateRequest asks the rendering gateway for a PDF of the named template.
type GenerateRequest struct {
	TemplateType string `json:"template_type"`
}

func (r *GenerateRequest) Validate() error {
	r.TemplateType = strings.TrimSpace(r.TemplateType)
	if r.TemplateType == "" {
		return dErrors.New(dErrors.CodeValidation, "template_type is required")
	}
	return nil
}
