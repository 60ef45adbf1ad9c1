package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusSigned     ContractStatus = "signed"
	ContractStatusTerminated ContractStatus = "terminated"
)

func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusSigned, ContractStatusTerminated:
		return true
	}
	return false
}

// Contract is the consulting/certification engagement audits are scheduled
// from. Deliberately light: the audit aggregate owns the engagement's
// operational state.
type Contract struct {
	ID             id.ContractID  `json:"id"`
	TenantID       id.TenantID    `json:"tenant_id"`
	ContractNumber string         `json:"contract_number"`
	ClientName     string         `json:"client_name"`
	ISOStandard    string         `json:"iso_standard"`
	Status         ContractStatus `json:"status"`
	StartDate      time.Time      `json:"start_date,omitempty"`
	EndDate        time.Time      `json:"end_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func NewContract(tenantID id.TenantID, contractNumber, clientName, isoStandard string, now time.Time) (*Contract, error) {
	contractNumber = strings.TrimSpace(contractNumber)
	if contractNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contract number cannot be empty")
	}
	if strings.TrimSpace(clientName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if strings.TrimSpace(isoStandard) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ISO standard cannot be empty")
	}
	return &Contract{
		ID:             id.ContractID(uuid.New()),
		TenantID:       tenantID,
		ContractNumber: contractNumber,
		ClientName:     strings.TrimSpace(clientName),
		ISOStandard:    strings.TrimSpace(isoStandard),
		Status:         ContractStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Sign moves a draft contract into force. Audits can only be scheduled from
// signed contracts.
func (c *Contract) Sign(now time.Time) error {
	switch c.Status {
	case ContractStatusDraft:
		c.Status = ContractStatusSigned
		c.UpdatedAt = now
		return nil
	case ContractStatusSigned:
		return dErrors.New(dErrors.CodeConflict, "contract is already signed")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot sign contract in %s state", c.Status)
	}
}

// Terminate ends the engagement. Terminal.
func (c *Contract) Terminate(now time.Time) error {
	if c.Status == ContractStatusTerminated {
		return dErrors.New(dErrors.CodeTerminalState, "contract is already terminated")
	}
	c.Status = ContractStatusTerminated
	c.UpdatedAt = now
	return nil
}

// CreateContractRequest is the POST body.
type CreateContractRequest struct {
	ContractNumber string `json:"contract_number"`
	ClientName     string `json:"client_name"`
	ISOStandard    string `json:"iso_standard"`
}

func (r *CreateContractRequest) Validate() error {
	if strings.TrimSpace(r.ContractNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "contract_number is required")
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return dErrors.New(dErrors.CodeValidation, "client_name is required")
	}
	if strings.TrimSpace(r.ISOStandard) == "" {
		return dErrors.New(dErrors.CodeValidation, "iso_standard is required")
	}
	return nil
}
