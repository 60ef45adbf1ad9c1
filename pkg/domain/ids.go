// Package domain defines typed identifiers shared across modules.
//
// Typed IDs make cross-entity assignment a compile error: an AuditID can
// never be handed to a function expecting a CertificationID. All IDs are
// UUIDs; parsing enforces the "valid, non-empty, non-nil" invariant at
// trust boundaries (HTTP paths, JWT claims, store rows).
package domain

import (
	"github.com/google/uuid"

	dErrors "certo/pkg/domain-errors"
)

type (
	// TenantID identifies a certification body (tenant).
	TenantID uuid.UUID
	// AuditID identifies a scheduled inspection engagement.
	AuditID uuid.UUID
	// CertificationID identifies an issued-certificate record.
	CertificationID uuid.UUID
	// ContractID identifies a client contract audits are scheduled from.
	ContractID uuid.UUID
	// OperatorID identifies the human operator acting through the API.
	OperatorID uuid.UUID
)

func (id TenantID) String() string        { return uuid.UUID(id).String() }
func (id AuditID) String() string         { return uuid.UUID(id).String() }
func (id CertificationID) String() string { return uuid.UUID(id).String() }
func (id ContractID) String() string      { return uuid.UUID(id).String() }
func (id OperatorID) String() string      { return uuid.UUID(id).String() }

func (id TenantID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CertificationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ContractID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OperatorID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }

// MarshalText implementations keep typed IDs JSON-friendly as plain UUID strings.
func (id TenantID) MarshalText() ([]byte, error)        { return marshalID(uuid.UUID(id)) }
func (id AuditID) MarshalText() ([]byte, error)         { return marshalID(uuid.UUID(id)) }
func (id CertificationID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id ContractID) MarshalText() ([]byte, error)      { return marshalID(uuid.UUID(id)) }
func (id OperatorID) MarshalText() ([]byte, error)      { return marshalID(uuid.UUID(id)) }

func (id *TenantID) UnmarshalText(b []byte) error        { return unmarshalID((*uuid.UUID)(id), b) }
func (id *AuditID) UnmarshalText(b []byte) error         { return unmarshalID((*uuid.UUID)(id), b) }
func (id *CertificationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ContractID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *OperatorID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }

// Optional IDs round-trip through JSON: the zero ID marshals to the empty
// string and the empty string unmarshals back to the zero ID. Strict
// non-nil validation stays in the Parse* trust-boundary functions.
func marshalID(u uuid.UUID) ([]byte, error) {
	if u == uuid.Nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}

func unmarshalID(dst *uuid.UUID, b []byte) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	u, err := parseUUID(string(b))
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

// ParseTenantID parses and validates a tenant ID string.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	return TenantID(u), err
}

// ParseAuditID parses and validates an audit ID string.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parseUUID(s)
	return AuditID(u), err
}

// ParseCertificationID parses and validates a certification ID string.
func ParseCertificationID(s string) (CertificationID, error) {
	u, err := parseUUID(s)
	return CertificationID(u), err
}

// ParseContractID parses and validates a contract ID string.
func ParseContractID(s string) (ContractID, error) {
	u, err := parseUUID(s)
	return ContractID(u), err
}

// ParseOperatorID parses and validates an operator ID string.
func ParseOperatorID(s string) (OperatorID, error) {
	u, err := parseUUID(s)
	return OperatorID(u), err
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
