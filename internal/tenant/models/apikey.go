package models

import (
	"time"

	"github.com/google/uuid"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// APIKey is a credential a tenant's systems present to the platform API.
//
// Invariants:
//   - Name is non-empty and at most 64 characters
//   - KeyID is the public identifier sent with requests, SecretHash is the
//     bcrypt hash of the secret half; the cleartext secret is returned
//     exactly once at creation and never stored
//   - Revocation is terminal
type APIKey struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   id.TenantID `json:"tenant_id"`
	Name       string      `json:"name"`
	KeyID      string      `json:"key_id"`
	SecretHash string      `json:"-"`
	Status     KeyStatus   `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (k *APIKey) IsActive() bool {
	return k.Status == KeyStatusActive
}

// Revoke transitions the key to revoked status. Revocation is terminal.
func (k *APIKey) Revoke(now time.Time) error {
	if k.Status == KeyStatusRevoked {
		return dErrors.New(dErrors.CodeConflict, "api key is already revoked")
	}
	k.Status = KeyStatusRevoked
	k.UpdatedAt = now
	return nil
}

func NewAPIKey(keyUUID uuid.UUID, tenantID id.TenantID, name, keyID, secretHash string, now time.Time) (*APIKey, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "api key name cannot be empty")
	}
	if len(name) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "api key name must be 64 characters or less")
	}
	if keyID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key id cannot be empty")
	}
	if secretHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secret hash cannot be empty")
	}
	return &APIKey{
		ID:         keyUUID,
		TenantID:   tenantID,
		Name:       name,
		KeyID:      keyID,
		SecretHash: secretHash,
		Status:     KeyStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
