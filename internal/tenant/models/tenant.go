package models

import (
	"time"

	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// CanTransitionTo reports whether the status may move to target.
// Only active <-> inactive is allowed.
func (s TenantStatus) CanTransitionTo(target TenantStatus) bool {
	switch s {
	case TenantStatusActive:
		return target == TenantStatusInactive
	case TenantStatusInactive:
		return target == TenantStatusActive
	default:
		return false
	}
}

// Tenant is the aggregate root for a certification body organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Status is either active or inactive
//   - Status transitions: active <-> inactive only
//   - CreatedAt is immutable after construction
//
// When a tenant is deactivated, API key resolution for all of its keys MUST
// fail even if the key itself is still active. This is enforced at the
// service layer (ResolveKey) rather than by cascading status changes to
// every key, so reactivation never has to touch key records.
type Tenant struct {
	ID        id.TenantID  `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// CanDeactivate checks if the tenant can transition to inactive status.
func (t *Tenant) CanDeactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions the tenant to inactive status.
// Call CanDeactivate first to validate the transition.
func (t *Tenant) ApplyDeactivation(now time.Time) {
	t.Status = TenantStatusInactive
	t.UpdatedAt = now
}

// Deactivate validates and applies deactivation in one call.
func (t *Tenant) Deactivate(now time.Time) error {
	if err := t.CanDeactivate(); err != nil {
		return err
	}
	t.ApplyDeactivation(now)
	return nil
}

// CanReactivate checks if the tenant can transition to active status.
func (t *Tenant) CanReactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	return nil
}

// ApplyReactivation transitions the tenant to active status.
// Call CanReactivate first to validate the transition.
func (t *Tenant) ApplyReactivation(now time.Time) {
	t.Status = TenantStatusActive
	t.UpdatedAt = now
}

// Reactivate validates and applies reactivation in one call.
func (t *Tenant) Reactivate(now time.Time) error {
	if err := t.CanReactivate(); err != nil {
		return err
	}
	t.ApplyReactivation(now)
	return nil
}

func NewTenant(tenantID id.TenantID, name string, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TenantDetails pairs a tenant with usage counts for the admin API.
type TenantDetails struct {
	*Tenant
	KeyCount int `json:"key_count"`
}
