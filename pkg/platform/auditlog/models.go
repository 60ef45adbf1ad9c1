// Package auditlog captures the compliance trail of operator actions.
//
// Certification bodies answer to accreditation authorities; every issuance,
// revocation, and schedule change must be reconstructible after the fact.
// Events are emitted from domain services, persisted through a Store, and
// optionally mirrored onto Kafka for downstream compliance tooling.
package auditlog

import (
	"context"
	"time"

	"github.com/mssola/useragent"

	id "certo/pkg/domain"
)

// EventCategory classifies trail events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// issuance, revocation, suspension, schedule changes.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility:
	// reconciliations, template saves, document generation.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	TenantID   id.TenantID
	OperatorID id.OperatorID
	// Subject is the entity acted on (audit or certification ID).
	Subject string
	Action  string
	Reason  string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	ClientIP  string
	// Client is a coarse label parsed from the operator's User-Agent,
	// kept instead of the raw header to avoid storing fingerprintable data.
	Client string
}

// TrailEvent names every action the platform records.
type TrailEvent string

const (
	EventAuditScheduled           TrailEvent = "audit_scheduled"
	EventChecklistUpdated         TrailEvent = "checklist_updated"
	EventCertificationReconciled  TrailEvent = "certification_reconciled"
	EventCertificationIssued      TrailEvent = "certification_issued"
	EventCertificationRevoked     TrailEvent = "certification_revoked"
	EventCertificationSuspended   TrailEvent = "certification_suspended"
	EventCertificationReinstated  TrailEvent = "certification_reinstated"
	EventTemplateMetadataSaved    TrailEvent = "template_metadata_saved"
	EventDocumentGenerated        TrailEvent = "document_generated"
	EventSurveillanceOverdue      TrailEvent = "surveillance_overdue"
	EventTenantCreated            TrailEvent = "tenant_created"
	EventTenantDeactivated        TrailEvent = "tenant_deactivated"
	EventTenantReactivated        TrailEvent = "tenant_reactivated"
)

var eventCategories = map[TrailEvent]EventCategory{
	EventAuditScheduled:          CategoryOperations,
	EventChecklistUpdated:        CategoryOperations,
	EventCertificationReconciled: CategoryOperations,
	EventCertificationIssued:     CategoryCompliance,
	EventCertificationRevoked:    CategoryCompliance,
	EventCertificationSuspended:  CategoryCompliance,
	EventCertificationReinstated: CategoryCompliance,
	EventTemplateMetadataSaved:   CategoryOperations,
	EventDocumentGenerated:       CategoryOperations,
	EventSurveillanceOverdue:     CategoryCompliance,
	EventTenantCreated:           CategoryCompliance,
	EventTenantDeactivated:       CategoryCompliance,
	EventTenantReactivated:       CategoryCompliance,
}

// Category resolves the category for an event name, defaulting to operations.
func (e TrailEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists trail events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher is what domain services emit through.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// ClientLabel reduces a raw User-Agent to "Browser/OS" for trail storage.
func ClientLabel(rawUserAgent string) string {
	if rawUserAgent == "" {
		return ""
	}
	ua := useragent.New(rawUserAgent)
	name, _ := ua.Browser()
	if name == "" {
		return "unknown"
	}
	if os := ua.OS(); os != "" {
		return name + "/" + os
	}
	return name
}
