package audit

import (
	"time"

	"docdesk/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers decisions on applications and document removal.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers denied actions.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine listing changes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from services after a state change or a denial. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the acting principal.
	UserID   domain.UserID
	Role     domain.Role
	Subject  string // document or application id
	Action   string
	Decision string
	Reason   string
	// Request enrichment, filled by Enrich.
	RequestID string
	ClientIP  string
	Device    string
}

type AuditEvent string

const (
	EventDocumentCreated     AuditEvent = "document_created"
	EventDocumentUpdated     AuditEvent = "document_updated"
	EventDocumentDeleted     AuditEvent = "document_deleted"
	EventDocumentExpired     AuditEvent = "document_marked_expired"
	EventApplicationCreated  AuditEvent = "application_created"
	EventApplicationUpdated  AuditEvent = "application_updated"
	EventApplicationDeleted  AuditEvent = "application_deleted"
	EventApplicationDecision AuditEvent = "application_status_changed"
	EventAccessDenied        AuditEvent = "access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentDeleted:     CategoryCompliance,
	EventApplicationCreated:  CategoryCompliance,
	EventApplicationDeleted:  CategoryCompliance,
	EventApplicationDecision: CategoryCompliance,

	EventAccessDenied: CategorySecurity,

	EventDocumentCreated:    CategoryOperations,
	EventDocumentUpdated:    CategoryOperations,
	EventDocumentExpired:    CategoryOperations,
	EventApplicationUpdated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
