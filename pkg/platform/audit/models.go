package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryModeration covers the ticket lifecycle: submissions and the
	// decisions that close them. These are the audit trail for published
	// content and are retained with the tickets.
	CategoryModeration EventCategory = "moderation"

	// CategoryConfiguration covers changes to moderator-editable settings.
	CategoryConfiguration EventCategory = "configuration"

	// CategoryOperations covers routine or failed activity that is useful
	// for debugging (duplicate clicks, cancelled submissions, publish errors).
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Subject never holds a raw submitter ID; services pass it through a
// Hasher first.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	TicketID  int64
	Subject   string
	ActorID   string
	Reason    string
	// EventID correlates the audit record with the inbound transport event
	// that caused it.
	EventID string
}

type AuditEvent string

const (
	// Ticket lifecycle
	EventTicketCreated       AuditEvent = "ticket_created"
	EventTicketApproved      AuditEvent = "ticket_approved"
	EventTicketRejected      AuditEvent = "ticket_rejected"
	EventTicketUndelivered   AuditEvent = "ticket_undelivered"
	EventDuplicateDecision   AuditEvent = "duplicate_decision"
	EventPublishFailed       AuditEvent = "publish_failed"
	EventSubmissionCancelled AuditEvent = "submission_cancelled"

	// Settings
	EventSettingChanged AuditEvent = "setting_changed"
	EventSettingsSeeded AuditEvent = "settings_seeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventTicketCreated:     CategoryModeration,
	EventTicketApproved:    CategoryModeration,
	EventTicketRejected:    CategoryModeration,
	EventTicketUndelivered: CategoryModeration,

	EventSettingChanged: CategoryConfiguration,
	EventSettingsSeeded: CategoryConfiguration,

	EventDuplicateDecision:   CategoryOperations,
	EventPublishFailed:       CategoryOperations,
	EventSubmissionCancelled: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists the audit trail of one ticket, oldest first.
type Reader interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]Event, error)
}
