package ports

import (
	"context"

	"relay/internal/ticket/models"
)

// TicketStore is the part of the ticket store a decision needs.
//
// CloseTicket must be a single atomic conditional write: of any number of
// concurrent callers for one ticket, exactly one observes StatusPending.
type TicketStore interface {
	CloseTicket(ctx context.Context, id models.ID, closure models.Closure) (models.Status, error)
	GetTicketForDecision(ctx context.Context, id models.ID) (*models.Ticket, error)
	ListDeliveries(ctx context.Context, id models.ID) ([]models.DeliveredCopy, error)
}
