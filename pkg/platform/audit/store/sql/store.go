// Package sql persists audit events in the relay database next to the
// tickets they describe, so `relay ticket show` can print the trail.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	audit "relay/pkg/platform/audit"
	"relay/pkg/platform/tx"
)

type eventRow struct {
	bun.BaseModel `bun:"table:audit_events,alias:ae"`

	ID         string    `bun:"id,pk"`
	Category   string    `bun:"category,notnull"`
	Action     string    `bun:"action,notnull"`
	Subject    string    `bun:"subject,notnull"`
	ActorID    string    `bun:"actor_id,notnull"`
	TicketID   *int64    `bun:"ticket_id"`
	Reason     string    `bun:"reason,notnull"`
	EventID    string    `bun:"event_id,notnull"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
}

type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. Re-appending an event with the same ID is a
// no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	row := &eventRow{
		ID:         event.ID.String(),
		Category:   string(event.Category),
		Action:     event.Action,
		Subject:    event.Subject,
		ActorID:    event.ActorID,
		Reason:     event.Reason,
		EventID:    event.EventID,
		OccurredAt: event.Timestamp.UTC(),
	}
	if event.TicketID != 0 {
		id := event.TicketID
		row.TicketID = &id
	}
	_, err := tx.DB(ctx, s.db).NewInsert().
		Model(row).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByTicket(ctx context.Context, ticketID int64) ([]audit.Event, error) {
	var rows []eventRow
	err := tx.DB(ctx, s.db).NewSelect().
		Model(&rows).
		Where("ae.ticket_id = ?", ticketID).
		OrderExpr("ae.occurred_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select audit events: %w", err)
	}
	out := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse audit event id %q: %w", r.ID, err)
		}
		e := audit.Event{
			ID:        id,
			Category:  audit.EventCategory(r.Category),
			Timestamp: r.OccurredAt,
			Action:    r.Action,
			Subject:   r.Subject,
			ActorID:   r.ActorID,
			Reason:    r.Reason,
			EventID:   r.EventID,
		}
		if r.TicketID != nil {
			e.TicketID = *r.TicketID
		}
		out = append(out, e)
	}
	return out, nil
}
