package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"relay/internal/platform/database"
	"relay/internal/ticket/models"
	"relay/pkg/platform/sentinel"
	"relay/pkg/platform/tx"
)

type ticketRow struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID              int64      `bun:"id,pk,autoincrement"`
	SubmitterID     string     `bun:"submitter_id,notnull"`
	Status          string     `bun:"status,notnull"`
	DisclosureMode  string     `bun:"disclosure_mode,notnull"`
	CustomSignature *string    `bun:"custom_signature"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	ClosedAt        *time.Time `bun:"closed_at"`
	ClosedBy        string     `bun:"closed_by,nullzero"`
	Outcome         string     `bun:"outcome,nullzero"`
	SourceRef       string     `bun:"source_ref,nullzero"`
}

type deliveryRow struct {
	bun.BaseModel `bun:"table:delivered_copies,alias:dc"`

	TicketID    int64     `bun:"ticket_id,pk"`
	ModeratorID string    `bun:"moderator_id,pk"`
	Handle      string    `bun:"handle,notnull"`
	DeliveredAt time.Time `bun:"delivered_at,notnull"`
}

// SQLStore persists tickets through bun on SQLite or PostgreSQL.
type SQLStore struct {
	db *bun.DB
}

func NewSQL(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) idb(ctx context.Context) bun.IDB {
	return tx.DB(ctx, s.db)
}

func (s *SQLStore) CreateTicket(ctx context.Context, t *models.Ticket) (models.ID, error) {
	row := &ticketRow{
		SubmitterID:     t.SubmitterID,
		Status:          string(t.Status),
		DisclosureMode:  string(t.DisclosureMode),
		CustomSignature: t.CustomSignature,
		CreatedAt:       t.CreatedAt.UTC(),
		SourceRef:       t.SourceRef,
	}
	if _, err := s.idb(ctx).NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("source %s already submitted: %w", t.SourceRef, sentinel.ErrConflict)
		}
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	t.ID = models.ID(row.ID)
	return t.ID, nil
}

func (s *SQLStore) RecordDelivery(ctx context.Context, c models.DeliveredCopy) error {
	row := &deliveryRow{
		TicketID:    int64(c.TicketID),
		ModeratorID: c.ModeratorID,
		Handle:      c.Handle,
		DeliveredAt: c.DeliveredAt.UTC(),
	}
	_, err := s.idb(ctx).NewInsert().Model(row).Exec(ctx)
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return fmt.Errorf("delivery of ticket %d to %s already recorded: %w", c.TicketID, c.ModeratorID, sentinel.ErrConflict)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("ticket %d: %w", c.TicketID, sentinel.ErrNotFound)
	default:
		return fmt.Errorf("insert delivery: %w", err)
	}
}

func (s *SQLStore) GetTicketForDecision(ctx context.Context, id models.ID) (*models.Ticket, error) {
	return s.FindTicket(ctx, id)
}

func (s *SQLStore) FindTicket(ctx context.Context, id models.ID) (*models.Ticket, error) {
	row := new(ticketRow)
	err := s.idb(ctx).NewSelect().Model(row).Where("t.id = ?", int64(id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select ticket: %w", err)
	}
	return row.toModel(), nil
}

// CloseTicket flips a Pending ticket to Closed with one conditional UPDATE.
// The row count decides the winner: 1 means this call closed it, 0 means it
// was already closed or does not exist.
func (s *SQLStore) CloseTicket(ctx context.Context, id models.ID, c models.Closure) (models.Status, error) {
	res, err := s.idb(ctx).NewUpdate().
		Model((*ticketRow)(nil)).
		Set("status = ?", string(models.StatusClosed)).
		Set("closed_at = ?", c.At.UTC()).
		Set("closed_by = ?", c.ModeratorID).
		Set("outcome = ?", string(c.Outcome)).
		Where("id = ?", int64(id)).
		Where("status = ?", string(models.StatusPending)).
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("close ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("close ticket rows affected: %w", err)
	}
	if n == 1 {
		return models.StatusPending, nil
	}

	exists, err := s.idb(ctx).NewSelect().
		Model((*ticketRow)(nil)).
		Where("t.id = ?", int64(id)).
		Exists(ctx)
	if err != nil {
		return "", fmt.Errorf("check ticket: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("ticket %d: %w", id, sentinel.ErrNotFound)
	}
	return models.StatusClosed, nil
}

func (s *SQLStore) ListDeliveries(ctx context.Context, id models.ID) ([]models.DeliveredCopy, error) {
	var rows []deliveryRow
	err := s.idb(ctx).NewSelect().
		Model(&rows).
		Where("dc.ticket_id = ?", int64(id)).
		OrderExpr("dc.delivered_at ASC, dc.moderator_id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select deliveries: %w", err)
	}
	out := make([]models.DeliveredCopy, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.DeliveredCopy{
			TicketID:    models.ID(r.TicketID),
			ModeratorID: r.ModeratorID,
			Handle:      r.Handle,
			DeliveredAt: r.DeliveredAt,
		})
	}
	return out, nil
}

func (r *ticketRow) toModel() *models.Ticket {
	return &models.Ticket{
		ID:              models.ID(r.ID),
		SubmitterID:     r.SubmitterID,
		Status:          models.Status(r.Status),
		DisclosureMode:  models.DisclosureMode(r.DisclosureMode),
		CustomSignature: r.CustomSignature,
		CreatedAt:       r.CreatedAt,
		ClosedAt:        r.ClosedAt,
		ClosedBy:        r.ClosedBy,
		Outcome:         models.Outcome(r.Outcome),
		SourceRef:       r.SourceRef,
	}
}
