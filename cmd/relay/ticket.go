package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"relay/internal/ticket/models"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/sentinel"
)

// ticketReport is the audit view printed by "ticket show".
type ticketReport struct {
	ID             int64            `yaml:"id"`
	Status         string           `yaml:"status"`
	DisclosureMode string           `yaml:"disclosure_mode"`
	Signature      string           `yaml:"signature,omitempty"`
	CreatedAt      time.Time        `yaml:"created_at"`
	ClosedAt       *time.Time       `yaml:"closed_at,omitempty"`
	ClosedBy       string           `yaml:"closed_by,omitempty"`
	Outcome        string           `yaml:"outcome,omitempty"`
	Source         string           `yaml:"source,omitempty"`
	Deliveries     []deliveryReport `yaml:"deliveries"`
	Audit          []auditReport    `yaml:"audit,omitempty"`
}

type deliveryReport struct {
	ModeratorID string    `yaml:"moderator_id"`
	Handle      string    `yaml:"handle"`
	DeliveredAt time.Time `yaml:"delivered_at"`
}

type auditReport struct {
	At      time.Time `yaml:"at"`
	Action  string    `yaml:"action"`
	ActorID string    `yaml:"actor_id,omitempty"`
	Reason  string    `yaml:"reason,omitempty"`
}

func newTicketCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Inspect tickets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a ticket, its delivered copies and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.tickets.FindTicket(ctx, id)
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "ticket "+id.String()+" not found")
			}
			if err != nil {
				return err
			}
			report := ticketReport{
				ID:             int64(t.ID),
				Status:         string(t.Status),
				DisclosureMode: string(t.DisclosureMode),
				CreatedAt:      t.CreatedAt,
				ClosedAt:       t.ClosedAt,
				ClosedBy:       t.ClosedBy,
				Outcome:        string(t.Outcome),
				Source:         t.SourceRef,
				Deliveries:     []deliveryReport{},
			}
			if t.CustomSignature != nil {
				report.Signature = *t.CustomSignature
			}

			copies, err := e.tickets.ListDeliveries(ctx, id)
			if err != nil {
				return err
			}
			for _, c := range copies {
				report.Deliveries = append(report.Deliveries, deliveryReport{
					ModeratorID: c.ModeratorID,
					Handle:      c.Handle,
					DeliveredAt: c.DeliveredAt,
				})
			}

			if e.audit != nil {
				events, err := e.audit.ListByTicket(ctx, int64(id))
				if err != nil {
					return err
				}
				for _, ev := range events {
					report.Audit = append(report.Audit, auditReport{
						At:      ev.Timestamp,
						Action:  ev.Action,
						ActorID: ev.ActorID,
						Reason:  ev.Reason,
					})
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
