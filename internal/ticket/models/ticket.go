package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "relay/pkg/domain-errors"
)

// ID identifies a ticket. IDs are assigned by the store and increase
// monotonically.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal ticket ID as found in button payloads and CLI
// arguments.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid ticket id %q", s))
	}
	return ID(n), nil
}

type Status string

const (
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

type DisclosureMode string

const (
	DisclosureAnonymous DisclosureMode = "anonymous"
	DisclosureNamed     DisclosureMode = "named"
)

func (m DisclosureMode) IsValid() bool {
	return m == DisclosureAnonymous || m == DisclosureNamed
}

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) IsValid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// Ticket is one submission under moderation.
//
// Invariants:
//   - Status moves Pending → Closed exactly once and never back
//   - CustomSignature is set iff DisclosureMode is Named
//   - ClosedAt, ClosedBy and Outcome are set iff Status is Closed
//   - SourceRef, when set, names at most one ticket
type Ticket struct {
	ID              ID             `json:"id"`
	SubmitterID     string         `json:"submitter_id"`
	Status          Status         `json:"status"`
	DisclosureMode  DisclosureMode `json:"disclosure_mode"`
	CustomSignature *string        `json:"custom_signature,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
	ClosedBy        string         `json:"closed_by,omitempty"`
	Outcome         Outcome        `json:"outcome,omitempty"`
	SourceRef       string         `json:"source_ref,omitempty"`
}

// NewTicket builds a Pending ticket. The ID is assigned by the store.
func NewTicket(submitterID string, mode DisclosureMode, signature *string, now time.Time) (*Ticket, error) {
	if strings.TrimSpace(submitterID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "submitter id is required")
	}
	switch mode {
	case DisclosureAnonymous:
		if signature != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "anonymous ticket cannot carry a signature")
		}
	case DisclosureNamed:
		if signature == nil || strings.TrimSpace(*signature) == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "named ticket requires a signature")
		}
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown disclosure mode %q", mode))
	}
	return &Ticket{
		SubmitterID:     submitterID,
		Status:          StatusPending,
		DisclosureMode:  mode,
		CustomSignature: signature,
		CreatedAt:       now,
	}, nil
}

func (t *Ticket) IsPending() bool {
	return t.Status == StatusPending
}

// Signature returns the custom signature, or fallback for anonymous tickets.
func (t *Ticket) Signature(fallback string) string {
	if t.CustomSignature != nil {
		return *t.CustomSignature
	}
	return fallback
}

// ApplyClosure transitions a Pending ticket to Closed. Stores call it while
// holding whatever guards the status so the check and the write are atomic.
func (t *Ticket) ApplyClosure(c Closure) error {
	if t.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "ticket is already closed")
	}
	at := c.At
	t.Status = StatusClosed
	t.ClosedAt = &at
	t.ClosedBy = c.ModeratorID
	t.Outcome = c.Outcome
	return nil
}

// Closure describes the winning decision written when a ticket closes.
type Closure struct {
	ModeratorID string
	Outcome     Outcome
	At          time.Time
}

// DeliveredCopy records that a moderator received a ticket. Handle is the
// transport's opaque reference to the delivered message.
type DeliveredCopy struct {
	TicketID    ID        `json:"ticket_id"`
	ModeratorID string    `json:"moderator_id"`
	Handle      string    `json:"handle"`
	DeliveredAt time.Time `json:"delivered_at"`
}
