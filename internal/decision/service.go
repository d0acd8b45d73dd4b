// Package decision resolves moderator decisions on tickets. The first
// moderator to act on a ticket wins; every later press on any copy of the
// same ticket is answered as already processed.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"relay/internal/decision/metrics"
	"relay/internal/decision/ports"
	"relay/internal/messenger"
	settingsmodels "relay/internal/settings/models"
	"relay/internal/ticket/models"
	"relay/pkg/attrs"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/audit"
	"relay/pkg/requestcontext"
)

const defaultConcurrency = 8

var tracer = otel.Tracer("relay/internal/decision")

// Request is one button press on a delivered copy.
type Request struct {
	TicketID    models.ID
	Action      Action
	ModeratorID string
	// Copy is the moderator's delivered message the button belongs to.
	Copy     messenger.Handle
	Callback messenger.Callback
}

type Outcome struct {
	Result               Result
	PublishFailed        bool
	Invalidated          int
	InvalidationFailures int
}

type Config struct {
	PublishChannelID string
	Concurrency      int
}

type Service struct {
	tickets   ports.TicketStore
	messenger messenger.Messenger
	texts     ports.Texts
	catalog   ports.Catalog

	publishChannelID string
	concurrency      int

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPort
	hasher         *audit.Hasher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPort) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithSubjectHasher hashes submitter IDs before they reach the audit trail.
func WithSubjectHasher(h *audit.Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func New(tickets ports.TicketStore, m messenger.Messenger, texts ports.Texts, catalog ports.Catalog, cfg Config, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, errors.New("ticket store is required")
	}
	if m == nil {
		return nil, errors.New("messenger is required")
	}
	if texts == nil || catalog == nil {
		return nil, errors.New("texts and catalog are required")
	}
	if cfg.PublishChannelID == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "publish channel is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	s := &Service{
		tickets:          tickets,
		messenger:        m,
		texts:            texts,
		catalog:          catalog,
		publishChannelID: cfg.PublishChannelID,
		concurrency:      cfg.Concurrency,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resolve applies a moderator's decision. Only a storage failure while
// closing the ticket is returned as an error; delivery problems after a
// win are logged and reported in the Outcome.
func (s *Service) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "decision.resolve", trace.WithAttributes(
		attribute.Int64("ticket.id", int64(req.TicketID)),
		attribute.String("decision.action", string(req.Action)),
	))
	defer span.End()
	defer func() { s.metrics.ObserveResolveLatency(time.Since(start)) }()

	outcome, err := req.Action.Outcome()
	if err != nil {
		return nil, err
	}

	previous, err := s.tickets.CloseTicket(ctx, req.TicketID, models.Closure{
		ModeratorID: req.ModeratorID,
		Outcome:     outcome,
		At:          requestcontext.Now(ctx),
	})
	duplicate, err := classify(previous, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close ticket")
		s.logger.ErrorContext(ctx, "failed to close ticket",
			"ticket_id", req.TicketID.String(),
			"moderator_id", req.ModeratorID,
			"error", err,
		)
		s.answer(ctx, req.Callback, s.catalog.T("error.internal"), true)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close ticket")
	}

	if duplicate {
		span.SetAttributes(attribute.String("decision.result", string(ResultDuplicate)))
		return s.resolveDuplicate(ctx, req), nil
	}
	res := s.resolveWin(ctx, req, outcome)
	span.SetAttributes(
		attribute.String("decision.result", string(res.Result)),
		attribute.Int("decision.invalidated", res.Invalidated),
	)
	return res, nil
}

// resolveDuplicate tells the moderator the ticket is already decided and
// clears the controls of their own copy only.
func (s *Service) resolveDuplicate(ctx context.Context, req Request) *Outcome {
	s.answer(ctx, req.Callback, s.texts.Render(ctx, settingsmodels.KeyAlreadyProcessed), true)
	if err := s.messenger.StripControls(ctx, req.Copy, ""); err != nil {
		s.logger.WarnContext(ctx, "failed to clear controls of duplicate copy",
			"ticket_id", req.TicketID.String(),
			"moderator_id", req.ModeratorID,
			"error", err,
		)
	}
	s.metrics.IncrementOutcome(string(ResultDuplicate))
	s.logAudit(ctx, string(audit.EventDuplicateDecision), req.TicketID,
		"moderator_id", req.ModeratorID,
		"reason", string(req.Action),
	)
	return &Outcome{Result: ResultDuplicate}
}

func (s *Service) resolveWin(ctx context.Context, req Request, outcome models.Outcome) *Outcome {
	res := &Outcome{Result: resultFor(outcome)}
	texts := textsFor(outcome)

	ticket, err := s.tickets.GetTicketForDecision(ctx, req.TicketID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load closed ticket",
			"ticket_id", req.TicketID.String(),
			"error", err,
		)
	}
	subject := ""
	if ticket != nil {
		subject = s.hasher.Hash(ticket.SubmitterID)
	}

	if outcome == models.OutcomeApproved {
		if err := s.publish(ctx, req, ticket); err != nil {
			res.PublishFailed = true
			s.metrics.IncrementPublishFailure()
			s.logger.ErrorContext(ctx, "failed to publish approved ticket",
				"ticket_id", req.TicketID.String(),
				"moderator_id", req.ModeratorID,
				"error", err,
			)
			s.logAudit(ctx, string(audit.EventPublishFailed), req.TicketID,
				"moderator_id", req.ModeratorID,
				"subject", subject,
				"reason", err.Error(),
			)
		}
	}

	if res.PublishFailed {
		s.answer(ctx, req.Callback, s.catalog.T("decision.publish_failed"), true)
	} else {
		s.answer(ctx, req.Callback, s.texts.Render(ctx, texts.alert), false)
	}

	res.Invalidated, res.InvalidationFailures = s.invalidate(ctx, req, s.texts.Render(ctx, texts.log))
	s.metrics.AddInvalidationFailures(res.InvalidationFailures)

	if !res.PublishFailed {
		if err := s.messenger.SendText(ctx, req.ModeratorID, s.texts.Render(ctx, texts.reply)); err != nil {
			s.logger.WarnContext(ctx, "failed to send decision reply",
				"ticket_id", req.TicketID.String(),
				"moderator_id", req.ModeratorID,
				"error", err,
			)
		}
	}

	event := audit.EventTicketRejected
	if outcome == models.OutcomeApproved {
		event = audit.EventTicketApproved
	}
	s.metrics.IncrementOutcome(string(res.Result))
	s.logAudit(ctx, string(event), req.TicketID,
		"moderator_id", req.ModeratorID,
		"subject", subject,
	)
	return res
}

func (s *Service) publish(ctx context.Context, req Request, ticket *models.Ticket) error {
	if ticket == nil {
		return errors.New("ticket unavailable, signature unknown")
	}
	signature := ticket.Signature(s.texts.Render(ctx, settingsmodels.KeyDefaultSignature))
	return s.messenger.Publish(ctx, s.publishChannelID, req.Copy, signature)
}

// invalidate strips the controls from every delivered copy of the ticket
// and appends note. Copies are processed concurrently up to the configured
// limit; a failing copy is logged and counted, never aborting the rest.
func (s *Service) invalidate(ctx context.Context, req Request, note string) (invalidated, failed int) {
	handles := []messenger.Handle{req.Copy}
	copies, err := s.tickets.ListDeliveries(ctx, req.TicketID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list deliveries, clearing acting copy only",
			"ticket_id", req.TicketID.String(),
			"error", err,
		)
	}
	var bad int
	for _, c := range copies {
		h, err := messenger.ParseHandle(c.Handle)
		if err != nil {
			s.logger.WarnContext(ctx, "stored delivery handle is malformed",
				"ticket_id", req.TicketID.String(),
				"moderator_id", c.ModeratorID,
				"error", err,
			)
			bad++
			continue
		}
		if h != req.Copy {
			handles = append(handles, h)
		}
	}

	var ok, fail atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if err := s.messenger.StripControls(ctx, h, note); err != nil {
				fail.Add(1)
				s.logger.WarnContext(ctx, "failed to invalidate copy",
					"ticket_id", req.TicketID.String(),
					"handle", h.String(),
					"error", err,
				)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(fail.Load()) + bad
}

func (s *Service) answer(ctx context.Context, cb messenger.Callback, text string, alert bool) {
	if err := s.messenger.Answer(ctx, cb, text, alert); err != nil {
		s.logger.WarnContext(ctx, "failed to answer callback", "callback_id", cb.ID, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, ticketID models.ID, attributes ...any) {
	if eventID := requestcontext.EventID(ctx); eventID != "" {
		attributes = append(attributes, "event_id", eventID)
	}
	args := append([]any{"ticket_id", ticketID.String()}, attributes...)
	args = append(args, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:   event,
		TicketID: int64(ticketID),
		ActorID:  attrs.ExtractString(attributes, "moderator_id"),
		Subject:  attrs.ExtractString(attributes, "subject"),
		Reason:   attrs.ExtractString(attributes, "reason"),
		EventID:  requestcontext.EventID(ctx),
	})
}
