// Package submission turns inbound content into tickets and fans each
// ticket out to every moderator.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"relay/internal/bot/payload"
	"relay/internal/messenger"
	settingsmodels "relay/internal/settings/models"
	"relay/internal/submission/metrics"
	"relay/internal/submission/throttle"
	"relay/internal/ticket/models"
	"relay/pkg/attrs"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/audit"
	"relay/pkg/platform/sentinel"
	"relay/pkg/requestcontext"
)

const defaultConcurrency = 8

var tracer = otel.Tracer("relay/internal/submission")

type TicketStore interface {
	CreateTicket(ctx context.Context, t *models.Ticket) (models.ID, error)
	RecordDelivery(ctx context.Context, c models.DeliveredCopy) error
}

type Texts interface {
	Render(ctx context.Context, key settingsmodels.Key, replacements ...string) string
}

type Catalog interface {
	T(messageID string) string
}

// Moderators is the static allow-list.
type Moderators interface {
	Contains(id string) bool
	IDs() []string
}

// Throttle counts submissions per submitter in a sliding window.
type Throttle interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*throttle.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Choice is a submitter's answer to the disclosure prompt.
type Choice = payload.Choice

// DisclosureRequest is a press on one of the disclosure prompt buttons.
type DisclosureRequest struct {
	SubmitterID string
	DisplayName string
	Content     messenger.ContentRef
	Choice      Choice
	Callback    messenger.Callback
}

// Receipt summarises one submission.
type Receipt struct {
	TicketID  models.ID
	Delivered int
	Failed    int
	Cancelled bool
	// Duplicate is set when the content was already submitted from an
	// earlier press on the same prompt.
	Duplicate bool
}

type Config struct {
	Concurrency int
}

type Service struct {
	tickets    TicketStore
	messenger  messenger.Messenger
	texts      Texts
	catalog    Catalog
	moderators Moderators

	concurrency int

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	hasher         *audit.Hasher

	throttle       Throttle
	throttleLimit  int
	throttleWindow time.Duration
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithSubjectHasher(h *audit.Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// WithThrottle limits each submitter to limit prompts per window. A
// non-positive limit disables throttling.
func WithThrottle(t Throttle, limit int, window time.Duration) Option {
	return func(s *Service) {
		s.throttle = t
		s.throttleLimit = limit
		s.throttleWindow = window
	}
}

// New validates the collaborators. An empty moderator list is a
// configuration error: submissions would have nowhere to go.
func New(tickets TicketStore, m messenger.Messenger, texts Texts, catalog Catalog, moderators Moderators, cfg Config, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, errors.New("ticket store is required")
	}
	if m == nil {
		return nil, errors.New("messenger is required")
	}
	if texts == nil || catalog == nil {
		return nil, errors.New("texts and catalog are required")
	}
	if moderators == nil || len(moderators.IDs()) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "at least one moderator is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	s := &Service{
		tickets:     tickets,
		messenger:   m,
		texts:       texts,
		catalog:     catalog,
		moderators:  moderators,
		concurrency: cfg.Concurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnInboundContent asks a submitter how their content should be signed.
// Content from moderators is ignored and reported as not handled.
func (s *Service) OnInboundContent(ctx context.Context, submitterID string, content messenger.ContentRef) (bool, error) {
	if s.moderators.Contains(submitterID) {
		return false, nil
	}
	if !s.allow(ctx, submitterID) {
		s.metrics.IncrementThrottled()
		s.sendText(ctx, submitterID, s.catalog.T("submission.throttled"))
		return true, nil
	}
	controls := []messenger.Button{
		{Label: s.catalog.T("button.disclose.anonymous"), Payload: payload.Disclose(payload.ChoiceAnonymous, content), Style: messenger.StylePrimary},
		{Label: s.catalog.T("button.disclose.named"), Payload: payload.Disclose(payload.ChoiceNamed, content), Style: messenger.StyleSecondary},
		{Label: s.catalog.T("button.disclose.cancel"), Payload: payload.Disclose(payload.ChoiceCancel, content), Style: messenger.StyleDanger},
	}
	if _, err := s.messenger.Prompt(ctx, submitterID, s.texts.Render(ctx, settingsmodels.KeyDisclosurePrompt), controls); err != nil {
		return true, fmt.Errorf("prompt submitter for disclosure: %w", err)
	}
	return true, nil
}

// allow fails open: a broken throttle store must not block submissions.
func (s *Service) allow(ctx context.Context, submitterID string) bool {
	if s.throttle == nil || s.throttleLimit <= 0 {
		return true
	}
	res, err := s.throttle.Allow(ctx, submitterID, s.throttleLimit, s.throttleWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "submission throttle unavailable", "error", err)
		return true
	}
	if !res.Allowed {
		s.logger.InfoContext(ctx, "submission throttled",
			"subject", s.hasher.Hash(submitterID),
			"reset_at", res.ResetAt,
		)
	}
	return res.Allowed
}

// OnDisclosureChoice creates the ticket for the chosen disclosure mode and
// delivers it to every moderator. A cancelled prompt creates nothing, and so
// does any press after the first one that created a ticket for the content.
func (s *Service) OnDisclosureChoice(ctx context.Context, req DisclosureRequest) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "submission.disclosure_choice", trace.WithAttributes(
		attribute.String("submission.choice", string(req.Choice)),
	))
	defer span.End()

	if !req.Choice.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown disclosure choice %q", req.Choice))
	}
	s.answer(ctx, req.Callback)
	subject := s.hasher.Hash(req.SubmitterID)

	if req.Choice == payload.ChoiceCancel {
		s.removePrompt(ctx, req.Callback.Message)
		s.sendText(ctx, req.SubmitterID, s.texts.Render(ctx, settingsmodels.KeySubmissionCancelled))
		s.metrics.IncrementSubmission(string(payload.ChoiceCancel))
		s.logAudit(ctx, string(audit.EventSubmissionCancelled), 0, "subject", subject)
		return &Receipt{Cancelled: true}, nil
	}

	mode, signature := s.disclosure(ctx, req)
	ticket, err := models.NewTicket(req.SubmitterID, mode, signature, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if !req.Content.IsZero() {
		ticket.SourceRef = req.Content.String()
	}
	id, err := s.tickets.CreateTicket(ctx, ticket)
	if errors.Is(err, sentinel.ErrConflict) {
		s.logger.InfoContext(ctx, "content already submitted, ignoring press",
			"subject", subject,
			"choice", string(req.Choice),
		)
		s.metrics.IncrementDuplicate()
		s.removePrompt(ctx, req.Callback.Message)
		return &Receipt{Duplicate: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create ticket")
		s.logger.ErrorContext(ctx, "failed to create ticket", "error", err)
		s.sendText(ctx, req.SubmitterID, s.texts.Render(ctx, settingsmodels.KeyModerationError))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ticket")
	}
	span.SetAttributes(attribute.Int64("ticket.id", int64(id)))
	s.metrics.IncrementSubmission(string(req.Choice))
	s.logAudit(ctx, string(audit.EventTicketCreated), id,
		"subject", subject,
		"reason", string(mode),
	)

	s.removePrompt(ctx, req.Callback.Message)

	receipt := s.fanOut(ctx, id, req.Content, mode)
	s.metrics.ObserveFanout(receipt.Delivered, receipt.Failed)
	span.SetAttributes(
		attribute.Int("fanout.delivered", receipt.Delivered),
		attribute.Int("fanout.failed", receipt.Failed),
	)

	if receipt.Delivered > 0 {
		s.sendText(ctx, req.SubmitterID, s.texts.Render(ctx, settingsmodels.KeySentToModeration))
	} else {
		s.logAudit(ctx, string(audit.EventTicketUndelivered), id, "subject", subject)
		s.sendText(ctx, req.SubmitterID, s.texts.Render(ctx, settingsmodels.KeyModerationError))
	}
	return receipt, nil
}

func (s *Service) disclosure(ctx context.Context, req DisclosureRequest) (models.DisclosureMode, *string) {
	if req.Choice != payload.ChoiceNamed {
		return models.DisclosureAnonymous, nil
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.SubmitterID
	}
	sig := s.texts.Render(ctx, settingsmodels.KeyNamedSignature, settingsmodels.PlaceholderName, s.messenger.Escape(name))
	return models.DisclosureNamed, &sig
}

// decisionControls builds the moderator keyboard. The approve label says
// how the post will be signed.
func (s *Service) decisionControls(id models.ID, mode models.DisclosureMode) []messenger.Button {
	approve := s.catalog.T("button.approve.anonymous")
	if mode == models.DisclosureNamed {
		approve = s.catalog.T("button.approve.named")
	}
	return []messenger.Button{
		{Label: approve, Payload: payload.Approve(id), Style: messenger.StyleSuccess},
		{Label: s.catalog.T("button.reject"), Payload: payload.Reject(id), Style: messenger.StyleDanger},
	}
}

// fanOut delivers the content to every moderator concurrently up to the
// configured limit. Per-moderator failures are logged and counted.
func (s *Service) fanOut(ctx context.Context, id models.ID, content messenger.ContentRef, mode models.DisclosureMode) *Receipt {
	controls := s.decisionControls(id, mode)
	var delivered, failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, moderatorID := range s.moderators.IDs() {
		moderatorID := moderatorID
		g.Go(func() error {
			h, err := s.messenger.Deliver(ctx, moderatorID, content, controls)
			if err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "failed to deliver ticket to moderator",
					"ticket_id", id.String(),
					"moderator_id", moderatorID,
					"error", err,
				)
				return nil
			}
			delivered.Add(1)
			err = s.tickets.RecordDelivery(ctx, models.DeliveredCopy{
				TicketID:    id,
				ModeratorID: moderatorID,
				Handle:      h.String(),
				DeliveredAt: requestcontext.Now(ctx),
			})
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to record delivery, copy will not be invalidated",
					"ticket_id", id.String(),
					"moderator_id", moderatorID,
					"handle", h.String(),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return &Receipt{TicketID: id, Delivered: int(delivered.Load()), Failed: int(failed.Load())}
}

func (s *Service) answer(ctx context.Context, cb messenger.Callback) {
	if cb.ID == "" {
		return
	}
	if err := s.messenger.Answer(ctx, cb, "", false); err != nil {
		s.logger.WarnContext(ctx, "failed to answer callback", "callback_id", cb.ID, "error", err)
	}
}

func (s *Service) removePrompt(ctx context.Context, prompt messenger.Handle) {
	if prompt.IsZero() {
		return
	}
	if err := s.messenger.StripControls(ctx, prompt, ""); err != nil {
		s.logger.WarnContext(ctx, "failed to remove disclosure prompt", "handle", prompt.String(), "error", err)
	}
}

func (s *Service) sendText(ctx context.Context, recipientID, text string) {
	if err := s.messenger.SendText(ctx, recipientID, text); err != nil {
		s.logger.WarnContext(ctx, "failed to send text", "recipient_id", recipientID, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, ticketID models.ID, attributes ...any) {
	if eventID := requestcontext.EventID(ctx); eventID != "" {
		attributes = append(attributes, "event_id", eventID)
	}
	args := attributes
	if ticketID != 0 {
		args = append([]any{"ticket_id", ticketID.String()}, args...)
	}
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
		Subject:  attrs.ExtractString(attributes, "subject"),
		Reason:   attrs.ExtractString(attributes, "reason"),
		EventID:  requestcontext.EventID(ctx),
	})
}
