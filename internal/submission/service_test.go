package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relay/internal/bot/payload"
	"relay/internal/i18n"
	"relay/internal/messenger"
	"relay/internal/messenger/messengertest"
	"relay/internal/platform/config"
	settingsmodels "relay/internal/settings/models"
	"relay/internal/submission/throttle"
	"relay/internal/ticket/models"
	ticketstore "relay/internal/ticket/store"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/audit"
	auditmemory "relay/pkg/platform/audit/store/memory"
	"relay/pkg/platform/sentinel"
)

// templateTexts renders the en catalog defaults so placeholder handling is
// exercised without a settings store.
type templateTexts struct{ catalog *i18n.Catalog }

func (t templateTexts) Render(_ context.Context, key settingsmodels.Key, replacements ...string) string {
	v := t.catalog.T(key.MessageID())
	if len(replacements)%2 != 0 {
		return v
	}
	return strings.NewReplacer(replacements...).Replace(v)
}

type syncPublisher struct{ store *auditmemory.InMemoryStore }

func (p syncPublisher) Emit(ctx context.Context, e audit.Event) error { return p.store.Append(ctx, e) }

type failingTickets struct{}

func (failingTickets) CreateTicket(context.Context, *models.Ticket) (models.ID, error) {
	return 0, errors.New("database is locked")
}

func (failingTickets) RecordDelivery(context.Context, models.DeliveredCopy) error { return nil }

type ServiceSuite struct {
	suite.Suite
	tickets *ticketstore.InMemoryStore
	rec     *messengertest.Recorder
	audit   *auditmemory.InMemoryStore
	catalog *i18n.Catalog
	texts   templateTexts
	mods    config.Moderators
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

var content = messenger.ContentRef{ChannelID: "dm-user", MessageID: "555"}

func (s *ServiceSuite) SetupTest() {
	s.tickets = ticketstore.NewInMemory()
	s.rec = messengertest.New()
	s.audit = auditmemory.NewInMemoryStore()
	s.catalog = i18n.MustNew("en")
	s.texts = templateTexts{catalog: s.catalog}
	s.mods = config.NewModerators([]string{"m1", "m2", "m3"})
	s.ctx = context.Background()

	var err error
	s.service, err = New(s.tickets, s.rec, s.texts, s.catalog, s.mods, Config{Concurrency: 2},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(syncPublisher{store: s.audit}),
		WithSubjectHasher(audit.NewHasher("test-key")),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) choose(choice payload.Choice, displayName string) (*Receipt, error) {
	return s.service.OnDisclosureChoice(s.ctx, DisclosureRequest{
		SubmitterID: "u1",
		DisplayName: displayName,
		Content:     content,
		Choice:      choice,
		Callback:    messenger.Callback{ID: "cb", Message: messenger.Handle{ChannelID: "dm-u1", MessageID: "900"}},
	})
}

func (s *ServiceSuite) TestNewRequiresModerators() {
	_, err := New(s.tickets, s.rec, s.texts, s.catalog, config.NewModerators(nil), Config{})
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *ServiceSuite) TestInboundContentPromptsSubmitter() {
	handled, err := s.service.OnInboundContent(s.ctx, "u1", content)
	s.Require().NoError(err)
	s.True(handled)

	prompts := s.rec.Prompts()
	s.Require().Len(prompts, 1)
	s.Equal("u1", prompts[0].RecipientID)
	s.Equal(s.catalog.T("setting.text.disclosure_prompt"), prompts[0].Text)
	s.Require().Len(prompts[0].Controls, 3)
	s.Equal(payload.Disclose(payload.ChoiceAnonymous, content), prompts[0].Controls[0].Payload)
	s.Equal(payload.Disclose(payload.ChoiceNamed, content), prompts[0].Controls[1].Payload)
	s.Equal(payload.Disclose(payload.ChoiceCancel, content), prompts[0].Controls[2].Payload)
	s.Empty(s.rec.Deliveries(), "nothing reaches moderators before the choice")
}

func (s *ServiceSuite) TestInboundContentFromModeratorIgnored() {
	handled, err := s.service.OnInboundContent(s.ctx, "m2", content)
	s.Require().NoError(err)
	s.False(handled)
	s.Empty(s.rec.Prompts())
}

func (s *ServiceSuite) TestAnonymousSubmission() {
	receipt, err := s.choose(payload.ChoiceAnonymous, "Ann")
	s.Require().NoError(err)
	s.Equal(3, receipt.Delivered)
	s.Zero(receipt.Failed)

	ticket, err := s.tickets.FindTicket(s.ctx, receipt.TicketID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, ticket.Status)
	s.Equal(models.DisclosureAnonymous, ticket.DisclosureMode)
	s.Nil(ticket.CustomSignature)

	copies, err := s.tickets.ListDeliveries(s.ctx, receipt.TicketID)
	s.Require().NoError(err)
	s.Len(copies, 3)

	for _, d := range s.rec.Deliveries() {
		s.Equal(content, d.Content)
		s.Require().Len(d.Controls, 2)
		s.Equal(s.catalog.T("button.approve.anonymous"), d.Controls[0].Label)
		s.Equal(payload.Approve(receipt.TicketID), d.Controls[0].Payload)
		s.Equal(payload.Reject(receipt.TicketID), d.Controls[1].Payload)
	}

	s.Equal([]string{s.catalog.T("setting.text.sent_to_moderation")}, s.rec.TextsTo("u1"))
	s.Equal([]string{""}, s.rec.StrippedNotes(messenger.Handle{ChannelID: "dm-u1", MessageID: "900"}), "prompt buttons removed")
	s.Len(s.rec.Answers(), 1)
	s.Contains(s.audit.Actions(), string(audit.EventTicketCreated))
}

func (s *ServiceSuite) TestNamedSubmissionEscapesName() {
	receipt, err := s.choose(payload.ChoiceNamed, "  *Ann*_ ")
	s.Require().NoError(err)

	ticket, err := s.tickets.FindTicket(s.ctx, receipt.TicketID)
	s.Require().NoError(err)
	s.Equal(models.DisclosureNamed, ticket.DisclosureMode)
	s.Require().NotNil(ticket.CustomSignature)
	s.Equal(`Author: \*Ann\*\_`, *ticket.CustomSignature)

	d, ok := s.rec.DeliveryTo("m1")
	s.Require().True(ok)
	s.Equal(s.catalog.T("button.approve.named"), d.Controls[0].Label)
}

func (s *ServiceSuite) TestCancelCreatesNothing() {
	receipt, err := s.choose(payload.ChoiceCancel, "Ann")
	s.Require().NoError(err)
	s.True(receipt.Cancelled)

	_, err = s.tickets.FindTicket(s.ctx, 1)
	s.Error(err, "no ticket was created")
	s.Empty(s.rec.Deliveries())
	s.Equal([]string{s.catalog.T("setting.text.submission_cancelled")}, s.rec.TextsTo("u1"))
	s.Equal([]string{string(audit.EventSubmissionCancelled)}, s.audit.Actions())
}

func (s *ServiceSuite) TestPartialDeliveryFailure() {
	s.rec.FailDeliveriesTo("m2")

	receipt, err := s.choose(payload.ChoiceAnonymous, "")
	s.Require().NoError(err)
	s.Equal(2, receipt.Delivered)
	s.Equal(1, receipt.Failed)

	copies, err := s.tickets.ListDeliveries(s.ctx, receipt.TicketID)
	s.Require().NoError(err)
	s.Len(copies, 2)
	for _, c := range copies {
		s.NotEqual("m2", c.ModeratorID)
	}
	s.Equal([]string{s.catalog.T("setting.text.sent_to_moderation")}, s.rec.TextsTo("u1"))
}

func (s *ServiceSuite) TestAllDeliveriesFail() {
	s.rec.FailDeliveriesTo("m1", "m2", "m3")

	receipt, err := s.choose(payload.ChoiceAnonymous, "")
	s.Require().NoError(err)
	s.Zero(receipt.Delivered)

	ticket, err := s.tickets.FindTicket(s.ctx, receipt.TicketID)
	s.Require().NoError(err, "ticket kept for the audit trail")
	s.Equal(models.StatusPending, ticket.Status)
	s.Equal([]string{s.catalog.T("setting.text.moderation_error")}, s.rec.TextsTo("u1"))
	s.Contains(s.audit.Actions(), string(audit.EventTicketUndelivered))
}

func (s *ServiceSuite) TestCreateTicketFailure() {
	svc, err := New(failingTickets{}, s.rec, s.texts, s.catalog, s.mods, Config{})
	s.Require().NoError(err)

	_, err = svc.OnDisclosureChoice(s.ctx, DisclosureRequest{SubmitterID: "u1", Content: content, Choice: payload.ChoiceAnonymous})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Empty(s.rec.Deliveries())
	s.Equal([]string{s.catalog.T("setting.text.moderation_error")}, s.rec.TextsTo("u1"))
}

func (s *ServiceSuite) TestUnknownChoice() {
	_, err := s.choose(payload.Choice("maybe"), "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestTicketIDsIncrease() {
	var last models.ID
	for i := 0; i < 3; i++ {
		receipt, err := s.service.OnDisclosureChoice(s.ctx, DisclosureRequest{
			SubmitterID: "u1",
			Content:     messenger.ContentRef{ChannelID: "dm-user", MessageID: fmt.Sprintf("%d", 600+i)},
			Choice:      payload.ChoiceAnonymous,
		})
		s.Require().NoError(err, fmt.Sprintf("submission %d", i))
		s.Greater(receipt.TicketID, last)
		last = receipt.TicketID
	}
}

func (s *ServiceSuite) TestRepeatedChoiceOnSameContentCreatesNothing() {
	first, err := s.choose(payload.ChoiceAnonymous, "Ann")
	s.Require().NoError(err)
	s.Require().Equal(3, first.Delivered)

	again, err := s.choose(payload.ChoiceNamed, "Ann")
	s.Require().NoError(err)
	s.True(again.Duplicate)
	s.Zero(again.TicketID)
	s.Zero(again.Delivered)

	_, err = s.tickets.FindTicket(s.ctx, first.TicketID+1)
	s.ErrorIs(err, sentinel.ErrNotFound, "no second ticket")
	s.Len(s.rec.Deliveries(), 3, "moderators received the content once")
	s.Equal([]string{s.catalog.T("setting.text.sent_to_moderation")}, s.rec.TextsTo("u1"))
	s.Len(s.rec.Answers(), 2, "both presses are acknowledged")

	created := 0
	for _, action := range s.audit.Actions() {
		if action == string(audit.EventTicketCreated) {
			created++
		}
	}
	s.Equal(1, created)
}

type brokenThrottle struct{}

func (brokenThrottle) Allow(context.Context, string, int, time.Duration) (*throttle.Result, error) {
	return nil, errors.New("redis down")
}

func (s *ServiceSuite) withThrottle(t Throttle, limit int) {
	var err error
	s.service, err = New(s.tickets, s.rec, s.texts, s.catalog, s.mods, Config{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithThrottle(t, limit, time.Minute),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestThrottledSubmitterIsNotPrompted() {
	s.withThrottle(throttle.NewInMemory(), 2)

	for i := 0; i < 3; i++ {
		handled, err := s.service.OnInboundContent(s.ctx, "u1", content)
		s.Require().NoError(err)
		s.True(handled)
	}
	s.Len(s.rec.Prompts(), 2)
	s.Equal([]string{s.catalog.T("submission.throttled")}, s.rec.TextsTo("u1"))

	_, err := s.service.OnInboundContent(s.ctx, "u2", content)
	s.Require().NoError(err)
	s.Len(s.rec.Prompts(), 3, "other submitters keep their own window")
}

func (s *ServiceSuite) TestThrottleFailsOpen() {
	s.withThrottle(brokenThrottle{}, 1)

	_, err := s.service.OnInboundContent(s.ctx, "u1", content)
	s.Require().NoError(err)
	s.Len(s.rec.Prompts(), 1)
}
