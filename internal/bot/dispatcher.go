// Package bot routes inbound platform events to the relay components.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"relay/internal/bot/payload"
	"relay/internal/decision"
	"relay/internal/messenger"
	"relay/internal/platform/metrics"
	settingsmodels "relay/internal/settings/models"
	"relay/internal/submission"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/requestcontext"
)

const (
	CommandStart    = "start"
	CommandSettings = "settings"
)

type Decider interface {
	Resolve(ctx context.Context, req decision.Request) (*decision.Outcome, error)
}

type Submitter interface {
	OnInboundContent(ctx context.Context, submitterID string, content messenger.ContentRef) (bool, error)
	OnDisclosureChoice(ctx context.Context, req submission.DisclosureRequest) (*submission.Receipt, error)
}

type Editor interface {
	Menu(ctx context.Context, moderatorID string) error
	Begin(ctx context.Context, moderatorID string, key settingsmodels.Key) error
	HandleText(ctx context.Context, moderatorID, text string) (bool, error)
	Cancel(ctx context.Context, moderatorID string) (bool, error)
}

type Texts interface {
	Render(ctx context.Context, key settingsmodels.Key, replacements ...string) string
}

type Catalog interface {
	T(messageID string) string
}

type Moderators interface {
	Contains(id string) bool
}

// Dispatcher is a messenger.Handler. It is safe for concurrent use; each
// event is handled independently.
type Dispatcher struct {
	decisions   Decider
	submissions Submitter
	editor      Editor
	messenger   messenger.Messenger
	texts       Texts
	catalog     Catalog
	moderators  Moderators

	publishChannelID string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Deps groups the dispatcher's collaborators.
type Deps struct {
	Decisions        Decider
	Submissions      Submitter
	Editor           Editor
	Messenger        messenger.Messenger
	Texts            Texts
	Catalog          Catalog
	Moderators       Moderators
	PublishChannelID string
}

func New(deps Deps, opts ...Option) (*Dispatcher, error) {
	if deps.Decisions == nil || deps.Submissions == nil || deps.Editor == nil {
		return nil, errors.New("decision, submission and editor services are required")
	}
	if deps.Messenger == nil || deps.Texts == nil || deps.Catalog == nil || deps.Moderators == nil {
		return nil, errors.New("messenger, texts, catalog and moderators are required")
	}
	d := &Dispatcher{
		decisions:        deps.Decisions,
		submissions:      deps.Submissions,
		editor:           deps.Editor,
		messenger:        deps.Messenger,
		texts:            deps.Texts,
		catalog:          deps.Catalog,
		moderators:       deps.Moderators,
		publishChannelID: deps.PublishChannelID,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

var _ messenger.Handler = (*Dispatcher)(nil)

// HandleEvent handles one inbound event. Failures are logged and counted;
// a panic in a handler is recovered so the event loop keeps running.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev messenger.Event) {
	ctx = requestcontext.WithEventID(ctx, ev.ID)
	ctx = requestcontext.WithActorID(ctx, ev.UserID)
	kind := string(ev.Kind)

	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncrementFailure(kind)
			d.logger.ErrorContext(ctx, "event handler panicked",
				"event_id", ev.ID,
				"kind", kind,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	var err error
	switch ev.Kind {
	case messenger.KindCommand:
		err = d.onCommand(ctx, ev)
	case messenger.KindText:
		err = d.onText(ctx, ev)
	case messenger.KindContent:
		_, err = d.submissions.OnInboundContent(ctx, ev.UserID, ev.Content)
	case messenger.KindCallback:
		err = d.onCallback(ctx, ev)
	default:
		d.logger.DebugContext(ctx, "ignoring event", "event_id", ev.ID, "kind", kind)
		return
	}

	d.metrics.IncrementHandled(kind)
	if err != nil {
		d.metrics.IncrementFailure(kind)
		d.logger.ErrorContext(ctx, "event handler failed",
			"event_id", ev.ID,
			"kind", kind,
			"user_id", ev.UserID,
			"code", string(dErrors.CodeOf(err)),
			"error", err,
		)
	}
}

func (d *Dispatcher) isModerator(userID string) bool {
	return d.moderators.Contains(userID)
}

func (d *Dispatcher) onCommand(ctx context.Context, ev messenger.Event) error {
	switch ev.Command {
	case CommandStart:
		if d.isModerator(ev.UserID) {
			return d.messenger.SendText(ctx, ev.UserID,
				d.texts.Render(ctx, settingsmodels.KeyGreetingAdmin, settingsmodels.PlaceholderChannelID, d.publishChannelID))
		}
		return d.messenger.SendText(ctx, ev.UserID, d.texts.Render(ctx, settingsmodels.KeyGreetingUser))
	case CommandSettings:
		if !d.isModerator(ev.UserID) {
			return d.messenger.SendText(ctx, ev.UserID, d.catalog.T("error.forbidden"))
		}
		return d.editor.Menu(ctx, ev.UserID)
	default:
		return d.onText(ctx, ev)
	}
}

// onText gives a moderator's text to the setting editor; anyone else's
// text is a submission.
func (d *Dispatcher) onText(ctx context.Context, ev messenger.Event) error {
	if !d.isModerator(ev.UserID) {
		_, err := d.submissions.OnInboundContent(ctx, ev.UserID, ev.Content)
		return err
	}
	consumed, err := d.editor.HandleText(ctx, ev.UserID, ev.Text)
	if err != nil {
		d.notify(ctx, ev.UserID, err)
		return err
	}
	if !consumed {
		d.logger.DebugContext(ctx, "moderator text outside an edit session ignored", "user_id", ev.UserID)
	}
	return nil
}

func (d *Dispatcher) onCallback(ctx context.Context, ev messenger.Event) error {
	cb := ev.Callback
	p, err := payload.Parse(cb.Payload)
	if err != nil {
		d.answer(ctx, cb, "", false)
		return err
	}

	switch p.Kind {
	case payload.KindDecision:
		if !d.isModerator(ev.UserID) {
			d.answer(ctx, cb, d.catalog.T("error.forbidden"), true)
			return nil
		}
		_, err := d.decisions.Resolve(ctx, decision.Request{
			TicketID:    p.TicketID,
			Action:      decision.Action(p.Action),
			ModeratorID: ev.UserID,
			Copy:        cb.Message,
			Callback:    cb,
		})
		return err

	case payload.KindDisclosure:
		_, err := d.submissions.OnDisclosureChoice(ctx, submission.DisclosureRequest{
			SubmitterID: ev.UserID,
			DisplayName: ev.DisplayName,
			Content:     p.Content,
			Choice:      p.Choice,
			Callback:    cb,
		})
		return err

	case payload.KindSettingsEdit:
		if !d.isModerator(ev.UserID) {
			d.answer(ctx, cb, d.catalog.T("error.forbidden"), true)
			return nil
		}
		d.answer(ctx, cb, "", false)
		if err := d.editor.Begin(ctx, ev.UserID, p.Key); err != nil {
			d.notify(ctx, ev.UserID, err)
			return err
		}
		return nil

	case payload.KindSettingsCancel:
		if !d.isModerator(ev.UserID) {
			d.answer(ctx, cb, d.catalog.T("error.forbidden"), true)
			return nil
		}
		d.answer(ctx, cb, "", false)
		if !cb.Message.IsZero() {
			if err := d.messenger.StripControls(ctx, cb.Message, ""); err != nil {
				d.logger.WarnContext(ctx, "failed to remove edit prompt controls", "error", err)
			}
		}
		_, err := d.editor.Cancel(ctx, ev.UserID)
		return err
	}
	return nil
}

// notify tells the actor what went wrong. Only validation messages are
// shown verbatim.
func (d *Dispatcher) notify(ctx context.Context, userID string, err error) {
	text := dErrors.UserMessage(err, d.catalog.T("error.internal"))
	if serr := d.messenger.SendText(ctx, userID, text); serr != nil {
		d.logger.WarnContext(ctx, "failed to notify user", "user_id", userID, "error", serr)
	}
}

func (d *Dispatcher) answer(ctx context.Context, cb messenger.Callback, text string, alert bool) {
	if err := d.messenger.Answer(ctx, cb, text, alert); err != nil {
		d.logger.WarnContext(ctx, "failed to answer callback", "callback_id", cb.ID, "error", err)
	}
}
