// Package edit runs the moderator's setting editor:
//
//	Idle --Begin(key)--> AwaitingText --HandleText(valid)--> Idle
//	                      AwaitingText --HandleText(empty)--> AwaitingText
//	                      AwaitingText --Cancel--> Idle
//
// Starting a new edit while one is pending replaces it.
package edit

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"relay/internal/bot/payload"
	"relay/internal/messenger"
	"relay/internal/settings/models"
	dErrors "relay/pkg/domain-errors"
)

type SessionStore interface {
	Begin(ctx context.Context, moderatorID string, key models.Key) error
	Peek(ctx context.Context, moderatorID string) (models.Key, bool, error)
	Claim(ctx context.Context, moderatorID string, key models.Key) (bool, error)
	Restore(ctx context.Context, moderatorID string, key models.Key) error
	Cancel(ctx context.Context, moderatorID string) (models.Key, bool, error)
}

type Settings interface {
	Get(ctx context.Context, key models.Key) (string, error)
	Set(ctx context.Context, key models.Key, value, moderatorID string) (*models.Setting, error)
}

type Catalog interface {
	T(messageID string) string
}

type Service struct {
	sessions  SessionStore
	settings  Settings
	messenger messenger.Messenger
	catalog   Catalog
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(sessions SessionStore, settings Settings, m messenger.Messenger, catalog Catalog, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if settings == nil {
		return nil, errors.New("settings service is required")
	}
	if m == nil || catalog == nil {
		return nil, errors.New("messenger and catalog are required")
	}
	s := &Service{sessions: sessions, settings: settings, messenger: m, catalog: catalog, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Menu sends the list of editable keys, one button each.
func (s *Service) Menu(ctx context.Context, moderatorID string) error {
	keys := models.AllKeys()
	controls := make([]messenger.Button, 0, len(keys))
	for _, k := range keys {
		controls = append(controls, messenger.Button{Label: string(k), Payload: payload.SettingsEdit(k), Style: messenger.StyleSecondary})
	}
	if _, err := s.messenger.Prompt(ctx, moderatorID, s.catalog.T("settings.menu"), controls); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send settings menu")
	}
	return nil
}

// Begin puts the moderator in the awaiting-text state for key and shows
// the current value.
func (s *Service) Begin(ctx context.Context, moderatorID string, key models.Key) error {
	if !key.IsValid() {
		return dErrors.New(dErrors.CodeValidation, s.catalog.T("settings.edit.unknown_key"))
	}
	current, err := s.settings.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.sessions.Begin(ctx, moderatorID, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to start edit session")
	}
	text := strings.NewReplacer("{KEY}", string(key), "{VALUE}", current).Replace(s.catalog.T("settings.edit.prompt"))
	controls := []messenger.Button{{Label: s.catalog.T("button.settings.cancel"), Payload: payload.SettingsCancel(), Style: messenger.StyleDanger}}
	if _, err := s.messenger.Prompt(ctx, moderatorID, text, controls); err != nil {
		s.logger.WarnContext(ctx, "failed to send edit prompt", "moderator_id", moderatorID, "error", err)
	}
	s.logger.InfoContext(ctx, "setting edit started", "moderator_id", moderatorID, "setting_key", string(key))
	return nil
}

// HandleText offers a text message to the editor. It reports false when
// the moderator has no pending edit, so the caller can route the message
// elsewhere.
func (s *Service) HandleText(ctx context.Context, moderatorID, text string) (bool, error) {
	key, ok, err := s.sessions.Peek(ctx, moderatorID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read edit session")
	}
	if !ok {
		return false, nil
	}

	value := strings.TrimSpace(text)
	if value == "" {
		s.sendText(ctx, moderatorID, s.catalog.T("settings.edit.empty"))
		return true, nil
	}

	claimed, err := s.sessions.Claim(ctx, moderatorID, key)
	if err != nil {
		return true, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim edit session")
	}
	if !claimed {
		// superseded or cancelled between Peek and Claim
		s.logger.InfoContext(ctx, "edit session changed before text was applied",
			"moderator_id", moderatorID,
			"setting_key", string(key),
		)
		return true, nil
	}

	saved, err := s.settings.Set(ctx, key, value, moderatorID)
	if err != nil {
		if rerr := s.sessions.Restore(ctx, moderatorID, key); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to restore edit session", "moderator_id", moderatorID, "error", rerr)
		}
		return true, err
	}

	text = strings.NewReplacer("{KEY}", string(key), "{VALUE}", saved.Value).Replace(s.catalog.T("settings.edit.saved"))
	s.sendText(ctx, moderatorID, text)
	return true, nil
}

// Cancel abandons a pending edit without touching the stored value. It
// reports whether there was anything to cancel.
func (s *Service) Cancel(ctx context.Context, moderatorID string) (bool, error) {
	key, ok, err := s.sessions.Cancel(ctx, moderatorID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel edit session")
	}
	if !ok {
		return false, nil
	}
	s.logger.InfoContext(ctx, "setting edit cancelled", "moderator_id", moderatorID, "setting_key", string(key))
	s.sendText(ctx, moderatorID, s.catalog.T("settings.edit.cancelled"))
	return true, nil
}

func (s *Service) sendText(ctx context.Context, recipientID, text string) {
	if err := s.messenger.SendText(ctx, recipientID, text); err != nil {
		s.logger.WarnContext(ctx, "failed to send text", "recipient_id", recipientID, "error", err)
	}
}
