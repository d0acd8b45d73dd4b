package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"relay/internal/settings/models"
	"relay/pkg/attrs"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/audit"
	"relay/pkg/platform/sentinel"
	"relay/pkg/requestcontext"
)

type Store interface {
	Seed(ctx context.Context, defaults []models.Setting) (int, error)
	Get(ctx context.Context, key models.Key) (*models.Setting, error)
	Set(ctx context.Context, setting models.Setting) error
	List(ctx context.Context) ([]models.Setting, error)
}

// Catalog supplies the default text for each key.
type Catalog interface {
	T(messageID string) string
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns the moderator-editable texts.
type Service struct {
	store          Store
	catalog        Catalog
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{store: store, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the catalog value for every key.
func (s *Service) Defaults(ctx context.Context) []models.Setting {
	now := requestcontext.Now(ctx)
	keys := models.AllKeys()
	out := make([]models.Setting, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.Setting{Key: k, Value: s.catalog.T(k.MessageID()), UpdatedAt: now})
	}
	return out
}

// Seed inserts defaults for keys that have no stored value. Running it
// repeatedly never overwrites moderator edits.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.store.Seed(ctx, s.Defaults(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed settings")
	}
	if n > 0 {
		s.logAudit(ctx, string(audit.EventSettingsSeeded), "inserted", n)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, key models.Key) (string, error) {
	if !key.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown setting key")
	}
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeNotFound, "setting not seeded")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load setting")
	}
	return setting.Value, nil
}

// Set replaces the value of key. The value is trimmed and must not be empty.
func (s *Service) Set(ctx context.Context, key models.Key, value, moderatorID string) (*models.Setting, error) {
	if !key.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown setting key")
	}
	value, err := models.NormalizeValue(value)
	if err != nil {
		return nil, err
	}
	setting := models.Setting{Key: key, Value: value, UpdatedAt: requestcontext.Now(ctx)}
	if err := s.store.Set(ctx, setting); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save setting")
	}
	s.logAudit(ctx, string(audit.EventSettingChanged),
		"setting_key", string(key),
		"moderator_id", moderatorID)
	return &setting, nil
}

func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list settings")
	}
	return list, nil
}

// Render returns the value of key with placeholders substituted from
// replacements (placeholder, value pairs). When the store cannot answer,
// the catalog default is used so the actor still gets a reply. An unpaired
// replacement list leaves the value unsubstituted.
func (s *Service) Render(ctx context.Context, key models.Key, replacements ...string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "setting lookup failed, using default",
				"setting_key", string(key),
				"error", err,
			)
		}
		value = s.catalog.T(key.MessageID())
	}
	if len(replacements) == 0 {
		return value
	}
	if len(replacements)%2 != 0 {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "unpaired placeholder replacements, rendering raw value",
				"setting_key", string(key),
				"replacements", len(replacements),
			)
		}
		return value
	}
	return strings.NewReplacer(replacements...).Replace(value)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if eventID := requestcontext.EventID(ctx); eventID != "" {
		attributes = append(attributes, "event_id", eventID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:  event,
		ActorID: attrs.ExtractString(attributes, "moderator_id"),
		Reason:  attrs.ExtractString(attributes, "setting_key"),
		EventID: requestcontext.EventID(ctx),
	})
}
