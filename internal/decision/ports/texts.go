package ports

import (
	"context"

	"relay/internal/settings/models"
)

// Texts renders moderator-editable settings.
type Texts interface {
	Render(ctx context.Context, key models.Key, replacements ...string) string
}

// Catalog supplies fixed UI strings.
type Catalog interface {
	T(messageID string) string
}
