package ports

import (
	"context"

	"relay/pkg/platform/audit"
)

// AuditPort emits audit events for resolved and duplicate decisions.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}
