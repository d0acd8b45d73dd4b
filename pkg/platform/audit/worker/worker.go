package worker

import (
	"context"
	"log/slog"

	audit "relay/pkg/platform/audit"
)

// Worker drains audit events from a channel into a store. A failed append
// is logged and the worker moves on; audit sinks never stall the bot.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until the inbox is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "audit append failed",
				"action", event.Action,
				"ticket_id", event.TicketID,
				"error", err,
			)
		}
	}
}
