// Package requestcontext provides transport-independent context accessors for
// values scoped to one inbound event.
//
// The bot dispatcher sets them once per event; services and stores read them.
//
//	ctx = requestcontext.WithEventID(ctx, evt.ID)
//	ctx = requestcontext.WithActorID(ctx, evt.SenderID)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	eventIDKey   struct{}
	actorIDKey   struct{}
	eventTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyEventID   = eventIDKey{}
	ContextKeyActorID   = actorIDKey{}
	ContextKeyEventTime = eventTimeKey{}
)

// EventID retrieves the inbound event ID from the context.
func EventID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyEventID).(string); ok {
		return id
	}
	return ""
}

// WithEventID injects an inbound event ID into the context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ContextKeyEventID, eventID)
}

// ActorID retrieves the transport user ID of whoever caused the event.
func ActorID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyActorID).(string); ok {
		return id
	}
	return ""
}

// WithActorID injects the acting user ID into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// Now retrieves the event-scoped time from context.
// Falls back to time.Now() if not set (CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyEventTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests asserting timestamps
//   - Keeping one timestamp for every row written while handling an event
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyEventTime, t)
}
