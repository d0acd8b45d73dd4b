package messenger

import (
	"context"
	"strings"
)

type Kind string

const (
	// KindContent is a message carrying media or attachments.
	KindContent Kind = "content"
	// KindText is a plain text message.
	KindText Kind = "text"
	// KindCommand is a text message starting with "/".
	KindCommand Kind = "command"
	// KindCallback is a button press.
	KindCallback Kind = "callback"
)

// Event is one inbound platform update.
type Event struct {
	ID          string
	Kind        Kind
	UserID      string
	DisplayName string
	// Content references the inbound message for content, text and command
	// events.
	Content  ContentRef
	Text     string
	Command  string
	Callback Callback
}

// Handler consumes inbound events. Adapters call it from their own
// goroutines, one event per call.
type Handler interface {
	HandleEvent(ctx context.Context, event Event)
}

type HandlerFunc func(ctx context.Context, event Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// ParseCommand splits "/name args" into the command name and the rest.
// The name is lower-cased and a "@bot" suffix is dropped.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
