// Package messenger is the boundary between the relay and the chat
// platform. Components talk to a Messenger and receive Events; the
// platform adapter (see messenger/discord) implements both sides.
package messenger

import (
	"context"
	"fmt"
	"strings"

	dErrors "relay/pkg/domain-errors"
)

// Handle addresses one message on the platform. Its string form is what
// the ticket store keeps for each delivered copy.
type Handle struct {
	ChannelID string
	MessageID string
}

func (h Handle) String() string {
	return h.ChannelID + "/" + h.MessageID
}

func (h Handle) IsZero() bool {
	return h.ChannelID == "" && h.MessageID == ""
}

// ParseHandle reverses Handle.String.
func ParseHandle(s string) (Handle, error) {
	channel, message, ok := strings.Cut(s, "/")
	if !ok || channel == "" || message == "" {
		return Handle{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("malformed message handle %q", s))
	}
	return Handle{ChannelID: channel, MessageID: message}, nil
}

// ContentRef points at the submitter's original message. It travels inside
// button payloads so the content is fetched from the platform, never
// re-uploaded by the submitter.
type ContentRef = Handle

type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
)

type Button struct {
	Label   string
	Payload string
	Style   ButtonStyle
}

// Callback is a button press. ID and Token identify the interaction so it
// can be answered exactly once.
type Callback struct {
	ID          string
	Token       string
	UserID      string
	DisplayName string
	Payload     string
	Message     Handle
}

// Messenger is what components need from the chat platform.
type Messenger interface {
	// Deliver copies the referenced content to recipient with controls
	// attached and returns the handle of the copy.
	Deliver(ctx context.Context, recipientID string, content ContentRef, controls []Button) (Handle, error)
	// StripControls removes every control from the message and appends note
	// to its text. An empty note leaves the text unchanged.
	StripControls(ctx context.Context, message Handle, note string) error
	// Publish posts the content of source followed by signature to the
	// destination channel.
	Publish(ctx context.Context, destinationID string, source Handle, signature string) error
	SendText(ctx context.Context, recipientID, text string) error
	Prompt(ctx context.Context, recipientID, text string, controls []Button) (Handle, error)
	// Answer acknowledges a callback. alert marks the text as needing
	// explicit attention rather than a passing notice.
	Answer(ctx context.Context, cb Callback, text string, alert bool) error
	// Escape neutralises platform markup in user-supplied text.
	Escape(text string) string
}
