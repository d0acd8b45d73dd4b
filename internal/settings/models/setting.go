package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	dErrors "relay/pkg/domain-errors"
)

// Key names one moderator-editable text. The set of keys is fixed; every
// key always has a value once the store is seeded.
type Key string

const (
	KeyGreetingUser        Key = "greeting.user"
	KeyGreetingAdmin       Key = "greeting.admin"
	KeySentToModeration    Key = "text.sent_to_moderation"
	KeyModerationError     Key = "text.moderation_error"
	KeyAlreadyProcessed    Key = "text.already_processed"
	KeyPublishedAlert      Key = "text.published.alert"
	KeyPublishedLog        Key = "text.published.log"
	KeyPublishedReply      Key = "text.published.reply"
	KeyRejectedAlert       Key = "text.rejected.alert"
	KeyRejectedLog         Key = "text.rejected.log"
	KeyRejectedReply       Key = "text.rejected.reply"
	KeyDefaultSignature    Key = "post.default_signature"
	KeyDisclosurePrompt    Key = "text.disclosure_prompt"
	KeySubmissionCancelled Key = "text.submission_cancelled"
	KeyNamedSignature      Key = "post.named_signature"
)

// Placeholders substituted when a setting is rendered.
const (
	PlaceholderChannelID = "{CHANNEL_ID}"
	PlaceholderName      = "{NAME}"
)

var allKeys = []Key{
	KeyGreetingUser,
	KeyGreetingAdmin,
	KeySentToModeration,
	KeyModerationError,
	KeyAlreadyProcessed,
	KeyPublishedAlert,
	KeyPublishedLog,
	KeyPublishedReply,
	KeyRejectedAlert,
	KeyRejectedLog,
	KeyRejectedReply,
	KeyDefaultSignature,
	KeyDisclosurePrompt,
	KeySubmissionCancelled,
	KeyNamedSignature,
}

// AllKeys returns the fixed key enumeration in menu order.
func AllKeys() []Key {
	return slices.Clone(allKeys)
}

func (k Key) String() string { return string(k) }

func (k Key) IsValid() bool {
	return slices.Contains(allKeys, k)
}

// MessageID is the catalog message holding the key's default value.
func (k Key) MessageID() string {
	return "setting." + string(k)
}

// ParseKey validates s against the enumeration.
func ParseKey(s string) (Key, error) {
	k := Key(strings.TrimSpace(s))
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown setting key %q", s))
	}
	return k, nil
}

type Setting struct {
	Key       Key       `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeValue trims v and rejects empty text.
func NormalizeValue(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, "setting value must not be empty")
	}
	return v, nil
}
