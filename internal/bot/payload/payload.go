// Package payload encodes and parses the data carried by buttons.
//
//	approve:<ticket id>
//	reject:<ticket id>
//	disclose:<anon|named|cancel>:<channel id>:<message id>
//	settings:edit:<setting key>
//	settings:cancel
package payload

import (
	"fmt"
	"strings"

	"relay/internal/messenger"
	settingsmodels "relay/internal/settings/models"
	ticketmodels "relay/internal/ticket/models"
	dErrors "relay/pkg/domain-errors"
)

type Kind int

const (
	KindDecision Kind = iota + 1
	KindDisclosure
	KindSettingsEdit
	KindSettingsCancel
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Choice is the submitter's answer to the disclosure prompt.
type Choice string

const (
	ChoiceAnonymous Choice = "anon"
	ChoiceNamed     Choice = "named"
	ChoiceCancel    Choice = "cancel"
)

func (c Choice) IsValid() bool {
	return c == ChoiceAnonymous || c == ChoiceNamed || c == ChoiceCancel
}

type Payload struct {
	Kind     Kind
	Action   string
	TicketID ticketmodels.ID
	Choice   Choice
	Content  messenger.ContentRef
	Key      settingsmodels.Key
}

func Approve(id ticketmodels.ID) string { return ActionApprove + ":" + id.String() }

func Reject(id ticketmodels.ID) string { return ActionReject + ":" + id.String() }

func Disclose(c Choice, ref messenger.ContentRef) string {
	return fmt.Sprintf("disclose:%s:%s:%s", c, ref.ChannelID, ref.MessageID)
}

func SettingsEdit(key settingsmodels.Key) string { return "settings:edit:" + string(key) }

func SettingsCancel() string { return "settings:cancel" }

// Parse decodes a button payload. Malformed input is a validation error.
func Parse(s string) (Payload, error) {
	parts := strings.Split(s, ":")
	switch parts[0] {
	case ActionApprove, ActionReject:
		if len(parts) != 2 {
			break
		}
		id, err := ticketmodels.ParseID(parts[1])
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: KindDecision, Action: parts[0], TicketID: id}, nil
	case "disclose":
		if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
			break
		}
		c := Choice(parts[1])
		if !c.IsValid() {
			break
		}
		return Payload{
			Kind:    KindDisclosure,
			Choice:  c,
			Content: messenger.ContentRef{ChannelID: parts[2], MessageID: parts[3]},
		}, nil
	case "settings":
		if len(parts) == 2 && parts[1] == "cancel" {
			return Payload{Kind: KindSettingsCancel}, nil
		}
		if len(parts) == 3 && parts[1] == "edit" {
			key, err := settingsmodels.ParseKey(parts[2])
			if err != nil {
				return Payload{}, err
			}
			return Payload{Kind: KindSettingsEdit, Key: key}, nil
		}
	}
	return Payload{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unrecognised payload %q", s))
}
