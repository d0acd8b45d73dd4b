package decision

import (
	"errors"
	"fmt"

	settingsmodels "relay/internal/settings/models"
	"relay/internal/ticket/models"
	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/sentinel"
)

// Action is what the moderator pressed.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, err := a.Outcome(); err != nil {
		return "", err
	}
	return a, nil
}

// Outcome maps the action to the outcome recorded on the ticket.
func (a Action) Outcome() (models.Outcome, error) {
	switch a {
	case ActionApprove:
		return models.OutcomeApproved, nil
	case ActionReject:
		return models.OutcomeRejected, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown decision action %q", a))
	}
}

// Result is how a Resolve call ended for the acting moderator.
type Result string

const (
	ResultApproved  Result = "approved"
	ResultRejected  Result = "rejected"
	ResultDuplicate Result = "duplicate"
)

// outcomeTexts are the settings shown after a winning decision.
type outcomeTexts struct {
	alert settingsmodels.Key
	log   settingsmodels.Key
	reply settingsmodels.Key
}

func textsFor(o models.Outcome) outcomeTexts {
	if o == models.OutcomeApproved {
		return outcomeTexts{
			alert: settingsmodels.KeyPublishedAlert,
			log:   settingsmodels.KeyPublishedLog,
			reply: settingsmodels.KeyPublishedReply,
		}
	}
	return outcomeTexts{
		alert: settingsmodels.KeyRejectedAlert,
		log:   settingsmodels.KeyRejectedLog,
		reply: settingsmodels.KeyRejectedReply,
	}
}

func resultFor(o models.Outcome) Result {
	if o == models.OutcomeApproved {
		return ResultApproved
	}
	return ResultRejected
}

// classify interprets the CloseTicket result. A ticket that is already
// closed, or that does not exist, is a duplicate decision. Any other error
// is returned unchanged.
func classify(previous models.Status, err error) (duplicate bool, failure error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return previous != models.StatusPending, nil
}
