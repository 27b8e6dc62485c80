package policy

import "errors"

var (
	ErrDraftNotFound       = errors.New("policy draft not found")
	ErrRuleNotFound        = errors.New("approval rule not found")
	ErrLevelNotFound       = errors.New("approval level not found")
	ErrTeamNotInPolicy     = errors.New("team is not part of this policy")
	ErrNoTeamsSelected     = errors.New("at least one team must be selected")
	ErrInvalidAmount       = errors.New("amount is not a number")
	ErrInvalidApproverType = errors.New("approver type must be auto-approve, user or role")
)
