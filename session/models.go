package session

import "coselect/workflow"

// ViewPreset names the default list view a session opens on.
type ViewPreset string

const (
	PresetMyWork      ViewPreset = "MY_WORK"
	PresetReviewQueue ViewPreset = "REVIEW_QUEUE"
	PresetFinanceDesk ViewPreset = "FINANCE_DESK"
	PresetAll         ViewPreset = "ALL"
)

func (p ViewPreset) Valid() bool {
	switch p {
	case PresetMyWork, PresetReviewQueue, PresetFinanceDesk, PresetAll:
		return true
	}
	return false
}

// DefaultPreset returns the preset a role starts on.
func DefaultPreset(r workflow.Role) ViewPreset {
	switch r {
	case workflow.RoleCoSelector:
		return PresetMyWork
	case workflow.RoleOpsBD:
		return PresetReviewQueue
	case workflow.RoleFinance:
		return PresetFinanceDesk
	default:
		return PresetAll
	}
}

// Context is the explicit session value passed to every handler in place of
// global role state.
type Context struct {
	Actor      workflow.Actor `json:"actor"`
	ViewPreset ViewPreset     `json:"viewPreset"`
}

// StartRequest identifies who is starting a session.
type StartRequest struct {
	UserID string        `json:"user_id"`
	Name   string        `json:"name"`
	Role   workflow.Role `json:"role"`
}

// Settings is the document stored in the settings collection.
type Settings struct {
	Presets map[string]ViewPreset `json:"presets"`
}
