package workflow

import "strings"

// Role identifies the kind of actor performing an action. The same values tag
// timeline events.
type Role string

const (
	RoleCoSelector Role = "CO_SELECTOR"
	RoleOps        Role = "OPS"
	RoleOpsBD      Role = "OPS_BD"
	RoleFinance    Role = "FINANCE"
	RoleSystem     Role = "SYSTEM"
	RoleAdmin      Role = "ADMIN"
)

// Actor is the identity performing an action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SystemActor is used for automated events such as dispute auto-replies.
var SystemActor = Actor{ID: "system", Name: "System", Role: RoleSystem}

// ParseRole normalises a role string; ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleCoSelector, RoleOps, RoleOpsBD, RoleFinance, RoleSystem, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Selectable reports whether the role may be chosen for an interactive session.
// SYSTEM, OPS and ADMIN only tag internal timeline events.
func (r Role) Selectable() bool {
	switch r {
	case RoleCoSelector, RoleOpsBD, RoleFinance:
		return true
	default:
		return false
	}
}

func roleIn(r Role, set []Role) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
