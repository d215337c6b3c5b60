package workflow

import "fmt"

// Capability names an action that is not a status transition but is still
// gated by role.
type Capability string

const (
	CapAssignOwner   Capability = "lead.assign_owner"
	CapViewAllLeads  Capability = "lead.view_all"
	CapAddEvidence   Capability = "dispute.add_evidence"
	CapPostMessage   Capability = "dispute.post_message"
	CapViewAllCases  Capability = "dispute.view_all"
	CapViewPayouts   Capability = "payout.view_all"
	CapManageProfile Capability = "profile.manage"
	CapRecordEarning Capability = "transaction.record"
	CapExport        Capability = "export.csv"
	CapSwitchRole    Capability = "dev.switch_role"
	CapResetStorage  Capability = "dev.reset_storage"
)

var capabilities = map[Capability][]Role{
	CapAssignOwner:   {RoleOpsBD, RoleAdmin},
	CapViewAllLeads:  {RoleOps, RoleOpsBD, RoleAdmin},
	CapAddEvidence:   {RoleCoSelector},
	CapPostMessage:   {RoleCoSelector, RoleOps, RoleOpsBD, RoleAdmin, RoleSystem},
	CapViewAllCases:  {RoleOps, RoleOpsBD, RoleAdmin},
	CapViewPayouts:   {RoleFinance, RoleAdmin},
	CapManageProfile: {RoleFinance, RoleAdmin},
	CapRecordEarning: {RoleFinance, RoleAdmin, RoleSystem},
	CapExport:        {RoleOps, RoleOpsBD, RoleFinance, RoleAdmin},
	CapSwitchRole:    {RoleCoSelector, RoleOps, RoleOpsBD, RoleFinance, RoleAdmin},
	CapResetStorage:  {RoleAdmin},
}

// Can reports whether actor holds the capability.
func Can(actor Actor, capability Capability) bool {
	return roleIn(actor.Role, capabilities[capability])
}

// Authorize returns an error matching ErrUnauthorized when actor lacks the
// capability.
func Authorize(actor Actor, capability Capability) error {
	if Can(actor, capability) {
		return nil
	}
	return fmt.Errorf("%w: role %q lacks %s", ErrUnauthorized, actor.Role, capability)
}
