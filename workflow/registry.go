package workflow

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Snapshot carries the entity attributes preconditions are evaluated against.
// Callers fill only the fields relevant to the entity type.
type Snapshot struct {
	AssignedOwner  string
	RequesterID    string
	Amount         decimal.Decimal
	PayableBalance decimal.Decimal
	// Issues are eligibility issue codes evaluated at request time.
	Issues           []string
	EvidenceCount    int
	RequiredEvidence int
	Resolution       string
}

// Precondition is a named business rule attached to an edge. Check returns an
// empty string when the rule holds, otherwise a human readable detail.
type Precondition struct {
	Name  string
	Check func(Snapshot) string
}

// Edge is one allowed transition in the registry.
type Edge struct {
	Entity        Entity
	From          Status
	To            Status
	Roles         []Role
	RequesterOnly bool
	Preconditions []Precondition
	// EventType is the timeline event type produced when the edge is taken.
	EventType string
}

var (
	OwnerAssigned = Precondition{Name: "owner_assigned", Check: func(s Snapshot) string {
		if s.AssignedOwner == "" {
			return "assigned owner is required"
		}
		return ""
	}}

	PositiveAmount = Precondition{Name: "positive_amount", Check: func(s Snapshot) string {
		if !s.Amount.IsPositive() {
			return fmt.Sprintf("amount %s must be positive", s.Amount.StringFixed(2))
		}
		return ""
	}}

	WithinBalance = Precondition{Name: "within_balance", Check: func(s Snapshot) string {
		if s.Amount.GreaterThan(s.PayableBalance) {
			return fmt.Sprintf("amount %s exceeds payable balance %s", s.Amount.StringFixed(2), s.PayableBalance.StringFixed(2))
		}
		return ""
	}}

	Eligible = Precondition{Name: "eligible", Check: func(s Snapshot) string {
		if len(s.Issues) > 0 {
			return fmt.Sprintf("payout blocked by %v", s.Issues)
		}
		return ""
	}}

	EvidenceComplete = Precondition{Name: "evidence_complete", Check: func(s Snapshot) string {
		if s.EvidenceCount < s.RequiredEvidence {
			return fmt.Sprintf("%d of %d required evidence items provided", s.EvidenceCount, s.RequiredEvidence)
		}
		return ""
	}}

	ResolutionProvided = Precondition{Name: "resolution_provided", Check: func(s Snapshot) string {
		if s.Resolution == "" {
			return "resolution summary is required"
		}
		return ""
	}}
)

var (
	leadReviewers  = []Role{RoleOpsBD}
	payoutAdmins   = []Role{RoleFinance, RoleAdmin}
	payoutSettlers = []Role{RoleSystem, RoleAdmin, RoleFinance}
	disputeHandler = []Role{RoleOps, RoleOpsBD, RoleAdmin}
)

var registry = []Edge{
	{Entity: EntityLead, From: StatusNone, To: LeadDraft, Roles: []Role{RoleCoSelector}, EventType: EventLeadCreated},
	{Entity: EntityLead, From: LeadDraft, To: LeadSubmitted, Roles: []Role{RoleCoSelector}, EventType: EventLeadSubmitted},
	{Entity: EntityLead, From: LeadSubmitted, To: LeadUnderReview, Roles: leadReviewers, EventType: EventStatusChanged},
	{Entity: EntityLead, From: LeadSubmitted, To: LeadInfoRequested, Roles: leadReviewers, EventType: EventInfoRequested},
	{Entity: EntityLead, From: LeadUnderReview, To: LeadInfoRequested, Roles: leadReviewers, EventType: EventInfoRequested},
	{Entity: EntityLead, From: LeadUnderReview, To: LeadApproved, Roles: leadReviewers, Preconditions: []Precondition{OwnerAssigned}, EventType: EventApproved},
	{Entity: EntityLead, From: LeadUnderReview, To: LeadRejected, Roles: leadReviewers, Preconditions: []Precondition{OwnerAssigned}, EventType: EventRejected},
	{Entity: EntityLead, From: LeadInfoRequested, To: LeadApproved, Roles: leadReviewers, Preconditions: []Precondition{OwnerAssigned}, EventType: EventApproved},
	{Entity: EntityLead, From: LeadInfoRequested, To: LeadRejected, Roles: leadReviewers, Preconditions: []Precondition{OwnerAssigned}, EventType: EventRejected},
	{Entity: EntityLead, From: LeadInfoRequested, To: LeadResubmitted, Roles: []Role{RoleCoSelector}, EventType: EventLeadResubmitted},
	// A resubmitted lead re-enters review exactly like a fresh submission.
	{Entity: EntityLead, From: LeadResubmitted, To: LeadUnderReview, Roles: leadReviewers, EventType: EventStatusChanged},
	{Entity: EntityLead, From: LeadResubmitted, To: LeadInfoRequested, Roles: leadReviewers, EventType: EventInfoRequested},

	{Entity: EntityPayout, From: StatusNone, To: PayoutRequested, Roles: []Role{RoleCoSelector}, Preconditions: []Precondition{PositiveAmount, WithinBalance, Eligible}, EventType: EventPayoutRequested},
	{Entity: EntityPayout, From: PayoutRequested, To: PayoutApproved, Roles: payoutAdmins, EventType: EventPayoutApproved},
	{Entity: EntityPayout, From: PayoutRequested, To: PayoutRejected, Roles: payoutAdmins, EventType: EventPayoutRejected},
	{Entity: EntityPayout, From: PayoutRequested, To: PayoutCancelled, Roles: []Role{RoleCoSelector}, RequesterOnly: true, EventType: EventPayoutCancelled},
	{Entity: EntityPayout, From: PayoutApproved, To: PayoutPaid, Roles: payoutSettlers, EventType: EventPayoutPaid},
	{Entity: EntityPayout, From: PayoutApproved, To: PayoutFailed, Roles: payoutSettlers, EventType: EventPayoutFailed},

	{Entity: EntityDispute, From: StatusNone, To: DisputeOpen, Roles: []Role{RoleCoSelector}, EventType: EventDisputeOpened},
	{Entity: EntityDispute, From: DisputeOpen, To: DisputeWaiting, Roles: disputeHandler, EventType: EventEvidenceRequested},
	{Entity: EntityDispute, From: DisputeWaiting, To: DisputeOpen, Roles: []Role{RoleCoSelector}, Preconditions: []Precondition{EvidenceComplete}, EventType: EventEvidenceSubmitted},
	{Entity: EntityDispute, From: DisputeOpen, To: DisputeResolved, Roles: disputeHandler, Preconditions: []Precondition{ResolutionProvided}, EventType: EventDisputeResolved},
	{Entity: EntityDispute, From: DisputeWaiting, To: DisputeResolved, Roles: disputeHandler, Preconditions: []Precondition{ResolutionProvided}, EventType: EventDisputeResolved},
}

// Lookup returns the edge from -> to for the entity type.
func Lookup(entity Entity, from, to Status) (Edge, bool) {
	for _, e := range registry {
		if e.Entity == entity && e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// Edges returns a copy of every registered edge for the entity type.
func Edges(entity Entity) []Edge {
	out := make([]Edge, 0, 8)
	for _, e := range registry {
		if e.Entity == entity {
			out = append(out, e)
		}
	}
	return out
}
