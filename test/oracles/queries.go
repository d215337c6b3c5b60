package oracles

import (
	"context"
	"fmt"

	"coselect/dispute"
	"coselect/lead"
	"coselect/payout"
	"coselect/store"
	"coselect/workflow"
)

// Snapshot is one consistent read of every audited collection.
type Snapshot struct {
	Leads        []lead.Lead
	Payouts      []payout.Payout
	Transactions []payout.Transaction
	Disputes     []dispute.Case
}

func Load(ctx context.Context, s store.Store) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Leads, err = store.List[lead.Lead](ctx, s, store.Leads); err != nil {
		return Snapshot{}, err
	}
	if snap.Payouts, err = store.List[payout.Payout](ctx, s, store.Payouts); err != nil {
		return Snapshot{}, err
	}
	if snap.Transactions, err = store.List[payout.Transaction](ctx, s, store.Transactions); err != nil {
		return Snapshot{}, err
	}
	if snap.Disputes, err = store.List[dispute.Case](ctx, s, store.Disputes); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Oracle inspects a snapshot and describes the first violation it finds, or
// returns "" when the invariant holds.
type Oracle struct {
	Name  string
	Check func(Snapshot) string
}

func All() []Oracle {
	return []Oracle{
		{Name: "O1_timeline_present_and_unique", Check: timelinesUnique},
		{Name: "O2_timeline_replays_to_status", Check: timelinesReplay},
		{Name: "O3_terminal_is_last_event", Check: terminalLast},
		{Name: "O4_decided_lead_has_owner", Check: decidedLeadsOwned},
		{Name: "O5_payouts_within_payable", Check: payoutsCovered},
		{Name: "O6_payout_bank_snapshot", Check: payoutBankSnapshot},
		{Name: "O7_evidence_complete_on_return", Check: evidenceComplete},
	}
}

// Run loads a snapshot and returns the name and description of the first
// violated oracle. name is empty when every oracle holds.
func Run(ctx context.Context, s store.Store) (string, string, error) {
	snap, err := Load(ctx, s)
	if err != nil {
		return "", "", err
	}
	for _, o := range All() {
		if row := o.Check(snap); row != "" {
			return o.Name, row, nil
		}
	}
	return "", "", nil
}

type audited struct {
	entity   workflow.Entity
	id       string
	status   workflow.Status
	timeline workflow.Timeline
}

func (s Snapshot) audited() []audited {
	out := make([]audited, 0, len(s.Leads)+len(s.Payouts)+len(s.Disputes))
	for _, l := range s.Leads {
		out = append(out, audited{workflow.EntityLead, l.ID, l.Status, l.Timeline})
	}
	for _, p := range s.Payouts {
		out = append(out, audited{workflow.EntityPayout, p.ID, p.Status, p.Timeline})
	}
	for _, c := range s.Disputes {
		out = append(out, audited{workflow.EntityDispute, c.ID, c.Status, c.Timeline})
	}
	return out
}

func timelinesUnique(s Snapshot) string {
	seen := make(map[string]string)
	for _, a := range s.audited() {
		if len(a.timeline) == 0 {
			return fmt.Sprintf("%s %s has an empty timeline", a.entity, a.id)
		}
		for _, ev := range a.timeline {
			if ev.ID == "" {
				return fmt.Sprintf("%s %s has an event without id", a.entity, a.id)
			}
			if owner, dup := seen[ev.ID]; dup {
				return fmt.Sprintf("event %s appears on %s and %s %s", ev.ID, owner, a.entity, a.id)
			}
			seen[ev.ID] = string(a.entity) + " " + a.id
		}
	}
	return ""
}

// replay walks the transition events of a timeline along registry edges and
// returns the status they lead to. Events that no edge produces, such as
// owner assignment or evidence uploads, are skipped.
func replay(entity workflow.Entity, tl workflow.Timeline) (workflow.Status, string) {
	edges := workflow.Edges(entity)
	transitionTypes := make(map[string]bool)
	for _, e := range edges {
		transitionTypes[e.EventType] = true
	}

	state := workflow.StatusNone
	for _, ev := range tl {
		if !transitionTypes[ev.EventType] {
			continue
		}
		moved := false
		for _, e := range edges {
			if e.From == state && e.EventType == ev.EventType {
				state = e.To
				moved = true
				break
			}
		}
		if !moved {
			return state, fmt.Sprintf("event %s (%s) has no edge from %q", ev.ID, ev.EventType, state)
		}
	}
	return state, ""
}

func timelinesReplay(s Snapshot) string {
	for _, a := range s.audited() {
		got, problem := replay(a.entity, a.timeline)
		if problem != "" {
			return fmt.Sprintf("%s %s: %s", a.entity, a.id, problem)
		}
		if got != a.status {
			return fmt.Sprintf("%s %s: status %s but timeline replays to %s", a.entity, a.id, a.status, got)
		}
	}
	return ""
}

func terminalLast(s Snapshot) string {
	for _, a := range s.audited() {
		if !workflow.IsTerminal(a.entity, a.status) {
			continue
		}
		last, _ := a.timeline.Last()
		for _, e := range workflow.Edges(a.entity) {
			if e.To == a.status && e.EventType == last.EventType {
				last = workflow.Event{}
				break
			}
		}
		if last.ID != "" {
			return fmt.Sprintf("%s %s is %s but was followed by %s", a.entity, a.id, a.status, last.EventType)
		}
	}
	return ""
}

func decidedLeadsOwned(s Snapshot) string {
	for _, l := range s.Leads {
		if (l.Status == workflow.LeadApproved || l.Status == workflow.LeadRejected) && l.AssignedOwner == nil {
			return fmt.Sprintf("lead %s is %s without an owner", l.ID, l.Status)
		}
	}
	return ""
}

func payoutsCovered(s Snapshot) string {
	requesters := make(map[string]bool)
	for _, p := range s.Payouts {
		requesters[p.RequesterID] = true
	}
	for id := range requesters {
		b := payout.ComputeBalance(id, s.Transactions, s.Payouts)
		if b.Available.IsNegative() {
			return fmt.Sprintf("requester %s committed %s against payable %s",
				id, b.Committed.StringFixed(2), b.Payable.StringFixed(2))
		}
	}
	return ""
}

func payoutBankSnapshot(s Snapshot) string {
	for _, p := range s.Payouts {
		if !p.BankAccount.Complete() {
			return fmt.Sprintf("payout %s has no complete bank account snapshot", p.ID)
		}
	}
	return ""
}

func evidenceComplete(s Snapshot) string {
	for _, c := range s.Disputes {
		if c.Status != workflow.DisputeOpen {
			continue
		}
		var lastTransition string
		for _, ev := range c.Timeline {
			if ev.EventType != workflow.EventEvidenceAdded {
				lastTransition = ev.EventType
			}
		}
		if lastTransition == workflow.EventEvidenceSubmitted && len(c.Evidence) < c.RequiredEvidenceCount {
			return fmt.Sprintf("dispute %s reopened with %d of %d evidence items",
				c.ID, len(c.Evidence), c.RequiredEvidenceCount)
		}
	}
	return ""
}
