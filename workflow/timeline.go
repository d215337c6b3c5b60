package workflow

import "time"

// Timeline event types.
const (
	EventLeadCreated     = "LEAD_CREATED"
	EventLeadSubmitted   = "LEAD_SUBMITTED"
	EventOwnerAssigned   = "OWNER_ASSIGNED"
	EventStatusChanged   = "STATUS_CHANGED"
	EventInfoRequested   = "INFO_REQUESTED"
	EventApproved        = "APPROVED"
	EventRejected        = "REJECTED"
	EventLeadResubmitted = "LEAD_RESUBMITTED"

	EventPayoutRequested = "PAYOUT_REQUESTED"
	EventPayoutApproved  = "PAYOUT_APPROVED"
	EventPayoutRejected  = "PAYOUT_REJECTED"
	EventPayoutCancelled = "PAYOUT_CANCELLED"
	EventPayoutPaid      = "PAYOUT_PAID"
	EventPayoutFailed    = "PAYOUT_FAILED"

	EventDisputeOpened     = "DISPUTE_OPENED"
	EventEvidenceAdded     = "EVIDENCE_ADDED"
	EventEvidenceRequested = "EVIDENCE_REQUESTED"
	EventEvidenceSubmitted = "EVIDENCE_SUBMITTED"
	EventDisputeResolved   = "DISPUTE_RESOLVED"
)

// Event is an immutable audit record. Timelines are append-only and their
// order is the audit of record.
type Event struct {
	ID          string         `json:"id"`
	ActorType   Role           `json:"actorType"`
	ActorID     string         `json:"actorId,omitempty"`
	ActorName   string         `json:"actorName"`
	OccurredAt  time.Time      `json:"occurredAt"`
	EventType   string         `json:"eventType"`
	Description string         `json:"description"`
	ReasonCode  string         `json:"reasonCode,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Timeline is an ordered sequence of events.
type Timeline []Event

// Last returns the most recent event.
func (t Timeline) Last() (Event, bool) {
	if len(t) == 0 {
		return Event{}, false
	}
	return t[len(t)-1], true
}

// Clone returns a copy that shares no backing array with t.
func (t Timeline) Clone() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, len(t))
	copy(out, t)
	return out
}
