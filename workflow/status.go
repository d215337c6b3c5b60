package workflow

// Entity names a governed entity type.
type Entity string

const (
	EntityLead    Entity = "lead"
	EntityPayout  Entity = "payout"
	EntityDispute Entity = "dispute"
)

// Status is a lifecycle state of a governed entity.
type Status string

// StatusNone is the origin of creation edges: an entity that does not exist yet.
const StatusNone Status = ""

const (
	LeadDraft         Status = "DRAFT"
	LeadSubmitted     Status = "SUBMITTED"
	LeadUnderReview   Status = "UNDER_REVIEW"
	LeadInfoRequested Status = "INFO_REQUESTED"
	LeadApproved      Status = "APPROVED"
	LeadRejected      Status = "REJECTED"
	LeadResubmitted   Status = "RESUBMITTED"
)

const (
	PayoutRequested Status = "REQUESTED"
	PayoutApproved  Status = "APPROVED"
	PayoutPaid      Status = "PAID"
	PayoutFailed    Status = "FAILED"
	PayoutRejected  Status = "REJECTED"
	PayoutCancelled Status = "CANCELLED"
)

const (
	DisputeOpen     Status = "OPEN"
	DisputeWaiting  Status = "WAITING"
	DisputeResolved Status = "RESOLVED"
)

var statuses = map[Entity][]Status{
	EntityLead: {
		LeadDraft, LeadSubmitted, LeadUnderReview, LeadInfoRequested,
		LeadApproved, LeadRejected, LeadResubmitted,
	},
	EntityPayout: {
		PayoutRequested, PayoutApproved, PayoutPaid, PayoutFailed,
		PayoutRejected, PayoutCancelled,
	},
	EntityDispute: {DisputeOpen, DisputeWaiting, DisputeResolved},
}

// Statuses returns the valid statuses of an entity type in lifecycle order.
func Statuses(entity Entity) []Status {
	out := make([]Status, len(statuses[entity]))
	copy(out, statuses[entity])
	return out
}

// IsValid reports whether status belongs to the entity type.
func IsValid(entity Entity, status Status) bool {
	for _, s := range statuses[entity] {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves status.
func IsTerminal(entity Entity, status Status) bool {
	if !IsValid(entity, status) {
		return false
	}
	for _, e := range registry {
		if e.Entity == entity && e.From == status {
			return false
		}
	}
	return true
}
