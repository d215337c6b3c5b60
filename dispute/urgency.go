package dispute

import (
	"time"

	"coselect/workflow"
)

// Policy holds the tunable dispute settings. Config hot reload replaces it.
type Policy struct {
	ResponseWindow   time.Duration
	RequiredEvidence int
	UrgentWithin     time.Duration
	SoonWithin       time.Duration
	AutoReplyDelay   time.Duration
	AutoReplyMessage string
}

var DefaultPolicy = Policy{
	ResponseWindow:   7 * 24 * time.Hour,
	RequiredEvidence: 1,
	UrgentWithin:     24 * time.Hour,
	SoonWithin:       72 * time.Hour,
	AutoReplyDelay:   2 * time.Second,
	AutoReplyMessage: "Thanks, we received your message. An ops reviewer will follow up before the case deadline.",
}

// Classify returns the urgency of c at now. Resolved cases have none.
// Deadlines only inform urgency and never move a case between statuses.
func Classify(c Case, now time.Time, p Policy) Urgency {
	if c.Resolution != nil || c.Status == workflow.DisputeResolved {
		return UrgencyNone
	}
	left := c.DeadlineAt.Sub(now)
	switch {
	case left < 0:
		return UrgencyOverdue
	case left < p.UrgentWithin:
		return UrgencyUrgent
	case left < p.SoonWithin:
		return UrgencySoon
	default:
		return UrgencyNormal
	}
}
