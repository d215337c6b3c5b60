package dispute

import (
	"time"

	"coselect/workflow"
)

// Urgency classifies how close an unresolved case is to its deadline.
type Urgency string

const (
	UrgencyNone    Urgency = "NONE"
	UrgencyNormal  Urgency = "NORMAL"
	UrgencySoon    Urgency = "SOON"
	UrgencyUrgent  Urgency = "URGENT"
	UrgencyOverdue Urgency = "OVERDUE"
)

type Outcome string

const (
	OutcomeUpheld  Outcome = "UPHELD"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeDenied  Outcome = "DENIED"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeUpheld, OutcomePartial, OutcomeDenied:
		return true
	}
	return false
}

type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Resolution struct {
	Outcome    Outcome   `json:"outcome"`
	Summary    string    `json:"summary"`
	ResolvedBy ActorRef  `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Message is one entry of the case conversation thread. Messages are not
// audit events and never change the case status.
type Message struct {
	ID         string        `json:"id"`
	AuthorID   string        `json:"authorId"`
	AuthorName string        `json:"authorName"`
	AuthorRole workflow.Role `json:"authorRole"`
	Body       string        `json:"body"`
	SentAt     time.Time     `json:"sentAt"`
}

// Case mirrors one entry of the disputes collection.
type Case struct {
	ID                    string            `json:"id"`
	Subject               string            `json:"subject"`
	Reference             string            `json:"reference,omitempty"`
	Description           string            `json:"description,omitempty"`
	OpenedBy              ActorRef          `json:"openedBy"`
	Status                workflow.Status   `json:"status"`
	Evidence              []string          `json:"evidence"`
	RequiredEvidenceCount int               `json:"requiredEvidenceCount"`
	DeadlineAt            time.Time         `json:"deadlineAt"`
	Resolution            *Resolution       `json:"resolution,omitempty"`
	Messages              []Message         `json:"messages"`
	Timeline              workflow.Timeline `json:"timeline"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

func (c Case) Snapshot() workflow.Snapshot {
	return workflow.Snapshot{
		RequesterID:      c.OpenedBy.ID,
		EvidenceCount:    len(c.Evidence),
		RequiredEvidence: c.RequiredEvidenceCount,
	}
}

// Summary is a case with its urgency at listing time.
type Summary struct {
	Case
	Urgency Urgency `json:"urgency"`
}

type Filters struct {
	Status   workflow.Status
	OpenedBy string
	Urgency  Urgency
}
