package lead

import (
	"strings"
	"time"

	"coselect/workflow"
)

// ActorRef is a stored reference to a user.
type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func refOf(a workflow.Actor) ActorRef {
	return ActorRef{ID: a.ID, Name: a.Name}
}

// Details are the merchant fields a co-selector fills in.
type Details struct {
	MerchantName string `json:"merchantName"`
	Category     string `json:"category"`
	Region       string `json:"region"`
	City         string `json:"city"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// Missing lists the required fields that are empty.
func (d Details) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"merchantName", d.MerchantName},
		{"category", d.Category},
		{"region", d.Region},
		{"city", d.City},
		{"contactName", d.ContactName},
		{"contactPhone", d.ContactPhone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// merge overwrites fields of d with the non-empty fields of patch.
func (d Details) merge(patch Details) Details {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&d.MerchantName, patch.MerchantName)
	set(&d.Category, patch.Category)
	set(&d.Region, patch.Region)
	set(&d.City, patch.City)
	set(&d.ContactName, patch.ContactName)
	set(&d.ContactPhone, patch.ContactPhone)
	set(&d.ContactEmail, patch.ContactEmail)
	return d
}

type Lead struct {
	ID string `json:"id"`
	Details
	Status        workflow.Status   `json:"status"`
	AssignedOwner *ActorRef         `json:"assignedOwner,omitempty"`
	SubmittedBy   ActorRef          `json:"submittedBy"`
	Timeline      workflow.Timeline `json:"timeline"`
	CreatedAt     time.Time         `json:"createdAt"`
	SubmittedAt   *time.Time        `json:"submittedAt,omitempty"`
	LastUpdatedAt time.Time         `json:"lastUpdatedAt"`

	PreviousLeadID      string   `json:"previousLeadId,omitempty"`
	ResubmissionAllowed bool     `json:"resubmissionAllowed,omitempty"`
	RejectionReason     string   `json:"rejectionReason,omitempty"`
	RequestedInfo       []string `json:"requestedInfo,omitempty"`
}

// Snapshot returns the attributes the validator checks for this lead.
func (l Lead) Snapshot() workflow.Snapshot {
	var snap workflow.Snapshot
	if l.AssignedOwner != nil {
		snap.AssignedOwner = l.AssignedOwner.ID
	}
	snap.RequesterID = l.SubmittedBy.ID
	return snap
}

type Filters struct {
	Status      workflow.Status
	OwnerID     string
	SubmittedBy string
	Region      string
	// Query matches merchant name or city, case-insensitively.
	Query string
}

func (f Filters) match(l Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && (l.AssignedOwner == nil || l.AssignedOwner.ID != f.OwnerID) {
		return false
	}
	if f.SubmittedBy != "" && l.SubmittedBy.ID != f.SubmittedBy {
		return false
	}
	if f.Region != "" && !strings.EqualFold(l.Region, f.Region) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(l.MerchantName), q) && !strings.Contains(strings.ToLower(l.City), q) {
			return false
		}
	}
	return true
}
