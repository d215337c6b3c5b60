package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coselect/metrics"
	"coselect/outbox"
	"coselect/workflow"
)

var (
	ErrIncomplete         = errors.New("lead: required fields missing")
	ErrReasonRequired     = errors.New("lead: rejection reason required")
	ErrClosed             = errors.New("lead: lead is closed")
	ErrNotEditable        = errors.New("lead: lead is not editable")
	ErrResubmitForbidden  = errors.New("lead: resubmission not allowed")
	ErrAlreadyResubmitted = errors.New("lead: already resubmitted")
)

// LeadStore abstracts repository operations for the service.
type LeadStore interface {
	List(ctx context.Context) ([]Lead, error)
	GetByID(ctx context.Context, id string) (Lead, error)
	Save(ctx context.Context, l Lead) error
}

// Service applies lead lifecycle changes. Each mutation validates the
// transition, appends one timeline event, saves, then publishes.
type Service struct {
	mu          sync.Mutex
	repo        LeadStore
	appender    *workflow.Appender
	publisher   outbox.Publisher
	logger      *slog.Logger
	idGenerator func() string
}

func NewService(repo LeadStore, publisher outbox.Publisher) *Service {
	return &Service{
		repo:        repo,
		appender:    workflow.NewAppender(),
		publisher:   publisher,
		logger:      slog.Default(),
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.appender.WithClock(now)
	return s
}

func (s *Service) WithAppender(a *workflow.Appender) *Service {
	s.appender = a
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// TransitionParams carries the optional inputs of a status change.
type TransitionParams struct {
	To                  workflow.Status
	Reason              string
	ReasonCode          string
	ResubmissionAllowed bool
	RequestedFields     []string
	Note                string
	// Changes are applied to the lead details on resubmission.
	Changes Details
}

// CreateDraft starts a new lead owned by the co-selector.
func (s *Service) CreateDraft(ctx context.Context, actor workflow.Actor, details Details) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := Lead{
		ID:          s.idGenerator(),
		Details:     Details{}.merge(details),
		Status:      workflow.StatusNone,
		SubmittedBy: refOf(actor),
	}
	l, err := s.advance(l, actor, workflow.LeadDraft, "", nil)
	if err != nil {
		return Lead{}, err
	}
	l.CreatedAt = l.LastUpdatedAt
	return s.persist(ctx, l)
}

// UpdateDraft edits the details of a DRAFT or INFO_REQUESTED lead. Only the
// submitter may edit, and no event is appended.
func (s *Service) UpdateDraft(ctx context.Context, id string, actor workflow.Actor, changes Details) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if l.Status != workflow.LeadDraft && l.Status != workflow.LeadInfoRequested {
		return Lead{}, fmt.Errorf("%w: status %s", ErrNotEditable, l.Status)
	}
	if actor.ID != l.SubmittedBy.ID {
		return Lead{}, fmt.Errorf("lead: update draft: %w", workflow.ErrUnauthorized)
	}
	l.Details = l.Details.merge(changes)
	l.LastUpdatedAt = s.appender.Now()
	if err := s.repo.Save(ctx, l); err != nil {
		return Lead{}, err
	}
	return l, nil
}

// Submit sends a draft for review.
func (s *Service) Submit(ctx context.Context, id string, actor workflow.Actor) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadSubmitted})
}

func (s *Service) StartReview(ctx context.Context, id string, actor workflow.Actor) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadUnderReview})
}

func (s *Service) RequestInfo(ctx context.Context, id string, actor workflow.Actor, fields []string, note string) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadInfoRequested, RequestedFields: fields, Note: note})
}

func (s *Service) Approve(ctx context.Context, id string, actor workflow.Actor) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadApproved})
}

func (s *Service) Reject(ctx context.Context, id string, actor workflow.Actor, reason string, resubmissionAllowed bool) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadRejected, Reason: reason, ResubmissionAllowed: resubmissionAllowed})
}

// Resubmit answers an information request with updated details.
func (s *Service) Resubmit(ctx context.Context, id string, actor workflow.Actor, changes Details) (Lead, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.LeadResubmitted, Changes: changes})
}

// Transition moves a lead to params.To.
func (s *Service) Transition(ctx context.Context, id string, actor workflow.Actor, params TransitionParams) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	from := l.Status
	change := workflow.StatusChange{From: from, To: params.To}

	var meta workflow.Metadata = change
	switch params.To {
	case workflow.LeadSubmitted:
		meta = nil
	case workflow.LeadInfoRequested:
		meta = workflow.InfoRequest{StatusChange: change, Requested: params.RequestedFields, Note: strings.TrimSpace(params.Note)}
	case workflow.LeadRejected:
		meta = workflow.Rejection{StatusChange: change, Reason: strings.TrimSpace(params.Reason), ResubmissionAllowed: params.ResubmissionAllowed}
	}

	// The validator runs before input checks so a denied transition is
	// reported as such even when the input is also incomplete.
	d := workflow.Validate(workflow.EntityLead, from, params.To, actor, l.Snapshot())
	metrics.ObserveDecision(d)
	if err := d.Err(); err != nil {
		return Lead{}, fmt.Errorf("lead: transition: %w", err)
	}

	if (params.To == workflow.LeadSubmitted || params.To == workflow.LeadResubmitted) && actor.ID != l.SubmittedBy.ID {
		return Lead{}, fmt.Errorf("lead: transition: %w: only the submitter may send the lead for review", workflow.ErrUnauthorized)
	}

	switch params.To {
	case workflow.LeadSubmitted:
		if missing := l.Missing(); len(missing) > 0 {
			return Lead{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
		}
	case workflow.LeadRejected:
		if strings.TrimSpace(params.Reason) == "" {
			return Lead{}, ErrReasonRequired
		}
	case workflow.LeadResubmitted:
		l.Details = l.Details.merge(params.Changes)
		if missing := l.Missing(); len(missing) > 0 {
			return Lead{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
		}
	}

	l = s.apply(l, d, actor, params.ReasonCode, meta)
	switch params.To {
	case workflow.LeadSubmitted:
		at := l.LastUpdatedAt
		l.SubmittedAt = &at
	case workflow.LeadInfoRequested:
		l.RequestedInfo = append([]string(nil), params.RequestedFields...)
	case workflow.LeadResubmitted:
		l.RequestedInfo = nil
	case workflow.LeadRejected:
		l.RejectionReason = strings.TrimSpace(params.Reason)
		l.ResubmissionAllowed = params.ResubmissionAllowed
	}
	return s.persist(ctx, l)
}

// AssignOwner sets or replaces the reviewing owner of an open lead.
func (s *Service) AssignOwner(ctx context.Context, id string, actor workflow.Actor, owner ActorRef) (Lead, error) {
	if err := workflow.Authorize(actor, workflow.CapAssignOwner); err != nil {
		return Lead{}, fmt.Errorf("lead: assign owner: %w", err)
	}
	if strings.TrimSpace(owner.ID) == "" {
		return Lead{}, fmt.Errorf("lead: assign owner: missing owner id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if workflow.IsTerminal(workflow.EntityLead, l.Status) {
		return Lead{}, fmt.Errorf("%w: status %s", ErrClosed, l.Status)
	}
	if l.Status == workflow.LeadDraft {
		return Lead{}, fmt.Errorf("%w: draft leads have no reviewer", ErrNotEditable)
	}

	meta := workflow.OwnerAssignment{OwnerID: owner.ID, OwnerName: owner.Name}
	if l.AssignedOwner != nil {
		meta.Previous = l.AssignedOwner.Name
	}
	tl, ev := s.appender.Append(l.Timeline, workflow.EventOwnerAssigned, actor, "", meta)
	l.Timeline = tl
	l.AssignedOwner = &owner
	l.LastUpdatedAt = ev.OccurredAt
	metrics.TimelineEvents.WithLabelValues(ev.EventType).Inc()
	return s.persist(ctx, l)
}

// ResubmitRejected creates a new submitted lead from a rejected one whose
// rejection allowed resubmission. The rejected lead stays untouched.
func (s *Service) ResubmitRejected(ctx context.Context, id string, actor workflow.Actor, changes Details) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads, err := s.repo.List(ctx)
	if err != nil {
		return Lead{}, err
	}
	var prev *Lead
	for i := range leads {
		if leads[i].ID == id {
			prev = &leads[i]
		}
	}
	if prev == nil {
		return Lead{}, ErrNotFound
	}
	if prev.Status != workflow.LeadRejected || !prev.ResubmissionAllowed {
		return Lead{}, ErrResubmitForbidden
	}
	if actor.ID != prev.SubmittedBy.ID {
		return Lead{}, fmt.Errorf("lead: resubmit: %w", workflow.ErrUnauthorized)
	}
	for _, l := range leads {
		if l.PreviousLeadID == id {
			return Lead{}, fmt.Errorf("%w: see lead %s", ErrAlreadyResubmitted, l.ID)
		}
	}

	next := Lead{
		ID:             s.idGenerator(),
		Details:        prev.Details.merge(changes),
		Status:         workflow.StatusNone,
		SubmittedBy:    refOf(actor),
		PreviousLeadID: prev.ID,
	}
	if missing := next.Missing(); len(missing) > 0 {
		return Lead{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	next, err = s.advance(next, actor, workflow.LeadDraft, "", workflow.Fields{"previousLeadId": prev.ID})
	if err != nil {
		return Lead{}, err
	}
	next.CreatedAt = next.LastUpdatedAt
	next, err = s.advance(next, actor, workflow.LeadSubmitted, "", nil)
	if err != nil {
		return Lead{}, err
	}
	at := next.LastUpdatedAt
	next.SubmittedAt = &at
	return s.persist(ctx, next)
}

func (s *Service) Get(ctx context.Context, id string) (Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the leads visible to actor, most recently updated first.
// Actors without the view-all capability only see leads they submitted.
func (s *Service) List(ctx context.Context, actor workflow.Actor, filters Filters) ([]Lead, error) {
	if !workflow.Can(actor, workflow.CapViewAllLeads) {
		filters.SubmittedBy = actor.ID
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Lead, 0, len(all))
	for _, l := range all {
		if filters.match(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUpdatedAt.After(out[j].LastUpdatedAt) })
	return out, nil
}

// AvailableTargets lists the statuses actor may move the lead to.
func (s *Service) AvailableTargets(l Lead, actor workflow.Actor) []workflow.Status {
	return workflow.AvailableTargets(workflow.EntityLead, l.Status, actor, l.Snapshot())
}

// advance validates and applies one transition in memory.
func (s *Service) advance(l Lead, actor workflow.Actor, to workflow.Status, reasonCode string, meta workflow.Metadata) (Lead, error) {
	d := workflow.Validate(workflow.EntityLead, l.Status, to, actor, l.Snapshot())
	metrics.ObserveDecision(d)
	if err := d.Err(); err != nil {
		return Lead{}, fmt.Errorf("lead: transition: %w", err)
	}
	return s.apply(l, d, actor, reasonCode, meta), nil
}

func (s *Service) apply(l Lead, d workflow.Decision, actor workflow.Actor, reasonCode string, meta workflow.Metadata) Lead {
	tl, ev := s.appender.Append(l.Timeline, d.Edge.EventType, actor, reasonCode, meta)
	l.Timeline = tl
	l.Status = d.To
	l.LastUpdatedAt = ev.OccurredAt
	metrics.TimelineEvents.WithLabelValues(ev.EventType).Inc()
	return l
}

func (s *Service) persist(ctx context.Context, l Lead) (Lead, error) {
	if err := s.repo.Save(ctx, l); err != nil {
		return Lead{}, err
	}
	if ev, ok := l.Timeline.Last(); ok {
		outbox.Notify(ctx, s.publisher, s.logger, outbox.FromEvent(workflow.EntityLead, l.ID, l.Status, ev))
	}
	return l, nil
}
