package dispute

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

var ErrInvalidInput = errors.New("dispute: invalid input")

type CaseStore interface {
	List(ctx context.Context) ([]Case, error)
	GetByID(ctx context.Context, id string) (Case, error)
	Save(ctx context.Context, c Case) error
}

type Service struct {
	mu          sync.Mutex
	repo        CaseStore
	appender    *workflow.Appender
	publisher   outbox.Publisher
	logger      *slog.Logger
	idGenerator func() string
	// afterFunc schedules the auto-reply; tests replace it with a
	// synchronous call.
	afterFunc func(time.Duration, func())

	policyMu sync.RWMutex
	policy   Policy
}

func NewService(repo CaseStore, publisher outbox.Publisher) *Service {
	return &Service{
		repo:        repo,
		appender:    workflow.NewAppender(),
		publisher:   publisher,
		logger:      slog.Default(),
		idGenerator: func() string { return uuid.NewString() },
		afterFunc:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		policy:      DefaultPolicy,
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

func (s *Service) WithScheduler(afterFunc func(time.Duration, func())) *Service {
	s.afterFunc = afterFunc
	return s
}

func (s *Service) SetPolicy(p Policy) {
	s.policyMu.Lock()
	s.policy = p
	s.policyMu.Unlock()
}

func (s *Service) Policy() Policy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.policy
}

type OpenParams struct {
	Subject     string
	Reference   string
	Description string
}

// Open starts a case for actor with the deadline and evidence requirement of
// the current policy.
func (s *Service) Open(ctx context.Context, actor workflow.Actor, params OpenParams) (Case, error) {
	subject := strings.TrimSpace(params.Subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	policy := s.Policy()
	c := Case{
		ID:                    s.idGenerator(),
		Subject:               subject,
		Reference:             strings.TrimSpace(params.Reference),
		Description:           strings.TrimSpace(params.Description),
		OpenedBy:              ActorRef{ID: actor.ID, Name: actor.Name},
		Status:                workflow.StatusNone,
		Evidence:              []string{},
		RequiredEvidenceCount: policy.RequiredEvidence,
		Messages:              []Message{},
	}
	d := s.validate(c, workflow.DisputeOpen, actor, c.Snapshot())
	if err := d.Err(); err != nil {
		return Case{}, fmt.Errorf("dispute: open: %w", err)
	}
	if subject == "" {
		return Case{}, fmt.Errorf("%w: subject required", ErrInvalidInput)
	}

	c = s.apply(c, d, actor, "", workflow.Fields{"subject": c.Subject, "reference": c.Reference})
	c.CreatedAt = c.UpdatedAt
	c.DeadlineAt = c.CreatedAt.Add(policy.ResponseWindow)
	return s.persist(ctx, c)
}

// AddEvidence attaches an artifact reference. It appends an event but leaves
// the status alone.
func (s *Service) AddEvidence(ctx context.Context, id string, actor workflow.Actor, artifact string) (Case, error) {
	if err := workflow.Authorize(actor, workflow.CapAddEvidence); err != nil {
		return Case{}, fmt.Errorf("dispute: add evidence: %w", err)
	}
	artifact = strings.TrimSpace(artifact)
	if artifact == "" {
		return Case{}, fmt.Errorf("%w: artifact required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if c.OpenedBy.ID != actor.ID {
		return Case{}, ErrForbidden
	}
	if c.Status == workflow.DisputeResolved {
		return Case{}, ErrResolved
	}

	c.Evidence = append(append([]string(nil), c.Evidence...), artifact)
	tl, ev := s.appender.Append(c.Timeline, workflow.EventEvidenceAdded, actor, "", workflow.Evidence{
		Artifact: artifact,
		Count:    len(c.Evidence),
		Required: c.RequiredEvidenceCount,
	})
	c.Timeline = tl
	c.UpdatedAt = ev.OccurredAt
	metrics.TimelineEvents.WithLabelValues(ev.EventType).Inc()
	return s.persist(ctx, c)
}

// RequestEvidence moves an OPEN case to WAITING and raises the evidence
// requirement by additional items.
func (s *Service) RequestEvidence(ctx context.Context, id string, actor workflow.Actor, additional int, note string) (Case, error) {
	if additional <= 0 {
		additional = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Case{}, err
	}
	d := s.validate(c, workflow.DisputeWaiting, actor, c.Snapshot())
	if err := d.Err(); err != nil {
		return Case{}, fmt.Errorf("dispute: request evidence: %w", err)
	}

	c.RequiredEvidenceCount = len(c.Evidence) + additional
	meta := workflow.Fields{
		"from":     string(c.Status),
		"to":       string(workflow.DisputeWaiting),
		"required": c.RequiredEvidenceCount,
	}
	if note = strings.TrimSpace(note); note != "" {
		meta["note"] = note
	}
	c = s.apply(c, d, actor, "", meta)
	return s.persist(ctx, c)
}

// SubmitEvidence returns a WAITING case to OPEN once the opener has attached
// the required number of artifacts.
func (s *Service) SubmitEvidence(ctx context.Context, id string, actor workflow.Actor) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Case{}, err
	}
	d := s.validate(c, workflow.DisputeOpen, actor, c.Snapshot())
	if err := d.Err(); err != nil {
		return Case{}, fmt.Errorf("dispute: submit evidence: %w", err)
	}
	if c.OpenedBy.ID != actor.ID {
		return Case{}, ErrForbidden
	}
	c = s.apply(c, d, actor, "", workflow.Evidence{Count: len(c.Evidence), Required: c.RequiredEvidenceCount})
	return s.persist(ctx, c)
}

// Resolve closes a case with an outcome and summary.
func (s *Service) Resolve(ctx context.Context, id string, actor workflow.Actor, outcome Outcome, summary string) (Case, error) {
	summary = strings.TrimSpace(summary)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Case{}, err
	}
	snap := c.Snapshot()
	snap.Resolution = summary
	d := s.validate(c, workflow.DisputeResolved, actor, snap)
	if err := d.Err(); err != nil {
		return Case{}, fmt.Errorf("dispute: resolve: %w", err)
	}
	if !outcome.Valid() {
		return Case{}, fmt.Errorf("%w: outcome %q", ErrInvalidInput, outcome)
	}

	c = s.apply(c, d, actor, "", workflow.Resolution{
		StatusChange: workflow.StatusChange{From: c.Status, To: workflow.DisputeResolved},
		Outcome:      string(outcome),
		Summary:      summary,
	})
	c.Resolution = &Resolution{
		Outcome:    outcome,
		Summary:    summary,
		ResolvedBy: ActorRef{ID: actor.ID, Name: actor.Name},
		ResolvedAt: c.UpdatedAt,
	}
	return s.persist(ctx, c)
}

// PostMessage adds a message to the case thread. A message from the opener
// schedules one system auto-reply after the policy delay; the reply is
// fire-and-forget and cannot be cancelled.
func (s *Service) PostMessage(ctx context.Context, id string, actor workflow.Actor, body string) (Case, error) {
	if err := workflow.Authorize(actor, workflow.CapPostMessage); err != nil {
		return Case{}, fmt.Errorf("dispute: post message: %w", err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Case{}, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	c, err := s.addMessage(ctx, id, actor, body)
	if err != nil {
		return Case{}, err
	}

	if actor.Role == workflow.RoleCoSelector {
		policy := s.Policy()
		s.afterFunc(policy.AutoReplyDelay, func() { s.autoReply(id, policy.AutoReplyMessage) })
	}
	return c, nil
}

func (s *Service) addMessage(ctx context.Context, id string, actor workflow.Actor, body string) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if actor.Role == workflow.RoleCoSelector && c.OpenedBy.ID != actor.ID {
		return Case{}, ErrForbidden
	}
	if c.Status == workflow.DisputeResolved {
		return Case{}, ErrResolved
	}
	now := s.appender.Now()
	c.Messages = append(append([]Message(nil), c.Messages...), Message{
		ID:         s.idGenerator(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		AuthorRole: actor.Role,
		Body:       body,
		SentAt:     now,
	})
	c.UpdatedAt = now
	if err := s.repo.Save(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

func (s *Service) autoReply(id, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.addMessage(ctx, id, workflow.SystemActor, body); err != nil {
		s.logger.Warn("dispute auto-reply failed", "case_id", id, "err", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (Case, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the cases visible to actor with their urgency, most urgent
// first and then by deadline.
func (s *Service) List(ctx context.Context, actor workflow.Actor, filters Filters) ([]Summary, error) {
	if !workflow.Can(actor, workflow.CapViewAllCases) {
		filters.OpenedBy = actor.ID
	}
	cases, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.appender.Now()
	policy := s.Policy()
	observeOpen(cases, now, policy)
	out := make([]Summary, 0, len(cases))
	for _, c := range cases {
		u := Classify(c, now, policy)
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.OpenedBy != "" && c.OpenedBy.ID != filters.OpenedBy {
			continue
		}
		if filters.Urgency != "" && u != filters.Urgency {
			continue
		}
		out = append(out, Summary{Case: c, Urgency: u})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := urgencyRank[out[i].Urgency], urgencyRank[out[j].Urgency]
		if ri != rj {
			return ri > rj
		}
		return out[i].DeadlineAt.Before(out[j].DeadlineAt)
	})
	return out, nil
}

// observeOpen sets the open disputes gauge from every case in the collection.
func observeOpen(cases []Case, now time.Time, policy Policy) {
	counts := map[Urgency]float64{}
	for _, c := range cases {
		counts[Classify(c, now, policy)]++
	}
	for _, u := range []Urgency{UrgencyNormal, UrgencySoon, UrgencyUrgent, UrgencyOverdue} {
		metrics.OpenDisputes.WithLabelValues(string(u)).Set(counts[u])
	}
}

var urgencyRank = map[Urgency]int{
	UrgencyNone:    0,
	UrgencyNormal:  1,
	UrgencySoon:    2,
	UrgencyUrgent:  3,
	UrgencyOverdue: 4,
}

// Classify returns the urgency of c under the current policy.
func (s *Service) Classify(c Case) Urgency {
	return Classify(c, s.appender.Now(), s.Policy())
}

func (s *Service) AvailableTargets(c Case, actor workflow.Actor) []workflow.Status {
	return workflow.AvailableTargets(workflow.EntityDispute, c.Status, actor, c.Snapshot())
}

func (s *Service) validate(c Case, to workflow.Status, actor workflow.Actor, snap workflow.Snapshot) workflow.Decision {
	d := workflow.Validate(workflow.EntityDispute, c.Status, to, actor, snap)
	metrics.ObserveDecision(d)
	return d
}

func (s *Service) apply(c Case, d workflow.Decision, actor workflow.Actor, reasonCode string, meta workflow.Metadata) Case {
	tl, ev := s.appender.Append(c.Timeline, d.Edge.EventType, actor, reasonCode, meta)
	c.Timeline = tl
	c.Status = d.To
	c.UpdatedAt = ev.OccurredAt
	metrics.TimelineEvents.WithLabelValues(ev.EventType).Inc()
	return c
}

func (s *Service) persist(ctx context.Context, c Case) (Case, error) {
	if err := s.repo.Save(ctx, c); err != nil {
		return Case{}, err
	}
	if cases, err := s.repo.List(ctx); err == nil {
		observeOpen(cases, c.UpdatedAt, s.Policy())
	} else {
		s.logger.WarnContext(ctx, "open disputes gauge not refreshed", "err", err)
	}
	if ev, ok := c.Timeline.Last(); ok {
		outbox.Notify(ctx, s.publisher, s.logger, outbox.FromEvent(workflow.EntityDispute, c.ID, c.Status, ev))
	}
	return c, nil
}
