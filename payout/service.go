package payout

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
	"github.com/shopspring/decimal"

	"coselect/metrics"
	"coselect/outbox"
	"coselect/profile"
	"coselect/workflow"
)

var (
	ErrReasonRequired    = errors.New("payout: reason required")
	ErrReferenceRequired = errors.New("payout: payment reference required")
	ErrInvalidAmount     = errors.New("payout: invalid amount")
	ErrInvalidStatus     = errors.New("payout: invalid transaction status")
	ErrUncovered         = errors.New("payout: transactions do not cover amount")
)

// DefaultMinimumThreshold applies until configuration sets another value.
var DefaultMinimumThreshold = decimal.NewFromInt(50)

// PayoutStore abstracts repository operations for the service.
type PayoutStore interface {
	ListPayouts(ctx context.Context) ([]Payout, error)
	GetPayout(ctx context.Context, id string) (Payout, error)
	SavePayout(ctx context.Context, p Payout) error
	ListTransactions(ctx context.Context) ([]Transaction, error)
	SaveTransaction(ctx context.Context, tx Transaction) error
}

// ProfileReader supplies the KYC status and bank account of a requester.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (profile.Profile, error)
}

type Service struct {
	mu          sync.Mutex
	repo        PayoutStore
	profiles    ProfileReader
	appender    *workflow.Appender
	publisher   outbox.Publisher
	logger      *slog.Logger
	idGenerator func() string

	thresholdMu sync.RWMutex
	minimum     decimal.Decimal
}

func NewService(repo PayoutStore, profiles ProfileReader, publisher outbox.Publisher) *Service {
	return &Service{
		repo:        repo,
		profiles:    profiles,
		appender:    workflow.NewAppender(),
		publisher:   publisher,
		logger:      slog.Default(),
		idGenerator: func() string { return uuid.NewString() },
		minimum:     DefaultMinimumThreshold,
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

// SetMinimumThreshold replaces the minimum payable balance required to
// request a payout. Config hot reload calls it.
func (s *Service) SetMinimumThreshold(minimum decimal.Decimal) {
	s.thresholdMu.Lock()
	s.minimum = minimum
	s.thresholdMu.Unlock()
}

func (s *Service) MinimumThreshold() decimal.Decimal {
	s.thresholdMu.RLock()
	defer s.thresholdMu.RUnlock()
	return s.minimum
}

// Eligibility is the outcome of evaluating a user for a payout request.
type Eligibility struct {
	Issues  []Issue         `json:"issues"`
	Balance Balance         `json:"balance"`
	Minimum decimal.Decimal `json:"minimum"`
}

func (e Eligibility) Eligible() bool { return len(e.Issues) == 0 }

// Eligibility evaluates userID against its current profile and balance.
func (s *Service) Eligibility(ctx context.Context, userID string) (Eligibility, error) {
	txs, payouts, err := s.load(ctx)
	if err != nil {
		return Eligibility{}, err
	}
	elig, _, err := s.evaluate(ctx, userID, txs, payouts)
	return elig, err
}

func (s *Service) evaluate(ctx context.Context, userID string, txs []Transaction, payouts []Payout) (Eligibility, profile.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return Eligibility{}, profile.Profile{}, fmt.Errorf("payout: load profile: %w", err)
	}
	bal := ComputeBalance(userID, txs, payouts)
	minimum := s.MinimumThreshold()
	issues := Evaluate(p, bal.Available, minimum)
	if issues == nil {
		issues = []Issue{}
	}
	return Eligibility{Issues: issues, Balance: bal, Minimum: minimum}, p, nil
}

// Balance returns the balance summary of userID.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	txs, payouts, err := s.load(ctx)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(userID, txs, payouts), nil
}

// Request creates a payout for actor. Eligibility and balance are evaluated
// again here rather than trusted from an earlier Eligibility call.
func (s *Service) Request(ctx context.Context, actor workflow.Actor, amount decimal.Decimal) (Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, payouts, err := s.load(ctx)
	if err != nil {
		return Payout{}, err
	}
	elig, prof, err := s.evaluate(ctx, actor.ID, txs, payouts)
	if err != nil {
		return Payout{}, err
	}
	amount = amount.Round(2)

	d := workflow.Validate(workflow.EntityPayout, workflow.StatusNone, workflow.PayoutRequested, actor, workflow.Snapshot{
		RequesterID:    actor.ID,
		Amount:         amount,
		PayableBalance: elig.Balance.Available,
		Issues:         codes(elig.Issues),
	})
	metrics.ObserveDecision(d)
	if err := d.Err(); err != nil {
		return Payout{}, fmt.Errorf("payout: request: %w", err)
	}

	ids, covered := coverTransactions(actor.ID, amount, txs, payouts)
	if covered.LessThan(amount) {
		return Payout{}, fmt.Errorf("%w: %s of %s", ErrUncovered, covered.StringFixed(2), amount.StringFixed(2))
	}

	p := Payout{
		ID:             s.idGenerator(),
		RequesterID:    actor.ID,
		RequesterName:  actor.Name,
		Amount:         amount,
		BankAccount:    *prof.BankAccount,
		TransactionIDs: ids,
	}
	p = s.apply(p, d, actor, "", workflow.PayoutRequest{
		Amount:         amount.StringFixed(2),
		BankName:       p.BankAccount.BankName,
		TransactionIDs: p.TransactionIDs,
	})
	p.RequestedAt = p.UpdatedAt
	return s.persist(ctx, p)
}

// TransitionParams carries the optional inputs of a status change.
type TransitionParams struct {
	To         workflow.Status
	Reason     string
	ReasonCode string
	Reference  string
}

func (s *Service) Approve(ctx context.Context, id string, actor workflow.Actor) (Payout, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.PayoutApproved})
}

func (s *Service) Reject(ctx context.Context, id string, actor workflow.Actor, reason string) (Payout, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.PayoutRejected, Reason: reason})
}

func (s *Service) Cancel(ctx context.Context, id string, actor workflow.Actor) (Payout, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.PayoutCancelled})
}

func (s *Service) MarkPaid(ctx context.Context, id string, actor workflow.Actor, reference string) (Payout, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.PayoutPaid, Reference: reference})
}

func (s *Service) MarkFailed(ctx context.Context, id string, actor workflow.Actor, reason string) (Payout, error) {
	return s.Transition(ctx, id, actor, TransitionParams{To: workflow.PayoutFailed, Reason: reason})
}

// Transition moves an existing payout to params.To.
func (s *Service) Transition(ctx context.Context, id string, actor workflow.Actor, params TransitionParams) (Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.repo.GetPayout(ctx, id)
	if err != nil {
		return Payout{}, err
	}

	d := workflow.Validate(workflow.EntityPayout, p.Status, params.To, actor, p.Snapshot())
	metrics.ObserveDecision(d)
	if err := d.Err(); err != nil {
		return Payout{}, fmt.Errorf("payout: transition: %w", err)
	}

	reason := strings.TrimSpace(params.Reason)
	reference := strings.TrimSpace(params.Reference)
	switch params.To {
	case workflow.PayoutRejected, workflow.PayoutFailed:
		if reason == "" {
			return Payout{}, ErrReasonRequired
		}
	case workflow.PayoutPaid:
		if reference == "" {
			return Payout{}, ErrReferenceRequired
		}
	}

	meta := workflow.PaymentResult{
		StatusChange: workflow.StatusChange{From: p.Status, To: params.To},
		Amount:       p.Amount.StringFixed(2),
		Reference:    reference,
		Reason:       reason,
	}
	p = s.apply(p, d, actor, params.ReasonCode, meta)
	switch params.To {
	case workflow.PayoutRejected:
		p.RejectionReason = reason
	case workflow.PayoutFailed:
		p.FailureReason = reason
	case workflow.PayoutPaid:
		p.PaymentReference = reference
	}
	return s.persist(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (Payout, error) {
	return s.repo.GetPayout(ctx, id)
}

// List returns payouts visible to actor, newest request first. Actors
// without the view-payouts capability only see their own.
func (s *Service) List(ctx context.Context, actor workflow.Actor, filters Filters) ([]Payout, error) {
	if !workflow.Can(actor, workflow.CapViewPayouts) {
		filters.RequesterID = actor.ID
	}
	all, err := s.repo.ListPayouts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Payout, 0, len(all))
	for _, p := range all {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.RequesterID != "" && p.RequesterID != filters.RequesterID {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *Service) AvailableTargets(p Payout, actor workflow.Actor) []workflow.Status {
	return workflow.AvailableTargets(workflow.EntityPayout, p.Status, actor, p.Snapshot())
}

// RecordTransaction credits an earning to a co-selector.
func (s *Service) RecordTransaction(ctx context.Context, actor workflow.Actor, tx Transaction) (Transaction, error) {
	if err := workflow.Authorize(actor, workflow.CapRecordEarning); err != nil {
		return Transaction{}, fmt.Errorf("payout: record transaction: %w", err)
	}
	if strings.TrimSpace(tx.OwnerID) == "" {
		return Transaction{}, fmt.Errorf("payout: record transaction: missing owner id")
	}
	if !tx.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, tx.Amount.String())
	}
	if tx.Status == "" {
		tx.Status = TxPending
	}
	if !tx.Status.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, tx.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = s.idGenerator()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.appender.Now()
	}
	if err := s.repo.SaveTransaction(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// SetTransactionStatus moves an earning between PENDING, PAYABLE, PAID and
// REVERSED, e.g. once the merchant clears its first order.
func (s *Service) SetTransactionStatus(ctx context.Context, actor workflow.Actor, id string, status TransactionStatus) (Transaction, error) {
	if err := workflow.Authorize(actor, workflow.CapRecordEarning); err != nil {
		return Transaction{}, fmt.Errorf("payout: set transaction status: %w", err)
	}
	if !status.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return Transaction{}, err
	}
	for _, tx := range txs {
		if tx.ID == id {
			tx.Status = status
			if err := s.repo.SaveTransaction(ctx, tx); err != nil {
				return Transaction{}, err
			}
			return tx, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

// ListTransactions returns the transactions of ownerID, oldest first. Actors
// may only list their own unless they can view all payouts.
func (s *Service) ListTransactions(ctx context.Context, actor workflow.Actor, ownerID string) ([]Transaction, error) {
	if ownerID != actor.ID && !workflow.Can(actor, workflow.CapViewPayouts) {
		return nil, fmt.Errorf("payout: list transactions: %w", workflow.ErrUnauthorized)
	}
	all, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if ownerID == "" || tx.OwnerID == ownerID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) load(ctx context.Context) ([]Transaction, []Payout, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	payouts, err := s.repo.ListPayouts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return txs, payouts, nil
}

func (s *Service) apply(p Payout, d workflow.Decision, actor workflow.Actor, reasonCode string, meta workflow.Metadata) Payout {
	tl, ev := s.appender.Append(p.Timeline, d.Edge.EventType, actor, reasonCode, meta)
	p.Timeline = tl
	p.Status = d.To
	p.UpdatedAt = ev.OccurredAt
	metrics.TimelineEvents.WithLabelValues(ev.EventType).Inc()
	return p
}

func (s *Service) persist(ctx context.Context, p Payout) (Payout, error) {
	if err := s.repo.SavePayout(ctx, p); err != nil {
		return Payout{}, err
	}
	if ev, ok := p.Timeline.Last(); ok {
		outbox.Notify(ctx, s.publisher, s.logger, outbox.FromEvent(workflow.EntityPayout, p.ID, p.Status, ev))
	}
	return p, nil
}
