package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coselect/workflow"
)

var ErrInvalidProfile = errors.New("profile: invalid profile")

// ProfileStore abstracts repository operations for the service.
type ProfileStore interface {
	GetByID(ctx context.Context, userID string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Upsert(ctx context.Context, p Profile) error
}

// Service exposes profile operations. Writes other than a user's own profile
// require the manage-profile capability.
type Service struct {
	mu   sync.Mutex
	repo ProfileStore
	now  func() time.Time
}

func NewService(repo ProfileStore) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the profile of userID. Unknown users get a NOT_STARTED profile
// rather than an error so eligibility can still be evaluated.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Profile{UserID: userID, KYCStatus: KYCNotStarted}, nil
	}
	return p, err
}

func (s *Service) List(ctx context.Context, actor workflow.Actor) ([]Profile, error) {
	if err := workflow.Authorize(actor, workflow.CapManageProfile); err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	return s.repo.List(ctx)
}

// Save creates or replaces a profile.
func (s *Service) Save(ctx context.Context, actor workflow.Actor, p Profile) (Profile, error) {
	if err := s.authorize(actor, p.UserID); err != nil {
		return Profile{}, err
	}
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return Profile{}, fmt.Errorf("%w: missing user id", ErrInvalidProfile)
	}
	if p.KYCStatus == "" {
		p.KYCStatus = KYCNotStarted
	}
	if !p.KYCStatus.Valid() {
		return Profile{}, fmt.Errorf("%w: kyc status %q", ErrInvalidProfile, p.KYCStatus)
	}
	if p.BankAccount != nil && !p.BankAccount.Complete() {
		return Profile{}, fmt.Errorf("%w: incomplete bank account", ErrInvalidProfile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !workflow.Can(actor, workflow.CapManageProfile) {
		// Users editing their own profile cannot change their KYC outcome.
		existing, err := s.repo.GetByID(ctx, p.UserID)
		switch {
		case err == nil:
			p.KYCStatus = existing.KYCStatus
		case errors.Is(err, ErrNotFound):
			p.KYCStatus = KYCNotStarted
		default:
			return Profile{}, err
		}
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SetKYCStatus records the outcome of a KYC review. Only profile managers may
// call it, including for their own profile.
func (s *Service) SetKYCStatus(ctx context.Context, actor workflow.Actor, userID string, status KYCStatus) (Profile, error) {
	if err := workflow.Authorize(actor, workflow.CapManageProfile); err != nil {
		return Profile{}, fmt.Errorf("profile: set kyc: %w", err)
	}
	if !status.Valid() {
		return Profile{}, fmt.Errorf("%w: kyc status %q", ErrInvalidProfile, status)
	}
	return s.update(ctx, userID, func(p *Profile) { p.KYCStatus = status })
}

// SetBankAccount replaces the payout destination. Existing payouts keep the
// account they were requested with.
func (s *Service) SetBankAccount(ctx context.Context, actor workflow.Actor, userID string, account BankAccount) (Profile, error) {
	if err := s.authorize(actor, userID); err != nil {
		return Profile{}, err
	}
	if !account.Complete() {
		return Profile{}, fmt.Errorf("%w: incomplete bank account", ErrInvalidProfile)
	}
	return s.update(ctx, userID, func(p *Profile) { p.BankAccount = &account })
}

func (s *Service) update(ctx context.Context, userID string, apply func(*Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		p = Profile{UserID: userID, KYCStatus: KYCNotStarted}
	} else if err != nil {
		return Profile{}, err
	}
	apply(&p)
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) authorize(actor workflow.Actor, userID string) error {
	if actor.ID != "" && actor.ID == userID {
		return nil
	}
	if err := workflow.Authorize(actor, workflow.CapManageProfile); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	return nil
}
