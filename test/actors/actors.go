package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"coselect/dispute"
	"coselect/lead"
	"coselect/payout"
	"coselect/store"
	"coselect/workflow"
)

// expected reports whether err is a refusal that concurrent actors are bound
// to provoke, as opposed to a bug.
func expected(err error) bool {
	for _, target := range []error{
		workflow.ErrInvalidTransition,
		workflow.ErrUnauthorized,
		workflow.ErrPreconditionFailed,
		store.ErrStorage,
		lead.ErrNotFound,
		lead.ErrClosed,
		lead.ErrNotEditable,
		lead.ErrResubmitForbidden,
		lead.ErrAlreadyResubmitted,
		payout.ErrNotFound,
		payout.ErrUncovered,
		dispute.ErrNotFound,
		dispute.ErrResolved,
		dispute.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// loop runs step with a short random pause until ctx is done or stop is
// closed. Unexpected errors end the loop.
func loop(ctx context.Context, name string, rng *rand.Rand, stop <-chan struct{}, step func() error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := step(); err != nil && !expected(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		time.Sleep(time.Duration(5+rng.Intn(15)) * time.Millisecond)
	}
}

func pick[T any](rng *rand.Rand, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[rng.Intn(len(items))], true
}

// Submitter drafts and submits leads, answers info requests, and sometimes
// resubmits a rejected lead.
func Submitter(ctx context.Context, svc *lead.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	n := 0
	return loop(ctx, "submitter "+actor.ID, rng, stop, func() error {
		mine, err := svc.List(ctx, actor, lead.Filters{})
		if err != nil {
			return err
		}
		for _, l := range mine {
			switch {
			case l.Status == workflow.LeadInfoRequested:
				_, err := svc.Resubmit(ctx, l.ID, actor, lead.Details{ContactEmail: actor.ID + "@example.com"})
				return err
			case l.Status == workflow.LeadRejected && l.ResubmissionAllowed && rng.Intn(3) == 0:
				_, err := svc.ResubmitRejected(ctx, l.ID, actor, lead.Details{})
				return err
			}
		}

		n++
		created, err := svc.CreateDraft(ctx, actor, lead.Details{
			MerchantName: fmt.Sprintf("%s shop %d", actor.Name, n),
			Category:     "Food",
			Region:       []string{"North", "South", "East"}[rng.Intn(3)],
			City:         "Springfield",
			ContactName:  "Owner",
			ContactPhone: fmt.Sprintf("555-%04d", rng.Intn(10000)),
		})
		if err != nil {
			return err
		}
		_, err = svc.Submit(ctx, created.ID, actor)
		return err
	})
}

// Reviewer moves a random open lead one step through review.
func Reviewer(ctx context.Context, svc *lead.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	return loop(ctx, "reviewer "+actor.ID, rng, stop, func() error {
		all, err := svc.List(ctx, actor, lead.Filters{})
		if err != nil {
			return err
		}
		var open []lead.Lead
		for _, l := range all {
			if !workflow.IsTerminal(workflow.EntityLead, l.Status) && l.Status != workflow.LeadDraft {
				open = append(open, l)
			}
		}
		l, ok := pick(rng, open)
		if !ok {
			return nil
		}

		switch l.Status {
		case workflow.LeadSubmitted, workflow.LeadResubmitted:
			if rng.Intn(4) == 0 {
				_, err = svc.RequestInfo(ctx, l.ID, actor, []string{"contactEmail"}, "please add an email")
			} else {
				_, err = svc.StartReview(ctx, l.ID, actor)
			}
		case workflow.LeadUnderReview, workflow.LeadInfoRequested:
			switch {
			case l.AssignedOwner == nil:
				_, err = svc.AssignOwner(ctx, l.ID, actor, lead.ActorRef{ID: actor.ID, Name: actor.Name})
			case rng.Intn(3) == 0:
				_, err = svc.Reject(ctx, l.ID, actor, "duplicate merchant", rng.Intn(2) == 0)
			default:
				_, err = svc.Approve(ctx, l.ID, actor)
			}
		}
		return err
	})
}

// Requester asks for payouts of random size and cancels some of them.
func Requester(ctx context.Context, svc *payout.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	return loop(ctx, "requester "+actor.ID, rng, stop, func() error {
		if rng.Intn(4) == 0 {
			mine, err := svc.List(ctx, actor, payout.Filters{Status: workflow.PayoutRequested})
			if err != nil {
				return err
			}
			if p, ok := pick(rng, mine); ok {
				_, err = svc.Cancel(ctx, p.ID, actor)
			}
			return err
		}
		amount := decimal.NewFromInt(int64(40 + rng.Intn(120)))
		_, err := svc.Request(ctx, actor, amount)
		return err
	})
}

// Settler approves, rejects, pays and fails payouts.
func Settler(ctx context.Context, svc *payout.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	n := 0
	return loop(ctx, "settler "+actor.ID, rng, stop, func() error {
		all, err := svc.List(ctx, actor, payout.Filters{})
		if err != nil {
			return err
		}
		var open []payout.Payout
		for _, p := range all {
			if p.Status == workflow.PayoutRequested || p.Status == workflow.PayoutApproved {
				open = append(open, p)
			}
		}
		p, ok := pick(rng, open)
		if !ok {
			return nil
		}

		switch {
		case p.Status == workflow.PayoutRequested && rng.Intn(5) == 0:
			_, err = svc.Reject(ctx, p.ID, actor, "bank details under review")
		case p.Status == workflow.PayoutRequested:
			_, err = svc.Approve(ctx, p.ID, actor)
		case rng.Intn(6) == 0:
			_, err = svc.MarkFailed(ctx, p.ID, actor, "transfer bounced")
		default:
			n++
			_, err = svc.MarkPaid(ctx, p.ID, actor, fmt.Sprintf("TRF-%s-%d", actor.ID, n))
		}
		return err
	})
}

// Disputer opens cases, uploads evidence and chats on its own cases.
func Disputer(ctx context.Context, svc *dispute.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	n := 0
	return loop(ctx, "disputer "+actor.ID, rng, stop, func() error {
		mine, err := svc.List(ctx, actor, dispute.Filters{})
		if err != nil {
			return err
		}
		var open []dispute.Summary
		for _, c := range mine {
			if c.Status != workflow.DisputeResolved {
				open = append(open, c)
			}
		}

		c, ok := pick(rng, open)
		if !ok || rng.Intn(5) == 0 {
			n++
			_, err := svc.Open(ctx, actor, dispute.OpenParams{
				Subject:   fmt.Sprintf("Commission mismatch %d", n),
				Reference: fmt.Sprintf("TX-%d", rng.Intn(1000)),
			})
			return err
		}

		switch {
		case c.Status == workflow.DisputeWaiting && len(c.Evidence) >= c.RequiredEvidenceCount:
			_, err = svc.SubmitEvidence(ctx, c.ID, actor)
		case rng.Intn(2) == 0:
			n++
			_, err = svc.AddEvidence(ctx, c.ID, actor, fmt.Sprintf("receipt-%d.pdf", n))
		default:
			_, err = svc.PostMessage(ctx, c.ID, actor, "any update?")
		}
		return err
	})
}

// Handler asks for evidence on and resolves open cases.
func Handler(ctx context.Context, svc *dispute.Service, actor workflow.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	outcomes := []dispute.Outcome{dispute.OutcomeUpheld, dispute.OutcomePartial, dispute.OutcomeDenied}
	return loop(ctx, "handler "+actor.ID, rng, stop, func() error {
		all, err := svc.List(ctx, actor, dispute.Filters{})
		if err != nil {
			return err
		}
		var open []dispute.Summary
		for _, c := range all {
			if c.Status != workflow.DisputeResolved {
				open = append(open, c)
			}
		}
		c, ok := pick(rng, open)
		if !ok {
			return nil
		}

		switch {
		case c.Status == workflow.DisputeOpen && rng.Intn(2) == 0:
			_, err = svc.RequestEvidence(ctx, c.ID, actor, 1+rng.Intn(2), "please upload the invoice")
		case rng.Intn(3) == 0:
			outcome, _ := pick(rng, outcomes)
			_, err = svc.Resolve(ctx, c.ID, actor, outcome, "reviewed against the ledger")
		default:
			_, err = svc.PostMessage(ctx, c.ID, actor, "looking into it")
		}
		return err
	})
}
