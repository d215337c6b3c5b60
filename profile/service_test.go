package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"coselect/store"
	"coselect/workflow"
)

var (
	finance = workflow.Actor{ID: "fin-1", Name: "Fina", Role: workflow.RoleFinance}
	cosel   = workflow.Actor{ID: "co-1", Name: "Cole", Role: workflow.RoleCoSelector}
)

func newTestService() *Service {
	clock := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	return NewService(NewRepository(store.NewMemory())).WithClock(func() time.Time { return clock })
}

func TestGet_UnknownUserIsNotStarted(t *testing.T) {
	p, err := newTestService().Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.KYCStatus != KYCNotStarted || p.BankAccount != nil {
		t.Fatalf("unexpected default profile %+v", p)
	}
}

func TestSetBankAccount_OwnProfile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	acct := BankAccount{BankName: "BCA", AccountHolder: "Cole", AccountNumber: "1234567890"}

	p, err := svc.SetBankAccount(ctx, cosel, cosel.ID, acct)
	if err != nil {
		t.Fatalf("set bank account: %v", err)
	}
	if p.BankAccount == nil || p.BankAccount.Masked() != "******7890" {
		t.Fatalf("unexpected account %+v", p.BankAccount)
	}

	if _, err := svc.SetBankAccount(ctx, cosel, "someone-else", acct); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign profile, got %v", err)
	}
	if _, err := svc.SetBankAccount(ctx, cosel, cosel.ID, BankAccount{BankName: "BCA"}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected invalid profile, got %v", err)
	}
}

func TestSetKYCStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  workflow.Actor
		status KYCStatus
		want   error
	}{
		{"finance verifies", finance, KYCVerified, nil},
		{"co-selector cannot self-verify", cosel, KYCVerified, workflow.ErrUnauthorized},
		{"unknown status", finance, KYCStatus("MAYBE"), ErrInvalidProfile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := svc.SetKYCStatus(ctx, tc.actor, cosel.ID, tc.status)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.KYCStatus != tc.status {
				t.Fatalf("status = %s, want %s", p.KYCStatus, tc.status)
			}
		})
	}
}

func TestSaveAndList(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, p := range []Profile{
		{UserID: "b", DisplayName: "Budi", Role: workflow.RoleCoSelector},
		{UserID: "a", DisplayName: "Ayu", Role: workflow.RoleOpsBD, KYCStatus: KYCVerified},
	} {
		if _, err := svc.Save(ctx, finance, p); err != nil {
			t.Fatalf("save %s: %v", p.UserID, err)
		}
	}
	if _, err := svc.Save(ctx, finance, Profile{UserID: "b", DisplayName: "Budi S", Role: workflow.RoleCoSelector}); err != nil {
		t.Fatalf("resave: %v", err)
	}

	list, err := svc.List(ctx, finance)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].DisplayName != "Ayu" || list[1].DisplayName != "Budi S" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[1].KYCStatus != KYCNotStarted {
		t.Fatalf("default kyc status not applied: %s", list[1].KYCStatus)
	}

	if _, err := svc.List(ctx, cosel); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Fatalf("expected unauthorized list, got %v", err)
	}
}

func TestSave_OwnProfileKeepsKYCStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.SetKYCStatus(ctx, finance, cosel.ID, KYCRejected); err != nil {
		t.Fatalf("set kyc: %v", err)
	}
	p, err := svc.Save(ctx, cosel, Profile{UserID: cosel.ID, DisplayName: "Cole", Role: workflow.RoleCoSelector, KYCStatus: KYCVerified})
	if err != nil {
		t.Fatalf("save own profile: %v", err)
	}
	if p.KYCStatus != KYCRejected {
		t.Fatalf("self-service save changed kyc status to %s", p.KYCStatus)
	}
}

func TestBankAccount_Masked(t *testing.T) {
	cases := []struct {
		number, want string
	}{
		{"1234567890", "******7890"},
		{"123", "123"},
		{"1234", "1234"},
		{"ÅÄÖ12345", "****2345"},
		{"12345ÅÄÖ€", "*****ÅÄÖ€"},
	}
	for _, tc := range cases {
		if got := (BankAccount{AccountNumber: tc.number}).Masked(); got != tc.want {
			t.Errorf("Masked(%q) = %q, want %q", tc.number, got, tc.want)
		}
	}
}
