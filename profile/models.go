package profile

import (
	"strings"
	"time"

	"coselect/workflow"
)

type KYCStatus string

const (
	KYCNotStarted KYCStatus = "NOT_STARTED"
	KYCPending    KYCStatus = "PENDING"
	KYCVerified   KYCStatus = "VERIFIED"
	KYCRejected   KYCStatus = "REJECTED"
)

func (k KYCStatus) Valid() bool {
	switch k {
	case KYCNotStarted, KYCPending, KYCVerified, KYCRejected:
		return true
	}
	return false
}

// BankAccount is the payout destination of a user.
type BankAccount struct {
	BankName      string `json:"bankName"`
	AccountHolder string `json:"accountHolder"`
	AccountNumber string `json:"accountNumber"`
}

// Complete reports whether every field is filled in.
func (b BankAccount) Complete() bool {
	return strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.AccountHolder) != "" &&
		strings.TrimSpace(b.AccountNumber) != ""
}

// Masked returns the account number with all but the last four digits hidden.
func (b BankAccount) Masked() string {
	n := []rune(b.AccountNumber)
	if len(n) <= 4 {
		return string(n)
	}
	return strings.Repeat("*", len(n)-4) + string(n[len(n)-4:])
}

// Profile captures the user data the payout flow depends on.
type Profile struct {
	UserID      string        `json:"userId"`
	DisplayName string        `json:"displayName"`
	Role        workflow.Role `json:"role"`
	KYCStatus   KYCStatus     `json:"kycStatus"`
	BankAccount *BankAccount  `json:"bankAccount,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Actor returns the workflow identity of the profile owner.
func (p Profile) Actor() workflow.Actor {
	return workflow.Actor{ID: p.UserID, Name: p.DisplayName, Role: p.Role}
}
