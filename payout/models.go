package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"coselect/profile"
	"coselect/workflow"
)

type TransactionStatus string

const (
	TxPending  TransactionStatus = "PENDING"
	TxPayable  TransactionStatus = "PAYABLE"
	TxPaid     TransactionStatus = "PAID"
	TxReversed TransactionStatus = "REVERSED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxPending, TxPayable, TxPaid, TxReversed:
		return true
	}
	return false
}

// Transaction is an earning credited to a co-selector for an approved lead.
type Transaction struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"ownerId"`
	LeadID       string            `json:"leadId,omitempty"`
	MerchantName string            `json:"merchantName,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
	Status       TransactionStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type Payout struct {
	ID            string          `json:"id"`
	RequesterID   string          `json:"requesterId"`
	RequesterName string          `json:"requesterName"`
	Amount        decimal.Decimal `json:"amount"`
	Status        workflow.Status `json:"status"`
	// BankAccount is copied from the profile at request time and never
	// changes afterwards.
	BankAccount      profile.BankAccount `json:"bankAccount"`
	TransactionIDs   []string            `json:"transactionIds"`
	Timeline         workflow.Timeline   `json:"timeline"`
	RequestedAt      time.Time           `json:"requestedAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	PaymentReference string              `json:"paymentReference,omitempty"`
	FailureReason    string              `json:"failureReason,omitempty"`
	RejectionReason  string              `json:"rejectionReason,omitempty"`
}

func (p Payout) Snapshot() workflow.Snapshot {
	return workflow.Snapshot{RequesterID: p.RequesterID, Amount: p.Amount}
}

// committed reports whether the payout still counts against the balance.
func (p Payout) committed() bool {
	switch p.Status {
	case workflow.PayoutRequested, workflow.PayoutApproved, workflow.PayoutPaid:
		return true
	}
	return false
}

type Filters struct {
	Status      workflow.Status
	RequesterID string
}
