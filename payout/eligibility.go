package payout

import (
	"github.com/shopspring/decimal"

	"coselect/profile"
)

type IssueCode string

const (
	IssueKYCNotStarted  IssueCode = "KYC_NOT_STARTED"
	IssueKYCPending     IssueCode = "KYC_PENDING"
	IssueKYCRejected    IssueCode = "KYC_REJECTED"
	IssueBankMissing    IssueCode = "BANK_ACCOUNT_MISSING"
	IssueBelowThreshold IssueCode = "BELOW_MINIMUM_THRESHOLD"
)

// Issue is one reason a payout cannot be requested.
type Issue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// Evaluate lists every issue blocking a payout request. An empty result means
// the user may request a payout.
func Evaluate(p profile.Profile, payable, minimum decimal.Decimal) []Issue {
	var issues []Issue
	switch p.KYCStatus {
	case profile.KYCVerified:
	case profile.KYCPending:
		issues = append(issues, Issue{Code: IssueKYCPending, Message: "identity verification is still under review"})
	case profile.KYCRejected:
		issues = append(issues, Issue{Code: IssueKYCRejected, Message: "identity verification was rejected"})
	default:
		issues = append(issues, Issue{Code: IssueKYCNotStarted, Message: "identity verification has not been started"})
	}
	if p.BankAccount == nil || !p.BankAccount.Complete() {
		issues = append(issues, Issue{Code: IssueBankMissing, Message: "add a bank account to receive payouts"})
	}
	if payable.LessThan(minimum) {
		issues = append(issues, Issue{
			Code:    IssueBelowThreshold,
			Message: "payable balance " + payable.StringFixed(2) + " is below the minimum of " + minimum.StringFixed(2),
		})
	}
	return issues
}

func codes(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = string(is.Code)
	}
	return out
}
