package payout

import "time"

var ExportHeader = []string{
	"id", "requesterId", "requesterName", "amount", "status",
	"bankName", "accountHolder", "accountNumber", "transactionIds",
	"requestedAt", "updatedAt", "paymentReference", "reason",
}

// ExportRows flattens payouts for CSV export. Account numbers are masked.
func ExportRows(payouts []Payout) [][]string {
	rows := make([][]string, 0, len(payouts))
	for _, p := range payouts {
		reason := p.RejectionReason
		if reason == "" {
			reason = p.FailureReason
		}
		ids := ""
		for i, id := range p.TransactionIDs {
			if i > 0 {
				ids += ";"
			}
			ids += id
		}
		rows = append(rows, []string{
			p.ID, p.RequesterID, p.RequesterName, p.Amount.StringFixed(2), string(p.Status),
			p.BankAccount.BankName, p.BankAccount.AccountHolder, p.BankAccount.Masked(), ids,
			p.RequestedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339), p.PaymentReference, reason,
		})
	}
	return rows
}
