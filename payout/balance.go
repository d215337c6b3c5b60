package payout

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balance summarises the money of one co-selector.
type Balance struct {
	Pending   decimal.Decimal `json:"pending"`
	Payable   decimal.Decimal `json:"payable"`
	Committed decimal.Decimal `json:"committed"`
	// Available is Payable minus Committed and is what a payout may draw on.
	Available decimal.Decimal `json:"available"`
}

// ComputeBalance sums the owner's PAYABLE transactions and subtracts every
// payout of the owner that is REQUESTED, APPROVED or PAID.
func ComputeBalance(ownerID string, txs []Transaction, payouts []Payout) Balance {
	var b Balance
	for _, tx := range txs {
		if tx.OwnerID != ownerID {
			continue
		}
		switch tx.Status {
		case TxPayable:
			b.Payable = b.Payable.Add(tx.Amount)
		case TxPending:
			b.Pending = b.Pending.Add(tx.Amount)
		}
	}
	for _, p := range payouts {
		if p.RequesterID == ownerID && p.committed() {
			b.Committed = b.Committed.Add(p.Amount)
		}
	}
	b.Available = b.Payable.Sub(b.Committed)
	return b
}

// unspent returns how much of each payable transaction of the owner is not
// yet drawn by committed payouts. Payouts draw on their transactions in
// request order, each taking what is left on a transaction up to its amount.
func unspent(ownerID string, txs []Transaction, payouts []Payout) map[string]decimal.Decimal {
	left := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.OwnerID == ownerID && tx.Status == TxPayable {
			left[tx.ID] = tx.Amount
		}
	}

	var committed []Payout
	for _, p := range payouts {
		if p.RequesterID == ownerID && p.committed() {
			committed = append(committed, p)
		}
	}
	sort.SliceStable(committed, func(i, j int) bool { return committed[i].RequestedAt.Before(committed[j].RequestedAt) })

	for _, p := range committed {
		need := p.Amount
		for _, id := range p.TransactionIDs {
			rem, ok := left[id]
			if !ok || !need.IsPositive() {
				continue
			}
			draw := decimal.Min(rem, need)
			left[id] = rem.Sub(draw)
			need = need.Sub(draw)
		}
	}
	return left
}

// coverTransactions picks the oldest payable transactions of the owner that
// still have money left, until what is left on them reaches amount. covered
// is the part of amount the picked transactions account for.
func coverTransactions(ownerID string, amount decimal.Decimal, txs []Transaction, payouts []Payout) (ids []string, covered decimal.Decimal) {
	left := unspent(ownerID, txs, payouts)

	var candidates []Transaction
	for _, tx := range txs {
		if rem, ok := left[tx.ID]; ok && rem.IsPositive() {
			candidates = append(candidates, tx)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })

	ids = []string{}
	covered = decimal.Zero
	for _, tx := range candidates {
		if covered.GreaterThanOrEqual(amount) {
			break
		}
		ids = append(ids, tx.ID)
		covered = decimal.Min(amount, covered.Add(left[tx.ID]))
	}
	return ids, covered
}
