package payout

import (
	"context"
	"errors"
	"fmt"

	"coselect/store"
)

var (
	ErrNotFound            = errors.New("payout: not found")
	ErrTransactionNotFound = errors.New("payout: transaction not found")
)

// Repository persists the payouts and transactions collections.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) ListPayouts(ctx context.Context) ([]Payout, error) {
	items, err := store.List[Payout](ctx, r.store, store.Payouts)
	if err != nil {
		return nil, fmt.Errorf("payout: load payouts: %w", err)
	}
	return items, nil
}

func (r *Repository) GetPayout(ctx context.Context, id string) (Payout, error) {
	items, err := r.ListPayouts(ctx)
	if err != nil {
		return Payout{}, err
	}
	for _, p := range items {
		if p.ID == id {
			return p, nil
		}
	}
	return Payout{}, ErrNotFound
}

func (r *Repository) SavePayout(ctx context.Context, p Payout) error {
	items, err := r.ListPayouts(ctx)
	if err != nil {
		return err
	}
	items = upsert(items, p, func(x Payout) bool { return x.ID == p.ID })
	if err := store.Replace(ctx, r.store, store.Payouts, items); err != nil {
		return fmt.Errorf("payout: save payouts: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	items, err := store.List[Transaction](ctx, r.store, store.Transactions)
	if err != nil {
		return nil, fmt.Errorf("payout: load transactions: %w", err)
	}
	return items, nil
}

func (r *Repository) SaveTransaction(ctx context.Context, tx Transaction) error {
	items, err := r.ListTransactions(ctx)
	if err != nil {
		return err
	}
	items = upsert(items, tx, func(x Transaction) bool { return x.ID == tx.ID })
	if err := store.Replace(ctx, r.store, store.Transactions, items); err != nil {
		return fmt.Errorf("payout: save transactions: %w", err)
	}
	return nil
}

func upsert[T any](items []T, v T, same func(T) bool) []T {
	for i := range items {
		if same(items[i]) {
			items[i] = v
			return items
		}
	}
	return append(items, v)
}
