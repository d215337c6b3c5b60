package lead

import (
	"context"
	"errors"
	"fmt"

	"coselect/store"
)

var ErrNotFound = errors.New("lead: not found")

// Repository loads and saves the whole leads collection.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) List(ctx context.Context) ([]Lead, error) {
	leads, err := store.List[Lead](ctx, r.store, store.Leads)
	if err != nil {
		return nil, fmt.Errorf("lead: load: %w", err)
	}
	return leads, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Lead, error) {
	leads, err := r.List(ctx)
	if err != nil {
		return Lead{}, err
	}
	for _, l := range leads {
		if l.ID == id {
			return l, nil
		}
	}
	return Lead{}, ErrNotFound
}

// Save replaces the lead with the same id or appends a new one.
func (r *Repository) Save(ctx context.Context, l Lead) error {
	leads, err := r.List(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range leads {
		if leads[i].ID == l.ID {
			leads[i] = l
			found = true
			break
		}
	}
	if !found {
		leads = append(leads, l)
	}
	if err := store.Replace(ctx, r.store, store.Leads, leads); err != nil {
		return fmt.Errorf("lead: save: %w", err)
	}
	return nil
}
