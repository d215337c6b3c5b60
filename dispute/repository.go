package dispute

import (
	"context"
	"errors"
	"fmt"

	"coselect/store"
)

var (
	ErrNotFound  = errors.New("dispute: not found")
	ErrForbidden = errors.New("dispute: forbidden")
	ErrResolved  = errors.New("dispute: case already resolved")
)

type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) List(ctx context.Context) ([]Case, error) {
	cases, err := store.List[Case](ctx, r.store, store.Disputes)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	return cases, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Case, error) {
	cases, err := r.List(ctx)
	if err != nil {
		return Case{}, err
	}
	for _, c := range cases {
		if c.ID == id {
			return c, nil
		}
	}
	return Case{}, ErrNotFound
}

func (r *Repository) Save(ctx context.Context, c Case) error {
	cases, err := r.List(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range cases {
		if cases[i].ID == c.ID {
			cases[i] = c
			found = true
			break
		}
	}
	if !found {
		cases = append(cases, c)
	}
	if err := store.Replace(ctx, r.store, store.Disputes, cases); err != nil {
		return fmt.Errorf("dispute: save: %w", err)
	}
	return nil
}
