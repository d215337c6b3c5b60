package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"coselect/store"
)

// ErrNotFound signals the requested profile does not exist.
var ErrNotFound = errors.New("profile: not found")

// Repository reads and writes the profiles collection.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// GetByID fetches a profile by user id.
func (r *Repository) GetByID(ctx context.Context, userID string) (Profile, error) {
	all, err := store.List[Profile](ctx, r.store, store.Profiles)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: load: %w", err)
	}
	for _, p := range all {
		if p.UserID == userID {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

// List returns every profile ordered by display name.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	all, err := store.List[Profile](ctx, r.store, store.Profiles)
	if err != nil {
		return nil, fmt.Errorf("profile: load: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].DisplayName < all[j].DisplayName })
	return all, nil
}

// Upsert replaces the profile with the same user id or appends it.
func (r *Repository) Upsert(ctx context.Context, p Profile) error {
	all, err := store.List[Profile](ctx, r.store, store.Profiles)
	if err != nil {
		return fmt.Errorf("profile: load: %w", err)
	}
	replaced := false
	for i := range all {
		if all[i].UserID == p.UserID {
			all[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, p)
	}
	if err := store.Replace(ctx, r.store, store.Profiles, all); err != nil {
		return fmt.Errorf("profile: save: %w", err)
	}
	return nil
}
