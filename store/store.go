// Package store persists whole named collections. Every backend treats a
// collection as one opaque JSON document: Load returns what the last Save
// wrote, and concurrent writers simply overwrite each other.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"coselect/metrics"
)

// Collection names a persisted collection.
type Collection string

const (
	Leads        Collection = "leads"
	Payouts      Collection = "payouts"
	Disputes     Collection = "disputes"
	Transactions Collection = "transactions"
	Profiles     Collection = "profiles"
	Settings     Collection = "settings"
)

// Collections lists every collection the application owns, in reset order.
var Collections = []Collection{Leads, Payouts, Disputes, Transactions, Profiles, Settings}

// ErrStorage matches every failure reported by a backend.
var ErrStorage = errors.New("store: storage error")

// Error describes a failed backend operation.
type Error struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func wrap(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	metrics.StorageErrors.WithLabelValues(op, string(c)).Inc()
	return &Error{Op: op, Collection: c, Err: err}
}

// Store is the persistence adapter. Load returns nil data and a nil error for
// a collection that was never saved.
type Store interface {
	Load(ctx context.Context, c Collection) ([]byte, error)
	Save(ctx context.Context, c Collection, data []byte) error
	Remove(ctx context.Context, c Collection) error
}

// List decodes a collection into a slice. A missing collection is empty.
func List[T any](ctx context.Context, s Store, c Collection) ([]T, error) {
	data, err := s.Load(ctx, c)
	if err != nil {
		return nil, wrap("load", c, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, wrap("decode", c, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Replace encodes items and overwrites the collection.
func Replace[T any](ctx context.Context, s Store, c Collection, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return wrap("encode", c, err)
	}
	return wrap("save", c, s.Save(ctx, c, data))
}

// Get decodes a single-document collection such as settings. ok is false when
// nothing was saved yet.
func Get[T any](ctx context.Context, s Store, c Collection) (v T, ok bool, err error) {
	data, err := s.Load(ctx, c)
	if err != nil {
		return v, false, wrap("load", c, err)
	}
	if len(data) == 0 {
		return v, false, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, wrap("decode", c, err)
	}
	return v, true, nil
}

// Put encodes v and overwrites a single-document collection.
func Put[T any](ctx context.Context, s Store, c Collection, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return wrap("encode", c, err)
	}
	return wrap("save", c, s.Save(ctx, c, data))
}

// Reset removes every application collection. It is the dev-only wipe.
func Reset(ctx context.Context, s Store) error {
	var errs []error
	for _, c := range Collections {
		if err := s.Remove(ctx, c); err != nil {
			errs = append(errs, wrap("remove", c, err))
		}
	}
	return errors.Join(errs...)
}
