package repository

import (
	"context"
	"errors"
	"fmt"

	"shoreline/internal/docstore"
)

type Repositories struct {
	Users       *UserRepository
	Events      *EventRepository
	Buses       *BusRepository
	Reports     *ReportRepository
	Completions *CompletionRepository
}

func NewRepositories(store docstore.Store) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(store),
		Events:      NewEventRepository(store),
		Buses:       NewBusRepository(store),
		Reports:     NewReportRepository(store),
		Completions: NewCompletionRepository(store),
	}
}

// collection maps one document collection onto T. setID copies the
// document id into the decoded value.
type collection[T any] struct {
	store docstore.Store
	name  string
	setID func(*T, string)
}

// get returns nil, nil when the document does not exist.
func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	snap, err := c.store.Get(ctx, c.name, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode(*snap)
}

func (c collection[T]) decode(snap docstore.Snapshot) (*T, error) {
	v := new(T)
	if err := snap.DataTo(v); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	c.setID(v, snap.ID)
	return v, nil
}

func (c collection[T]) list(ctx context.Context, filters ...docstore.Filter) ([]T, error) {
	snaps, err := c.store.Query(ctx, c.name, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		v, err := c.decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (c collection[T]) set(ctx context.Context, id string, v *T) error {
	return c.store.Set(ctx, c.name, id, v)
}

// mutate applies fn to the current document under the row lock and stores
// the result. Returns docstore.ErrNotFound for missing documents.
func (c collection[T]) mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var result *T
	err := c.store.RunTransaction(ctx, c.name, id, func(cur *docstore.Snapshot) (any, error) {
		if cur == nil {
			return nil, docstore.ErrNotFound
		}
		v, err := c.decode(*cur)
		if err != nil {
			return nil, err
		}
		if err := fn(v); err != nil {
			return nil, err
		}
		result = v
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c collection[T]) delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}
