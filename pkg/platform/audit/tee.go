package audit

import (
	"context"
	"errors"
)

type attemptLister interface {
	ListByAttempt(ctx context.Context, attemptID string) ([]Event, error)
}

// TeeStore appends every event to a primary store and a set of sinks. Reads go
// to the primary only.
type TeeStore struct {
	primary Store
	sinks   []Store
}

func NewTeeStore(primary Store, sinks ...Store) *TeeStore {
	return &TeeStore{primary: primary, sinks: sinks}
}

// Append writes to all stores and joins their errors.
func (t *TeeStore) Append(ctx context.Context, event Event) error {
	errs := []error{t.primary.Append(ctx, event)}
	for _, s := range t.sinks {
		errs = append(errs, s.Append(ctx, event))
	}
	return errors.Join(errs...)
}

func (t *TeeStore) ListByAttempt(ctx context.Context, attemptID string) ([]Event, error) {
	lister, ok := t.primary.(attemptLister)
	if !ok {
		return nil, errors.New("primary audit store does not support listing")
	}
	return lister.ListByAttempt(ctx, attemptID)
}
