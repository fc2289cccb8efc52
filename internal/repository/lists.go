package repository

import (
	"context"
	"time"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
)

// Lists is the repository for domain.List.
type Lists struct {
	*Repository[domain.List]
	now func() time.Time
}

// NewLists creates the list repository.
func NewLists(store remote.Store, b *bus.Bus, timeout time.Duration) *Lists {
	events := Events[domain.List]{
		Fetched: func(_ Scope, lists []domain.List) domain.Event {
			return domain.ListsFetched{Lists: lists}
		},
		Added: func(l domain.List) domain.Event {
			return domain.ListAdded{List: l}
		},
		Updated: func(l domain.List) domain.Event {
			return domain.ListUpdated{List: l}
		},
		Removed: func(lists []domain.List) domain.Event {
			return domain.ListsRemoved{Lists: lists}
		},
	}

	return &Lists{
		Repository: newRepository(store, b, jsonCodec[domain.List](remote.KindList), events, nil, timeout),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FetchAll loads every list.
func (r *Lists) FetchAll(ctx context.Context) ([]domain.List, error) {
	return r.Repository.FetchAll(ctx, All)
}

// Rename updates the list name and advances its update timestamp.
func (r *Lists) Rename(ctx context.Context, list domain.List, nameStr string) error {
	name, err := domain.NewName(nameStr)
	if err != nil {
		return err
	}

	list.Name = name.String()
	return r.Update(ctx, list.Touched(r.now()))
}

// Touch advances the list update timestamp, used when contained items
// change.
func (r *Lists) Touch(ctx context.Context, listID string) error {
	list, ok := r.Get(listID)
	if !ok {
		return domain.ErrNotFound
	}
	return r.Update(ctx, list.Touched(r.now()))
}
