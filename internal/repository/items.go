package repository

import (
	"context"
	"time"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
)

// Items is the repository for domain.Item.
type Items struct {
	*Repository[domain.Item]
}

// NewItems creates the item repository.
func NewItems(store remote.Store, b *bus.Bus, timeout time.Duration) *Items {
	events := Events[domain.Item]{
		Fetched: func(scope Scope, items []domain.Item) domain.Event {
			return domain.ItemsFetched{ListID: scope.ID, Items: items}
		},
		Added: func(i domain.Item) domain.Event {
			return domain.ItemAdded{Item: i}
		},
		Updated: func(i domain.Item) domain.Event {
			return domain.ItemUpdated{Item: i}
		},
		Removed: func(items []domain.Item) domain.Event {
			return domain.ItemsRemoved{Items: items}
		},
	}

	ref := func(i domain.Item) string { return i.ListID }

	return &Items{
		Repository: newRepository(store, b, jsonCodec[domain.Item](remote.KindItem), events, ref, timeout),
	}
}

// FetchAll loads the items belonging to one list.
func (r *Items) FetchAll(ctx context.Context, listID string) ([]domain.Item, error) {
	return r.Repository.FetchAll(ctx, ByList(listID))
}

// Update overwrites the item remotely. Updates identical to the cached
// state are dropped without remote I/O or events.
func (r *Items) Update(ctx context.Context, item domain.Item) error {
	if cached, ok := r.Get(item.ID); ok && cached.Equal(item) {
		return nil
	}
	return r.Repository.Update(ctx, item)
}

// Move relocates the item to the target list. The confirmed state is
// announced as ItemMoved rather than ItemUpdated so subscribers can treat
// relocation distinctly from an in-place edit.
func (r *Items) Move(ctx context.Context, item domain.Item, targetListID string) error {
	if targetListID == "" {
		return domain.ErrEmptyID
	}
	if item.ListID == targetListID {
		return nil
	}

	item.ListID = targetListID
	return r.updateWith(ctx, item, func(moved domain.Item) domain.Event {
		return domain.ItemMoved{Item: moved, TargetListID: targetListID}
	})
}

// RemoveByList removes every cached item of the list. Used by the cascade
// when a list is deleted.
func (r *Items) RemoveByList(ctx context.Context, listID string) error {
	return r.RemoveBatch(ctx, r.Cached(ByList(listID)))
}
