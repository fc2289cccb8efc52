package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
)

// Cascade propagates cross-entity effects through bus events: removing a
// list removes its items, removing items removes their photos, and any item
// change advances the owning list's update timestamp. Ownership is evented,
// not referential, so each step goes through the owning repository and
// emits its own confirmation events (which the alert scheduler relies on to
// cancel triggers).
type Cascade struct {
	lists  *Lists
	items  *Items
	photos *Photos
}

// NewCascade creates the cascade listener.
func NewCascade(lists *Lists, items *Items, photos *Photos) *Cascade {
	return &Cascade{lists: lists, items: items, photos: photos}
}

// Run consumes the subscription until ctx is cancelled or the bus closes.
// Cascade failures are logged and swallowed; the worst outcome is an
// orphaned remote record picked up by the next refetch.
func (c *Cascade) Run(ctx context.Context, sub *bus.Subscription) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			c.handle(ctx, event)
		}
	}
}

func (c *Cascade) handle(ctx context.Context, event domain.Event) {
	switch e := event.(type) {
	case domain.ItemAdded:
		c.touch(ctx, e.Item.ListID)
	case domain.ItemUpdated:
		c.touch(ctx, e.Item.ListID)
	case domain.ItemMoved:
		c.touch(ctx, e.TargetListID)
	case domain.ItemsRemoved:
		for _, item := range e.Items {
			if err := c.photos.RemoveByItem(ctx, item.ID); err != nil {
				slog.WarnContext(ctx, "cascade: failed to remove photos of deleted item",
					"item_id", item.ID, "error", err)
			}
		}
		for _, listID := range distinctListIDs(e.Items) {
			c.touch(ctx, listID)
		}
	case domain.ListsRemoved:
		for _, list := range e.Lists {
			if err := c.items.RemoveByList(ctx, list.ID); err != nil {
				slog.WarnContext(ctx, "cascade: failed to remove items of deleted list",
					"list_id", list.ID, "error", err)
			}
		}
	default:
	}
}

// touch advances the owning list's update timestamp. A list absent from the
// cache (typically already deleted) is skipped.
func (c *Cascade) touch(ctx context.Context, listID string) {
	err := c.lists.Touch(ctx, listID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "cascade: failed to touch list",
			"list_id", listID, "error", err)
	}
}

func distinctListIDs(items []domain.Item) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, ok := seen[item.ListID]; ok {
			continue
		}
		seen[item.ListID] = struct{}{}
		out = append(out, item.ListID)
	}
	return out
}
