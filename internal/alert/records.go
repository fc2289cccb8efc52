package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
)

// Records persists Notification records through the remote store so other
// devices see which items carry alerts. At most one record exists per
// item: Save upserts by item id.
type Records struct {
	store   remote.Store
	timeout time.Duration
}

// NewRecords creates the notification record store.
func NewRecords(store remote.Store, timeout time.Duration) *Records {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Records{store: store, timeout: timeout}
}

func encodeNotification(n domain.Notification) map[string]any {
	return map[string]any{
		remote.RefItemID: n.ItemID,
		remote.RefListID: n.ListID,
		"alert_kind":     string(n.Alert.Kind),
		"alert_count":    n.Alert.Count,
		"alert_custom":   n.Alert.Custom.Format(time.RFC3339),
	}
}

// Save upserts the notification record for its item.
func (r *Records) Save(ctx context.Context, n domain.Notification) error {
	if n.ItemID == "" {
		return domain.ErrEmptyID
	}

	ctx, cancel := remote.WithDeadline(ctx, r.timeout)
	defer cancel()

	rec := remote.Record{
		Kind:   remote.KindNotification,
		ID:     n.ItemID,
		Fields: encodeNotification(n),
	}

	_, err := r.store.Update(ctx, rec)
	if errors.Is(err, remote.ErrNotFound) {
		_, err = r.store.Create(ctx, rec)
	}
	if err != nil {
		return remote.Classify(fmt.Errorf("failed to save notification record: %w", err))
	}
	return nil
}

// DeleteByItem removes the record for the item, if any.
func (r *Records) DeleteByItem(ctx context.Context, itemID string) error {
	ctx, cancel := remote.WithDeadline(ctx, r.timeout)
	defer cancel()

	err := r.store.Delete(ctx, remote.KindNotification, itemID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return remote.Classify(fmt.Errorf("failed to delete notification record: %w", err))
	}
	return nil
}

// DeleteByList removes every record referencing the list.
func (r *Records) DeleteByList(ctx context.Context, listID string) error {
	ctx, cancel := remote.WithDeadline(ctx, r.timeout)
	defer cancel()

	records, err := r.store.Query(ctx, remote.KindNotification, remote.RefListID, listID)
	if err != nil {
		return remote.Classify(fmt.Errorf("failed to query notification records: %w", err))
	}

	for _, rec := range records {
		if err := r.DeleteByItem(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}
