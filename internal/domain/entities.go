package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List is a named collection of items. Items reference their list by id;
// the list does not own them structurally.
type List struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UpdateTime time.Time `json:"update_time"`
}

// NewList creates a list with a fresh id and the given name.
func NewList(nameStr string, now time.Time) (List, error) {
	name, err := NewName(nameStr)
	if err != nil {
		return List{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return List{}, fmt.Errorf("failed to generate id: %w", err)
	}

	return List{
		ID:         id.String(),
		Name:       name.String(),
		UpdateTime: now.UTC(),
	}, nil
}

// EntityID returns the list id.
func (l List) EntityID() string { return l.ID }

// Touched returns a copy with UpdateTime advanced to now.
// UpdateTime never moves backwards: if now precedes the current value the
// copy is returned unchanged.
func (l List) Touched(now time.Time) List {
	now = now.UTC()
	if now.After(l.UpdateTime) {
		l.UpdateTime = now
	}
	return l
}

// Item is a single tracked product within a list.
type Item struct {
	ID         string      `json:"id"`
	ListID     string      `json:"list_id"`
	Name       string      `json:"name"`
	Notes      string      `json:"notes"`
	Expiration Expiration  `json:"expiration"`
	Alert      AlertOption `json:"alert"`
}

// NewItem creates an item with a fresh id belonging to the given list.
func NewItem(listID, nameStr, notes string, expiration Expiration) (Item, error) {
	if listID == "" {
		return Item{}, ErrEmptyID
	}

	name, err := NewName(nameStr)
	if err != nil {
		return Item{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Item{}, fmt.Errorf("failed to generate id: %w", err)
	}

	return Item{
		ID:         id.String(),
		ListID:     listID,
		Name:       name.String(),
		Notes:      notes,
		Expiration: expiration,
	}, nil
}

// EntityID returns the item id.
func (i Item) EntityID() string { return i.ID }

// Equal reports whether two items are identical in id and all fields.
// Used to detect no-op updates before issuing remote writes.
func (i Item) Equal(other Item) bool {
	return i.ID == other.ID &&
		i.ListID == other.ListID &&
		i.Name == other.Name &&
		i.Notes == other.Notes &&
		i.Expiration.Equal(other.Expiration) &&
		i.Alert.Equal(other.Alert)
}

// Photo carries the image payload for one item in two resolutions.
// The payloads are stored in the blob store; the record itself only
// references them so thumbnails can load lazily and full-size on demand.
type Photo struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Thumbnail []byte `json:"-"`
	FullSize  []byte `json:"-"`
}

// NewPhoto creates a photo record with a fresh id for the given item.
func NewPhoto(itemID string, thumbnail, fullSize []byte) (Photo, error) {
	if itemID == "" {
		return Photo{}, ErrEmptyID
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Photo{}, fmt.Errorf("failed to generate id: %w", err)
	}

	return Photo{
		ID:        id.String(),
		ItemID:    itemID,
		Thumbnail: thumbnail,
		FullSize:  fullSize,
	}, nil
}

// EntityID returns the photo id.
func (p Photo) EntityID() string { return p.ID }

// Notification is the persisted alert record for an item. At most one
// exists per item; saving a new one replaces the previous.
type Notification struct {
	ItemID string      `json:"item_id"`
	ListID string      `json:"list_id"`
	Alert  AlertOption `json:"alert"`
}

// EntityID returns the owning item id, which keys the record.
func (n Notification) EntityID() string { return n.ItemID }
