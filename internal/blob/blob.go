// Package blob defines the binary payload store used for photo data.
// Photo records live in the remote store; their image bytes live here,
// keyed by photo id and resolution, so thumbnails can load lazily and
// full-size images on demand.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound indicates no payload exists for the key.
var ErrNotFound = errors.New("blob not found")

// Store is a key-addressable binary payload store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every payload whose key starts with prefix.
	// Used to clean up all resolutions of a photo in one call.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Keys for the two photo resolutions.

// ThumbnailKey returns the payload key for a photo's thumbnail.
func ThumbnailKey(photoID string) string { return photoID + "-thumb" }

// FullSizeKey returns the payload key for a photo's full-size image.
func FullSizeKey(photoID string) string { return photoID + "-full" }
