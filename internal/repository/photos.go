package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/rezkam/pantry/internal/blob"
	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
)

// Photos is the repository for domain.Photo. Records go through the
// remote store like any other kind; the image payloads go through the
// blob store and are fetched lazily.
type Photos struct {
	*Repository[domain.Photo]
	blobs blob.Store
}

// NewPhotos creates the photo repository.
func NewPhotos(store remote.Store, blobs blob.Store, b *bus.Bus, timeout time.Duration) *Photos {
	events := Events[domain.Photo]{
		Fetched: func(scope Scope, photos []domain.Photo) domain.Event {
			return domain.PhotosFetched{ItemID: scope.ID, Photos: photos}
		},
		Added: func(p domain.Photo) domain.Event {
			return domain.PhotoAdded{Photo: p}
		},
		Updated: func(p domain.Photo) domain.Event {
			// Photos are immutable payloads; an update is re-announced as added.
			return domain.PhotoAdded{Photo: p}
		},
		Removed: func(photos []domain.Photo) domain.Event {
			return domain.PhotosRemoved{Photos: photos}
		},
	}

	ref := func(p domain.Photo) string { return p.ItemID }

	return &Photos{
		Repository: newRepository(store, b, jsonCodec[domain.Photo](remote.KindPhoto), events, ref, timeout),
		blobs:      blobs,
	}
}

// FetchAll loads the photo records belonging to one item, without payloads.
func (r *Photos) FetchAll(ctx context.Context, itemID string) ([]domain.Photo, error) {
	return r.Repository.FetchAll(ctx, ByItem(itemID))
}

// Add uploads both payload resolutions and then creates the record.
// If the record creation fails the uploaded payloads are removed again so
// no orphaned blobs accumulate.
func (r *Photos) Add(ctx context.Context, photo domain.Photo) error {
	if photo.ID == "" {
		return domain.ErrEmptyID
	}

	if err := r.blobs.Put(ctx, blob.ThumbnailKey(photo.ID), photo.Thumbnail); err != nil {
		r.bus.Dispatch(domain.ErrorOccurred{Err: err})
		return err
	}
	if err := r.blobs.Put(ctx, blob.FullSizeKey(photo.ID), photo.FullSize); err != nil {
		r.cleanupBlobs(ctx, photo.ID)
		r.bus.Dispatch(domain.ErrorOccurred{Err: err})
		return err
	}

	if err := r.Repository.Add(ctx, photo); err != nil {
		r.cleanupBlobs(ctx, photo.ID)
		return err
	}
	return nil
}

// Remove deletes the records and then the payloads. Payload cleanup is
// best effort: a failure there is logged, not surfaced, since the record
// deletion already confirmed. On a partial batch failure the payloads of
// every confirmed-removed photo are still cleaned up; a record that failed
// to delete keeps its payloads, since the record still references them.
func (r *Photos) Remove(ctx context.Context, photos ...domain.Photo) error {
	err := r.RemoveBatch(ctx, photos)
	for _, p := range photos {
		if _, cached := r.Get(p.ID); cached {
			// Deletion unconfirmed; the record still keys these payloads.
			continue
		}
		r.cleanupBlobs(ctx, p.ID)
	}
	return err
}

// RemoveByItem removes every cached photo of the item. Used by the
// cascade when items are deleted.
func (r *Photos) RemoveByItem(ctx context.Context, itemID string) error {
	return r.Remove(ctx, r.Cached(ByItem(itemID))...)
}

// Thumbnail fetches the thumbnail payload for the photo.
func (r *Photos) Thumbnail(ctx context.Context, photoID string) ([]byte, error) {
	return r.blobs.Get(ctx, blob.ThumbnailKey(photoID))
}

// FullSize fetches the full-size payload for the photo.
func (r *Photos) FullSize(ctx context.Context, photoID string) ([]byte, error) {
	return r.blobs.Get(ctx, blob.FullSizeKey(photoID))
}

func (r *Photos) cleanupBlobs(ctx context.Context, photoID string) {
	if err := r.blobs.DeletePrefix(ctx, photoID); err != nil {
		slog.WarnContext(ctx, "photos: failed to clean up payloads",
			"photo_id", photoID, "error", err)
	}
}
