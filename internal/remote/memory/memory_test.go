package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/pantry/internal/remote"
)

func TestCreateReadDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	rec := remote.Record{
		Kind:   remote.KindItem,
		ID:     "item-1",
		Fields: map[string]any{"name": "Milk", remote.RefListID: "list-1"},
	}

	created, err := store.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, rec.Fields, created.Fields)

	// Duplicate create is rejected.
	_, err = store.Create(ctx, rec)
	assert.Error(t, err)

	got, err := store.Read(ctx, remote.KindItem, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Fields["name"])

	require.NoError(t, store.Delete(ctx, remote.KindItem, "item-1"))
	_, err = store.Read(ctx, remote.KindItem, "item-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, remote.KindItem, "item-1"), remote.ErrNotFound)
}

func TestUpdateMissingRecord(t *testing.T) {
	store := NewStore()

	_, err := store.Update(context.Background(), remote.Record{
		Kind: remote.KindList, ID: "nope", Fields: map[string]any{},
	})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestQueryByReference(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i, listID := range []string{"list-1", "list-1", "list-2"} {
		_, err := store.Create(ctx, remote.Record{
			Kind:   remote.KindItem,
			ID:     string(rune('a' + i)),
			Fields: map[string]any{remote.RefListID: listID},
		})
		require.NoError(t, err)
	}

	matched, err := store.Query(ctx, remote.KindItem, remote.RefListID, "list-1")
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	all, err := store.Query(ctx, remote.KindItem, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordsAreIsolatedFromCallerMutation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	fields := map[string]any{"name": "Milk"}
	_, err := store.Create(ctx, remote.Record{Kind: remote.KindItem, ID: "x", Fields: fields})
	require.NoError(t, err)

	fields["name"] = "mutated"

	got, err := store.Read(ctx, remote.KindItem, "x")
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Fields["name"])
}
