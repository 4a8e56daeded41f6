// Package storagetest provides a conformance suite for simplemanga.BlobStore
// implementations.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) simplemanga.BlobStore

// Run exercises the BlobStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		store := newStore(t)
		data := []byte("\x89PNG\r\n\x1a\npage one")

		id, err := store.Put(ctx, data)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("PutEmpty", func(t *testing.T) {
		store := newStore(t)

		id, err := store.Put(ctx, []byte{})
		require.NoError(t, err)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("PutNeverReusesID", func(t *testing.T) {
		store := newStore(t)

		first, err := store.Put(ctx, []byte("a"))
		require.NoError(t, err)
		second, err := store.Put(ctx, []byte("a"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		got, err := store.Get(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, simplemanga.NewID())
		require.Error(t, err)
		assert.ErrorIs(t, err, simplemanga.ErrImageNotFound)
		assert.False(t, simplemanga.IsUnreachable(err))
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := newStore(t)

		id, err := store.Put(ctx, []byte("gone"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, id))
		require.NoError(t, store.Delete(ctx, id))
		require.NoError(t, store.Delete(ctx, simplemanga.NewID()))

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, simplemanga.ErrImageNotFound)
	})

	t.Run("List", func(t *testing.T) {
		store := newStore(t)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		var want []string
		for i := 0; i < 3; i++ {
			id, err := store.Put(ctx, []byte(fmt.Sprintf("page %d", i)))
			require.NoError(t, err)
			want = append(want, id)
		}
		require.NoError(t, store.Delete(ctx, want[1]))

		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{want[0], want[2]}, ids)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		store := newStore(t)
		const n = 32

		ids := make([]string, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = store.Put(ctx, []byte(fmt.Sprintf("page %d", i)))
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.False(t, seen[ids[i]], "duplicate id %s", ids[i])
			seen[ids[i]] = true

			got, err := store.Get(ctx, ids[i])
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("page %d", i), string(got))
		}
	})

	t.Run("Batch", func(t *testing.T) {
		store := newStore(t)
		data := [][]byte{[]byte("1"), []byte("2"), []byte("3")}

		ids, err := simplemanga.PutImages(ctx, store, data, 2)
		require.NoError(t, err)
		require.Len(t, ids, 3)
		for i, id := range ids {
			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, data[i], got)
		}

		require.NoError(t, simplemanga.DeleteImages(ctx, store, ids, 2))
		listed, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})
	t.Run("CancelledContext", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Put(ctx, []byte("kept"))
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = store.Put(cancelled, []byte("late"))
		assert.True(t, simplemanga.IsUnreachable(err), "put: %v", err)
		_, err = store.Get(cancelled, id)
		assert.True(t, simplemanga.IsUnreachable(err), "get: %v", err)
		err = store.Delete(cancelled, id)
		assert.True(t, simplemanga.IsUnreachable(err), "delete: %v", err)
		_, err = store.List(cancelled)
		assert.True(t, simplemanga.IsUnreachable(err), "list: %v", err)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("kept"), got)
	})
}
