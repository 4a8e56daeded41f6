// Package repotest provides a conformance suite for simplemanga.CatalogStore
// implementations.
package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) simplemanga.CatalogStore

// NewManga returns a record with one chapter holding two language versions.
func NewManga(title string) *simplemanga.Manga {
	return &simplemanga.Manga{
		ID:          simplemanga.NewID(),
		Title:       title,
		Description: title + " description",
		CoverURL:    "https://example.com/" + title + ".jpg",
		Chapters: []*simplemanga.Chapter{
			{
				ID:     simplemanga.NewID(),
				Number: 1,
				Pages: map[string][]*simplemanga.Page{
					"en": {
						{PageNumber: 1, ImageID: "img-1", FileName: "1.png"},
						{PageNumber: 2, ImageID: "img-2", FileName: "2.png", IsDoublePage: true},
					},
					"fr": {
						{PageNumber: 1, URL: "https://example.com/fr/1.png"},
					},
				},
			},
			{
				ID:     simplemanga.NewID(),
				Number: 10.5,
				Pages:  map[string][]*simplemanga.Page{},
			},
		},
	}
}

// Run exercises the CatalogStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("EmptyGetAll", func(t *testing.T) {
		store := newStore(t)

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("PutGetAll", func(t *testing.T) {
		store := newStore(t)
		manga := NewManga("alpha")

		require.NoError(t, store.Put(ctx, manga))

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, manga, all[0])
	})

	t.Run("PutReplacesWholeRecord", func(t *testing.T) {
		store := newStore(t)
		manga := NewManga("alpha")
		require.NoError(t, store.Put(ctx, manga))

		updated := manga.Clone()
		updated.Title = "alpha v2"
		updated.Chapters = updated.Chapters[:1]
		delete(updated.Chapters[0].Pages, "fr")
		require.NoError(t, store.Put(ctx, updated))

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, updated, all[0])
	})

	t.Run("CreationOrder", func(t *testing.T) {
		store := newStore(t)
		first := NewManga("first")
		second := NewManga("second")
		third := NewManga("third")

		require.NoError(t, store.Put(ctx, first))
		require.NoError(t, store.PutMany(ctx, []*simplemanga.Manga{second, third}))
		// Updating keeps the original position
		first.Title = "first v2"
		require.NoError(t, store.Put(ctx, first))

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
		assert.Equal(t, "first v2", all[0].Title)
	})

	t.Run("PutManyEmpty", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutMany(ctx, nil))
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := newStore(t)
		keep := NewManga("keep")
		drop := NewManga("drop")
		require.NoError(t, store.PutMany(ctx, []*simplemanga.Manga{keep, drop}))

		require.NoError(t, store.Delete(ctx, drop.ID))
		require.NoError(t, store.Delete(ctx, drop.ID))
		require.NoError(t, store.Delete(ctx, simplemanga.NewID()))

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, keep.ID, all[0].ID)
	})
	t.Run("CancelledContext", func(t *testing.T) {
		store := newStore(t)
		kept := NewManga("kept")
		require.NoError(t, store.Put(ctx, kept))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.GetAll(cancelled)
		assert.True(t, simplemanga.IsUnreachable(err), "get all: %v", err)
		err = store.PutMany(cancelled, []*simplemanga.Manga{NewManga("late")})
		assert.True(t, simplemanga.IsUnreachable(err), "put: %v", err)
		err = store.Delete(cancelled, kept.ID)
		assert.True(t, simplemanga.IsUnreachable(err), "delete: %v", err)

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, kept.ID, all[0].ID)
	})
}
