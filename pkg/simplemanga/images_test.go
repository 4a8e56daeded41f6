package simplemanga_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

func TestImageManagerUpload(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	m := simplemanga.NewImageManager(store, nil, nil, 2)

	uploaded, err := m.Upload(ctx, files("a.png", "b.png", "c.png"))
	require.NoError(t, err)
	require.Len(t, uploaded, 3)

	for i, name := range []string{"a.png", "b.png", "c.png"} {
		data, err := store.Get(ctx, uploaded[i].ImageID)
		require.NoError(t, err)
		assert.Equal(t, "image:"+name, string(data))

		handleData, _, ok := m.Handles().Open(uploaded[i].URL)
		require.True(t, ok)
		assert.Equal(t, data, handleData)
	}

	empty, err := m.Upload(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestImageManagerUploadCleansUpPartialFailure(t *testing.T) {
	store := newFlakyStore()
	store.failPut = func(data []byte) bool { return string(data) == "image:b.png" }
	m := simplemanga.NewImageManager(store, nil, nil, 1)

	uploaded, err := m.Upload(context.Background(), files("a.png", "b.png", "c.png"))
	require.Error(t, err)
	assert.Nil(t, uploaded)
	assert.Zero(t, store.Len())
	assert.Zero(t, m.Handles().Len())
}

func TestImageManagerResolve(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	m := simplemanga.NewImageManager(store, nil, nil, 0)

	id, err := store.Put(ctx, []byte("page"))
	require.NoError(t, err)

	url, err := m.Resolve(ctx, id)
	require.NoError(t, err)
	data, _, ok := m.Handles().Open(url)
	require.True(t, ok)
	assert.Equal(t, "page", string(data))

	// Each resolve acquires a fresh handle.
	again, err := m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, url, again)

	_, err = m.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, simplemanga.ErrImageNotFound)
	assert.False(t, simplemanga.IsUnreachable(err))

	store.failGet[id] = true
	_, err = m.Resolve(ctx, id)
	assert.True(t, simplemanga.IsUnreachable(err))
}

func TestImageManagerReleaseAndDiscard(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	m := simplemanga.NewImageManager(store, nil, nil, 0)

	uploaded, err := m.Upload(ctx, files("a.png", "b.png"))
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, nil))
	require.NoError(t, m.Release(ctx, []string{uploaded[0].ImageID}))
	assert.Equal(t, 1, store.Len())

	m.Discard(uploaded[0].URL, "https://example.com/x.png")
	assert.Equal(t, 1, m.Handles().Len())
}
