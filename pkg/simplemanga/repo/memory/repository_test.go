package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/repo/memory"
	"github.com/tendant/simple-manga/pkg/simplemanga/repo/repotest"
)

func TestMemoryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) simplemanga.CatalogStore {
		return memory.New()
	})
}

func TestMemoryRepository_CopiesRecords(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	manga := &simplemanga.Manga{ID: "m1", Title: "Before", Chapters: []*simplemanga.Chapter{}}
	require.NoError(t, repo.Put(ctx, manga))

	manga.Title = "After"
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Before", all[0].Title)

	all[0].Title = "Mutated"
	again, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Before", again[0].Title)
}
