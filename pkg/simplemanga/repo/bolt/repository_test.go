package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	boltrepo "github.com/tendant/simple-manga/pkg/simplemanga/repo/bolt"
	"github.com/tendant/simple-manga/pkg/simplemanga/repo/repotest"
	boltstorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/bolt"
)

func TestBoltRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) simplemanga.CatalogStore {
		repo, err := boltrepo.Open(filepath.Join(t.TempDir(), "manga.db"))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestBoltRepository_SharesFileWithBlobStore(t *testing.T) {
	db, err := boltstorage.OpenDB(filepath.Join(t.TempDir(), "manga.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	repo, err := boltrepo.New(db)
	require.NoError(t, err)
	blobs, err := boltstorage.New(db)
	require.NoError(t, err)

	id, err := blobs.Put(ctx, []byte("page"))
	require.NoError(t, err)

	manga := repotest.NewManga("shared")
	manga.Chapters[0].Pages["en"][0].ImageID = id
	require.NoError(t, repo.Put(ctx, manga))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].Chapters[0].Pages["en"][0].ImageID)

	ids, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}
