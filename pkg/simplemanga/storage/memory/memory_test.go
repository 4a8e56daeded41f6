package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	memorystorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/memory"
	"github.com/tendant/simple-manga/pkg/simplemanga/storage/storagetest"
)

func TestMemoryBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) simplemanga.BlobStore {
		return memorystorage.New()
	})
}

func TestMemoryBackendCancelledPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memorystorage.New().Put(ctx, []byte("page"))
	var storageErr *simplemanga.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "memory", storageErr.Backend)
	assert.Equal(t, "put", storageErr.Op)
	assert.ErrorIs(t, err, context.Canceled)
}
