package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// Backend is an in-memory implementation of the simplemanga.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Put stores a copy of data under a fresh ID
func (b *Backend) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", b.storageError("put", "", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := simplemanga.NewID()
	for {
		if _, exists := b.objects[id]; !exists {
			break
		}
		id = simplemanga.NewID()
	}
	b.objects[id] = bytes.Clone(data)
	return id, nil
}

// Get returns a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.storageError("get", id, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[id]
	if !exists {
		return nil, simplemanga.ErrImageNotFound
	}
	return bytes.Clone(data), nil
}

// Delete removes an object. Deleting a missing ID is not an error.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return b.storageError("delete", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, id)
	return nil
}

// List returns every stored ID in ascending order
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.storageError("list", "", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.objects))
	for id := range b.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "memory", Key: id, Op: op, Err: err}
}
