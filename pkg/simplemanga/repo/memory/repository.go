package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// Repository is an in-memory implementation of simplemanga.CatalogStore.
// Records are deep-copied on the way in and out.
type Repository struct {
	mu      sync.RWMutex
	records map[string]*simplemanga.Manga
	order   []string
}

// New creates a new in-memory catalog store
func New() *Repository {
	return &Repository{
		records: make(map[string]*simplemanga.Manga),
	}
}

func (r *Repository) GetAll(ctx context.Context) ([]*simplemanga.Manga, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.storageError("get_all", "", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simplemanga.Manga, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.records[id].Clone())
	}
	return result, nil
}

func (r *Repository) Put(ctx context.Context, manga *simplemanga.Manga) error {
	return r.PutMany(ctx, []*simplemanga.Manga{manga})
}

func (r *Repository) PutMany(ctx context.Context, mangas []*simplemanga.Manga) error {
	if err := ctx.Err(); err != nil {
		return r.storageError("put", "", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range mangas {
		if _, exists := r.records[m.ID]; !exists {
			r.order = append(r.order, m.ID)
		}
		r.records[m.ID] = m.Clone()
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return r.storageError("delete", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return nil
	}
	delete(r.records, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

func (r *Repository) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "memory", Key: id, Op: op, Err: err}
}
