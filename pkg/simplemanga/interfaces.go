package simplemanga

import "context"

// BlobStore is a durable mapping from generated image IDs to raw bytes.
//
// Put generates a fresh, collision-resistant ID and never overwrites an
// existing object. Get returns ErrImageNotFound when the ID is absent and a
// *StorageError when the store cannot be reached. Delete is idempotent.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// CatalogStore is a durable mapping from manga ID to the full manga record.
//
// Put replaces the whole record. PutMany writes all records in one
// transaction when the backend supports it. GetAll returns records in
// creation order. Delete is idempotent.
type CatalogStore interface {
	GetAll(ctx context.Context) ([]*Manga, error)
	Put(ctx context.Context, manga *Manga) error
	PutMany(ctx context.Context, mangas []*Manga) error
	Delete(ctx context.Context, id string) error
}

// Observer receives every committed catalog mutation, in commit order.
type Observer interface {
	OnChange(change Change)
}
