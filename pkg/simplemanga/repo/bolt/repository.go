package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	boltstorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/bolt"
)

// Bucket names
var bucketMangas = []byte("mangas")

// Repository implements simplemanga.CatalogStore using bbolt. Each manga is
// one JSON value keyed by its ID; IDs are time-ordered, so key order is
// creation order.
type Repository struct {
	db   *bbolt.DB
	owns bool
}

// Open opens the database at path and returns a repository that closes it on
// Close.
func Open(path string) (*Repository, error) {
	db, err := boltstorage.OpenDB(path)
	if err != nil {
		return nil, err
	}
	r, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.owns = true
	return r, nil
}

// New creates a repository over an open database. The caller keeps ownership
// of db.
func New(db *bbolt.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("bolt db is required")
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMangas)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mangas bucket: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) GetAll(ctx context.Context) ([]*simplemanga.Manga, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.storageError("get_all", "", err)
	}

	var result []*simplemanga.Manga
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMangas).ForEach(func(k, v []byte) error {
			var manga simplemanga.Manga
			if err := json.Unmarshal(v, &manga); err != nil {
				return fmt.Errorf("failed to decode manga %s: %w", k, err)
			}
			result = append(result, &manga)
			return nil
		})
	})
	if err != nil {
		return nil, r.storageError("get_all", "", err)
	}
	if result == nil {
		result = []*simplemanga.Manga{}
	}
	return result, nil
}

func (r *Repository) Put(ctx context.Context, manga *simplemanga.Manga) error {
	return r.PutMany(ctx, []*simplemanga.Manga{manga})
}

// PutMany writes every record in a single transaction
func (r *Repository) PutMany(ctx context.Context, mangas []*simplemanga.Manga) error {
	if err := ctx.Err(); err != nil {
		return r.storageError("put", firstID(mangas), err)
	}
	if len(mangas) == 0 {
		return nil
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMangas)
		for _, m := range mangas {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to encode manga %s: %w", m.ID, err)
			}
			if err := b.Put([]byte(m.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.storageError("put", firstID(mangas), err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return r.storageError("delete", id, err)
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMangas).Delete([]byte(id))
	})
	if err != nil {
		return r.storageError("delete", id, err)
	}
	return nil
}

// Close closes the database when the repository opened it
func (r *Repository) Close() error {
	if !r.owns {
		return nil
	}
	r.owns = false
	return r.db.Close()
}

func (r *Repository) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "bolt", Key: id, Op: op, Err: err}
}

func firstID(mangas []*simplemanga.Manga) string {
	if len(mangas) == 0 {
		return ""
	}
	return mangas[0].ID
}
