package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// Bucket names
var bucketImages = []byte("images")

// Backend is a bbolt implementation of the simplemanga.BlobStore interface.
// Every image is one key in the images bucket.
type Backend struct {
	db   *bbolt.DB
	owns bool
}

// OpenDB opens (creating if needed) a bbolt database file.
func OpenDB(path string) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return db, nil
}

// Open opens the database at path and returns a backend that closes it on
// Close.
func Open(path string) (*Backend, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	b, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	b.owns = true
	return b, nil
}

// New creates a backend over an open database. The caller keeps ownership of
// db.
func New(db *bbolt.DB) (*Backend, error) {
	if db == nil {
		return nil, errors.New("bolt db is required")
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create images bucket: %w", err)
	}
	return &Backend{db: db}, nil
}

// Put stores data under a fresh ID within one write transaction.
func (b *Backend) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", b.storageError("put", "", err)
	}

	var id string
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketImages)
		for {
			id = simplemanga.NewID()
			if k, _ := bucket.Cursor().Seek([]byte(id)); k == nil || string(k) != id {
				break
			}
		}
		if data == nil {
			data = []byte{}
		}
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return "", b.storageError("put", id, err)
	}
	return id, nil
}

// Get returns a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.storageError("get", id, err)
	}

	var data []byte
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		// Seek rather than Get: a zero-length image is still an image.
		k, v := tx.Bucket(bucketImages).Cursor().Seek([]byte(id))
		if k != nil && string(k) == id {
			found = true
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, b.storageError("get", id, err)
	}
	if !found {
		return nil, simplemanga.ErrImageNotFound
	}
	return data, nil
}

// Delete removes an image. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return b.storageError("delete", id, err)
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(id))
	})
	if err != nil {
		return b.storageError("delete", id, err)
	}
	return nil
}

// List returns every stored ID in key order
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.storageError("list", "", err)
	}

	var ids []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, b.storageError("list", "", err)
	}
	return ids, nil
}

// DB returns the underlying database
func (b *Backend) DB() *bbolt.DB {
	return b.db
}

// Close closes the database when the backend opened it
func (b *Backend) Close() error {
	if !b.owns {
		return nil
	}
	b.owns = false
	return b.db.Close()
}

func (b *Backend) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "bolt", Key: id, Op: op, Err: err}
}
