package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/objectkey"
)

// Backend is a filesystem implementation of the simplemanga.BlobStore interface
type Backend struct {
	baseDir string
	keys    objectkey.Generator
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string              // Base directory for storing files
	Keys    objectkey.Generator // Optional key layout, defaults to git-like sharding
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	keys := config.Keys
	if keys == nil {
		keys = objectkey.NewRecommendedGenerator()
	}

	return &Backend{
		baseDir: config.BaseDir,
		keys:    keys,
	}, nil
}

func (b *Backend) path(id string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(b.keys.Key(id)))
}

// Put writes data to a new file. The file is created exclusively so an
// existing object is never overwritten.
func (b *Backend) Put(ctx context.Context, data []byte) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", b.storageError("put", "", err)
		}

		id := simplemanga.NewID()
		filePath := b.path(id)

		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return "", b.storageError("put", id, fmt.Errorf("failed to create directory: %w", err))
		}

		file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		} else if err != nil {
			return "", b.storageError("put", id, fmt.Errorf("failed to create file: %w", err))
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(filePath)
			return "", b.storageError("put", id, fmt.Errorf("failed to write file: %w", err))
		}
		if err := file.Close(); err != nil {
			os.Remove(filePath)
			return "", b.storageError("put", id, fmt.Errorf("failed to close file: %w", err))
		}
		return id, nil
	}
}

// Get reads an object from the filesystem
func (b *Backend) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.storageError("get", id, err)
	}

	data, err := os.ReadFile(b.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, simplemanga.ErrImageNotFound
	} else if err != nil {
		return nil, b.storageError("get", id, fmt.Errorf("failed to read file: %w", err))
	}
	return data, nil
}

// Delete deletes an object from the filesystem. Missing files are ignored.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return b.storageError("delete", id, err)
	}

	filePath := b.path(id)
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return b.storageError("delete", id, fmt.Errorf("failed to delete file: %w", err))
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// List walks the base directory and returns the IDs of every stored object
func (b *Backend) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(b.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		if id, ok := b.keys.ID(filepath.ToSlash(rel)); ok {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, b.storageError("list", "", err)
	}
	return ids, nil
}

func (b *Backend) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "fs", Key: id, Op: op, Err: err}
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	// Don't remove the base directory
	if dir == filepath.Clean(b.baseDir) || len(dir) <= len(filepath.Clean(b.baseDir)) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
