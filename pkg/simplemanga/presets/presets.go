// Package presets builds manga services for common setups without the
// config package's environment handling.
package presets

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	memoryrepo "github.com/tendant/simple-manga/pkg/simplemanga/repo/memory"
	fsstorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/fs"
	memorystorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/memory"
)

// DevelopmentOption customizes NewDevelopment.
type DevelopmentOption func(*devConfig)

type devConfig struct {
	storageDir string
	logger     *slog.Logger
	observers  []simplemanga.Observer
}

// WithDevStorageDir sets the directory page images are written to.
func WithDevStorageDir(dir string) DevelopmentOption {
	return func(c *devConfig) { c.storageDir = dir }
}

// WithDevLogger sets the service logger.
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(c *devConfig) { c.logger = logger }
}

// WithDevObserver registers an observer of committed changes.
func WithDevObserver(o simplemanga.Observer) DevelopmentOption {
	return func(c *devConfig) { c.observers = append(c.observers, o) }
}

// NewDevelopment creates a service for local development: an in-memory
// catalog with page images on disk under ./dev-data.
//
// The returned cleanup closes the service and removes the storage directory.
//
// Example:
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simplemanga.Service, func(), error) {
	cfg := &devConfig{storageDir: "./dev-data"}
	for _, opt := range opts {
		opt(cfg)
	}

	blobs, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	options := []simplemanga.Option{
		simplemanga.WithCatalogStore(memoryrepo.New()),
		simplemanga.WithBlobStore(blobs),
	}
	if cfg.logger != nil {
		options = append(options, simplemanga.WithLogger(cfg.logger))
	}
	for _, o := range cfg.observers {
		options = append(options, simplemanga.WithObserver(o))
	}

	svc, err := simplemanga.New(options...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		svc.Close()
		os.RemoveAll(cfg.storageDir)
	}
	return svc, cleanup, nil
}

// TestingOption customizes NewTesting.
type TestingOption func(*testConfig)

type testConfig struct {
	catalog   simplemanga.CatalogStore
	blobs     simplemanga.BlobStore
	observers []simplemanga.Observer
}

// WithTestCatalog replaces the in-memory catalog store.
func WithTestCatalog(store simplemanga.CatalogStore) TestingOption {
	return func(c *testConfig) { c.catalog = store }
}

// WithTestBlobStore replaces the in-memory blob store, typically with a
// wrapper that injects failures.
func WithTestBlobStore(store simplemanga.BlobStore) TestingOption {
	return func(c *testConfig) { c.blobs = store }
}

// WithTestObserver registers an observer of committed changes.
func WithTestObserver(o simplemanga.Observer) TestingOption {
	return func(c *testConfig) { c.observers = append(c.observers, o) }
}

// NewTesting creates an isolated in-memory service that is closed when the
// test completes. Log output is discarded.
func NewTesting(t testing.TB, opts ...TestingOption) simplemanga.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.catalog == nil {
		cfg.catalog = memoryrepo.New()
	}
	if cfg.blobs == nil {
		cfg.blobs = memorystorage.New()
	}

	options := []simplemanga.Option{
		simplemanga.WithCatalogStore(cfg.catalog),
		simplemanga.WithBlobStore(cfg.blobs),
		simplemanga.WithLogger(slog.New(slog.DiscardHandler)),
	}
	for _, o := range cfg.observers {
		options = append(options, simplemanga.WithObserver(o))
	}

	svc, err := simplemanga.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}
