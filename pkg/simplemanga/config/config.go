package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/objectkey"
	boltrepo "github.com/tendant/simple-manga/pkg/simplemanga/repo/bolt"
	"github.com/tendant/simple-manga/pkg/simplemanga/repo/memory"
	repopg "github.com/tendant/simple-manga/pkg/simplemanga/repo/postgres"
	boltstorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/bolt"
	fsstorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/fs"
	memorystorage "github.com/tendant/simple-manga/pkg/simplemanga/storage/memory"
	s3storage "github.com/tendant/simple-manga/pkg/simplemanga/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:              "8080",
		Environment:       "development",
		LogLevel:          "info",
		CatalogURL:        "memory",
		StorageURL:        "memory://",
		KeyLayout:         "git",
		UploadConcurrency: simplemanga.DefaultBatchConcurrency,
		AutoMigrate:       true,
	}
}

// ServerConfig represents the configuration of a simple-manga process
type ServerConfig struct {
	Port        string `yaml:"port" json:"port"`
	Environment string `yaml:"environment" json:"environment"` // development, production, testing
	LogLevel    string `yaml:"log_level" json:"log_level"`     // debug, info, warn, error

	// Catalog store: "memory", "bolt:///path/manga.db" or "postgres://..."
	CatalogURL  string `yaml:"catalog_url" json:"catalog_url"`
	DBSchema    string `yaml:"db_schema" json:"db_schema"` // Postgres schema to use
	AutoMigrate bool   `yaml:"auto_migrate" json:"auto_migrate"`

	// Blob store: "memory://", "file:///path", "bolt:///path/manga.db" or
	// "s3://bucket?region=us-east-1&endpoint=http://localhost:9000"
	StorageURL string   `yaml:"storage_url" json:"storage_url"`
	KeyLayout  string   `yaml:"key_layout" json:"key_layout"` // "git" or "flat", for fs and s3
	S3         S3Config `yaml:"s3" json:"s3"`

	UploadConcurrency int `yaml:"upload_concurrency" json:"upload_concurrency"`
}

// S3Config holds S3 settings that do not fit in STORAGE_URL
type S3Config struct {
	AccessKeyID            string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey        string `yaml:"secret_access_key" json:"secret_access_key"`
	EnableSSE              bool   `yaml:"enable_sse" json:"enable_sse"`
	SSEAlgorithm           string `yaml:"sse_algorithm" json:"sse_algorithm"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" json:"sse_kms_key_id"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket_if_not_exist" json:"create_bucket_if_not_exist"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := parseCatalogURL(c.CatalogURL); err != nil {
		return err
	}
	if _, err := parseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if c.KeyLayout != "git" && c.KeyLayout != "flat" {
		return fmt.Errorf("key_layout must be 'git' or 'flat', got: %s", c.KeyLayout)
	}
	if c.UploadConcurrency <= 0 {
		return errors.New("upload_concurrency must be positive")
	}
	return nil
}

// Level returns the configured slog level
func (c *ServerConfig) Level() slog.Level {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

// ParseLogLevel maps a level name to a slog.Level
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// catalogTarget is a parsed CatalogURL
type catalogTarget struct {
	Type string // "memory", "bolt", "postgres"
	Path string
	URL  string
}

func parseCatalogURL(raw string) (catalogTarget, error) {
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return catalogTarget{Type: "memory"}, nil
	case strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://"):
		return catalogTarget{Type: "postgres", URL: raw}, nil
	case strings.HasPrefix(raw, "bolt://"):
		path, err := urlPath(raw)
		if err != nil {
			return catalogTarget{}, fmt.Errorf("invalid catalog URL: %w", err)
		}
		return catalogTarget{Type: "bolt", Path: path}, nil
	}
	return catalogTarget{}, fmt.Errorf("unsupported catalog URL format: %s (use 'memory', 'bolt:///path' or 'postgres://...')", raw)
}

// storageTarget is a parsed StorageURL
type storageTarget struct {
	Type         string // "memory", "fs", "bolt", "s3"
	Path         string
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

func parseStorageURL(raw string) (storageTarget, error) {
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return storageTarget{Type: "memory"}, nil
	case strings.HasPrefix(raw, "file://"):
		path, err := urlPath(raw)
		if err != nil {
			return storageTarget{}, fmt.Errorf("invalid storage URL: %w", err)
		}
		return storageTarget{Type: "fs", Path: path}, nil
	case strings.HasPrefix(raw, "bolt://"):
		path, err := urlPath(raw)
		if err != nil {
			return storageTarget{}, fmt.Errorf("invalid storage URL: %w", err)
		}
		return storageTarget{Type: "bolt", Path: path}, nil
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return storageTarget{}, fmt.Errorf("invalid storage URL: %w", err)
		}
		if u.Host == "" {
			return storageTarget{}, errors.New("S3 bucket name cannot be empty in storage URL")
		}
		q := u.Query()
		target := storageTarget{
			Type:     "s3",
			Bucket:   u.Host,
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}
		if target.Region == "" {
			target.Region = "us-east-1"
		}
		// Custom endpoints are almost always MinIO-style and need path-style
		// addressing unless told otherwise.
		target.UsePathStyle = target.Endpoint != ""
		if v := q.Get("path_style"); v != "" {
			target.UsePathStyle = v == "true" || v == "1"
		}
		return target, nil
	}
	return storageTarget{}, fmt.Errorf("unsupported storage URL format: %s (use 'memory://', 'file://...', 'bolt://...' or 's3://...')", raw)
}

// urlPath extracts the path of a file:// or bolt:// URL. Both
// "bolt:///abs/path" and "bolt://relative/path" are accepted.
func urlPath(raw string) (string, error) {
	_, rest, _ := strings.Cut(raw, "://")
	if rest == "" {
		return "", fmt.Errorf("path cannot be empty in %s", raw)
	}
	return filepath.Clean(filepath.FromSlash(rest)), nil
}

// BuildService creates a Service instance from the server configuration.
// Extra options are applied after the configured stores.
func (c *ServerConfig) BuildService(extra ...simplemanga.Option) (simplemanga.Service, error) {
	stores, err := c.BuildStores()
	if err != nil {
		return nil, err
	}

	options := []simplemanga.Option{
		simplemanga.WithCatalogStore(stores.Catalog),
		simplemanga.WithBlobStore(stores.Blobs),
		simplemanga.WithUploadConcurrency(c.UploadConcurrency),
	}
	options = append(options, extra...)

	svc, err := simplemanga.New(options...)
	if err != nil {
		stores.Close()
		return nil, err
	}
	return svc, nil
}

// Stores holds the configured catalog and blob stores
type Stores struct {
	Catalog simplemanga.CatalogStore
	Blobs   simplemanga.BlobStore
	closers []func() error
}

// Close releases every resource opened for the stores
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// BuildStores opens the configured stores. When catalog and blob store both
// point at the same bolt file, the file is opened once and shared.
func (c *ServerConfig) BuildStores() (*Stores, error) {
	catalogCfg, err := parseCatalogURL(c.CatalogURL)
	if err != nil {
		return nil, err
	}
	storageCfg, err := parseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}

	stores := &Stores{}
	fail := func(err error) (*Stores, error) {
		stores.Close()
		return nil, err
	}

	if catalogCfg.Type == "bolt" && storageCfg.Type == "bolt" && catalogCfg.Path == storageCfg.Path {
		db, err := boltstorage.OpenDB(catalogCfg.Path)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, db.Close)
		if stores.Catalog, err = boltrepo.New(db); err != nil {
			return fail(err)
		}
		if stores.Blobs, err = boltstorage.New(db); err != nil {
			return fail(err)
		}
		stores.wrap()
		return stores, nil
	}

	if stores.Catalog, err = c.buildCatalog(catalogCfg, stores); err != nil {
		return fail(fmt.Errorf("failed to build catalog store: %w", err))
	}
	if stores.Blobs, err = c.buildStorage(storageCfg, stores); err != nil {
		return fail(fmt.Errorf("failed to build storage backend: %w", err))
	}
	stores.wrap()
	return stores, nil
}

// wrap hands resource ownership to the catalog store so Service.Close
// releases everything.
func (s *Stores) wrap() {
	if len(s.closers) == 0 {
		return
	}
	s.Catalog = &closingCatalog{CatalogStore: s.Catalog, close: s.Close}
}

type closingCatalog struct {
	simplemanga.CatalogStore
	close func() error
}

func (c *closingCatalog) Close() error {
	return c.close()
}

func (c *ServerConfig) buildCatalog(target catalogTarget, stores *Stores) (simplemanga.CatalogStore, error) {
	switch target.Type {
	case "memory":
		return memory.New(), nil
	case "bolt":
		repo, err := boltrepo.Open(target.Path)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, repo.Close)
		return repo, nil
	case "postgres":
		pool, err := NewPostgresPool(context.Background(), target.URL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, func() error { pool.Close(); return nil })
		if c.AutoMigrate {
			if err := repopg.Migrate(context.Background(), pool); err != nil {
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported catalog type: %s", target.Type)
	}
}

func (c *ServerConfig) buildStorage(target storageTarget, stores *Stores) (simplemanga.BlobStore, error) {
	switch target.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: target.Path, Keys: c.keyGenerator()})
	case "bolt":
		backend, err := boltstorage.Open(target.Path)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, backend.Close)
		return backend, nil
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 target.Region,
			Bucket:                 target.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               target.Endpoint,
			UsePathStyle:           target.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
			Keys:                   c.keyGenerator(),
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", target.Type)
	}
}

func (c *ServerConfig) keyGenerator() objectkey.Generator {
	if c.KeyLayout == "flat" {
		return objectkey.NewFlatGenerator()
	}
	return objectkey.NewGitLikeGenerator()
}

// NewPostgresPool opens a pgx pool and optionally sets search_path for every
// session.
func NewPostgresPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// OpenCatalogPool opens a pool against the configured Postgres catalog. It
// fails when the catalog is not Postgres.
func (c *ServerConfig) OpenCatalogPool(ctx context.Context) (*pgxpool.Pool, error) {
	target, err := parseCatalogURL(c.CatalogURL)
	if err != nil {
		return nil, err
	}
	if target.Type != "postgres" {
		return nil, fmt.Errorf("catalog %s is not a postgres database", target.Type)
	}
	return NewPostgresPool(ctx, target.URL, c.DBSchema)
}
