package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestWithPort(t *testing.T) {
	cfg, err := Load(WithPort("9090"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got: %s", cfg.Port)
	}
}

func TestWithPortEmpty(t *testing.T) {
	_, err := Load(WithPort(""))
	if err == nil {
		t.Error("expected error for empty port, got nil")
	}
}

func TestWithEnvironment(t *testing.T) {
	cfg, err := Load(WithEnvironment("production"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got: %s", cfg.Environment)
	}
}

func TestWithLogLevel(t *testing.T) {
	tests := []struct {
		level     string
		want      slog.Level
		wantError bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg, err := Load(WithLogLevel(tt.level))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if cfg.Level() != tt.want {
				t.Errorf("expected level %v, got: %v", tt.want, cfg.Level())
			}
		})
	}
}

func TestWithCatalogAndStorage(t *testing.T) {
	tests := []struct {
		name      string
		catalog   string
		storage   string
		wantError bool
	}{
		{"memory", "memory", "memory://", false},
		{"bolt and fs", "bolt:///tmp/manga.db", "file:///tmp/pages", false},
		{"postgres and s3", "postgres://localhost/manga", "s3://pages", false},
		{"bad catalog", "sqlite://manga.db", "memory://", true},
		{"bad storage", "memory", "gs://pages", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithCatalog(tt.catalog), WithStorage(tt.storage))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if cfg.CatalogURL != tt.catalog || cfg.StorageURL != tt.storage {
				t.Errorf("unexpected config: %+v", cfg)
			}
		})
	}
}

func TestWithBoltFile(t *testing.T) {
	cfg, err := Load(WithBoltFile("/var/lib/manga/manga.db"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	catalog, _ := parseCatalogURL(cfg.CatalogURL)
	storage, _ := parseStorageURL(cfg.StorageURL)
	if catalog.Type != "bolt" || storage.Type != "bolt" {
		t.Fatalf("expected bolt stores, got %s and %s", catalog.Type, storage.Type)
	}
	if catalog.Path != storage.Path {
		t.Errorf("expected shared path, got %q and %q", catalog.Path, storage.Path)
	}
}

func TestWithKeyLayout(t *testing.T) {
	if _, err := Load(WithKeyLayout("flat")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := Load(WithKeyLayout("nested")); err == nil {
		t.Error("expected error for unknown layout")
	}
}

func TestWithUploadConcurrency(t *testing.T) {
	cfg, err := Load(WithUploadConcurrency(2))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.UploadConcurrency != 2 {
		t.Errorf("expected 2, got %d", cfg.UploadConcurrency)
	}
	if _, err := Load(WithUploadConcurrency(0)); err == nil {
		t.Error("expected error for zero concurrency")
	}
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `port: "9191"
log_level: warn
catalog_url: bolt:///srv/manga/manga.db
storage_url: s3://pages?region=eu-central-1
upload_concurrency: 4
s3:
  create_bucket_if_not_exist: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithFile(path))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9191" {
		t.Errorf("expected port 9191, got %q", cfg.Port)
	}
	if cfg.Level() != slog.LevelWarn {
		t.Errorf("expected warn level, got %v", cfg.Level())
	}
	if cfg.CatalogURL != "bolt:///srv/manga/manga.db" {
		t.Errorf("unexpected catalog URL %q", cfg.CatalogURL)
	}
	if cfg.UploadConcurrency != 4 {
		t.Errorf("expected upload concurrency 4, got %d", cfg.UploadConcurrency)
	}
	if !cfg.S3.CreateBucketIfNotExist {
		t.Error("expected nested s3 settings to be read")
	}
	// Unset fields keep their defaults
	if cfg.Environment != "development" {
		t.Errorf("expected default environment, got %q", cfg.Environment)
	}
}

func TestWithFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9191\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9292")

	cfg, err := Load(WithFile(path), WithEnv(""))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9292" {
		t.Errorf("expected environment to win, got %q", cfg.Port)
	}
}

func TestWithFileMissing(t *testing.T) {
	if _, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml"))); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(WithFile("")); err != nil {
		t.Errorf("expected empty path to be ignored, got: %v", err)
	}
}
