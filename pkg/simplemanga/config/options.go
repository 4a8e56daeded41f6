package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the log level
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseLogLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}

// WithCatalog sets the catalog store URL
func WithCatalog(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseCatalogURL(url); err != nil {
			return err
		}
		c.CatalogURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate enables or disables Postgres migrations on startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithStorage sets the blob store URL
func WithStorage(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseStorageURL(url); err != nil {
			return err
		}
		c.StorageURL = url
		return nil
	}
}

// WithBoltFile stores both the catalog and the images in one bbolt file
func WithBoltFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("bolt file path cannot be empty")
		}
		c.CatalogURL = "bolt://" + path
		c.StorageURL = "bolt://" + path
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithKeyLayout selects the object key layout ("git" or "flat")
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		if layout != "git" && layout != "flat" {
			return fmt.Errorf("key layout must be 'git' or 'flat', got: %s", layout)
		}
		c.KeyLayout = layout
		return nil
	}
}

// WithUploadConcurrency bounds the in-flight blob operations of a batch
func WithUploadConcurrency(limit int) Option {
	return func(c *ServerConfig) error {
		if limit <= 0 {
			return fmt.Errorf("upload concurrency must be positive, got: %d", limit)
		}
		c.UploadConcurrency = limit
		return nil
	}
}

// WithFile reads a YAML, JSON, TOML or .env config file on top of the
// current values. An empty path is ignored so an unset flag can be passed
// through unconditionally.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithDefaults resets every field to the library defaults
func WithDefaults() Option {
	return func(c *ServerConfig) error {
		*c = defaults()
		return nil
	}
}
