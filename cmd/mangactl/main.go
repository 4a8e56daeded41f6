package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-manga/internal/logging"
	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mangactl",
		Short: "Manage a simple-manga catalog",
		Long: `mangactl operates directly on the catalog and image stores configured
through CATALOG_URL and STORAGE_URL (or a config file).

Use it for bulk imports and maintenance while no server writes to the
same stores.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewAddCommand())
	rootCmd.AddCommand(NewImportCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewDeleteChapterCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewGCCommand())
	rootCmd.AddCommand(NewMigrateCommand())

	return rootCmd
}

// loadConfig reads the configuration selected by the command flags.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.WithFile(configFile), config.WithEnv(""))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.ServerConfig) *slog.Logger {
	level := cfg.Level()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	} else if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return logging.New(level)
}

// openService builds the configured service and loads the catalog.
func openService(cmd *cobra.Command) (simplemanga.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)

	svc, err := cfg.BuildService(
		simplemanga.WithLogger(logger),
		simplemanga.WithObserver(simplemanga.LogObserver{Logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	if err := svc.Initialize(commandContext(cmd)); err != nil {
		var hydration *simplemanga.HydrationError
		if !errors.As(err, &hydration) {
			svc.Close()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Warn("Catalog loaded with missing images", "failures", len(hydration.Failures))
	}
	return svc, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
