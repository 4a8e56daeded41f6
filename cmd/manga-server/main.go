package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-manga/internal/logging"
	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/api"
	"github.com/tendant/simple-manga/pkg/simplemanga/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "config file (yaml, json, toml or .env)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(config.WithFile(*configFile), config.WithEnv(""))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Level())
	slog.SetDefault(logger)

	svc, err := cfg.BuildService(
		simplemanga.WithLogger(logger),
		simplemanga.WithObserver(simplemanga.LogObserver{Logger: logger}),
	)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing images are reported but do not keep the catalog from loading.
	if err := svc.Initialize(ctx); err != nil {
		var hydration *simplemanga.HydrationError
		if !errors.As(err, &hydration) {
			return fmt.Errorf("failed to initialize catalog: %w", err)
		}
		logger.Warn("Catalog loaded with missing images", "failures", len(hydration.Failures))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes(svc, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Simple Manga Server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"catalog", cfg.CatalogURL,
			"storage", cfg.StorageURL,
			"mangas", len(svc.Mangas()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

func routes(svc simplemanga.Service, cfg *config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	chain := api.NewMiddlewareChain(
		api.RequestIDMiddleware,
		api.LoggingMiddleware(logger),
		api.RecoveryMiddleware(logger),
	)
	if cfg.Environment == "development" {
		chain = chain.Then(api.CORSMiddleware(nil))
	}
	r.Use(chain.Wrap)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"status":      "healthy",
			"environment": cfg.Environment,
			"mangas":      len(svc.Mangas()),
		})
	})

	const apiPrefix = "/api/v1"
	r.Mount(apiPrefix, api.NewMangaHandler(svc, api.WithLogger(logger), api.WithBasePath(apiPrefix)).Routes())
	return r
}
