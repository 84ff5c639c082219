// Package main is the entrypoint for the pixgen API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/pixgen/internal/api"
	"github.com/kiranshivaraju/pixgen/internal/api/handler"
	mw "github.com/kiranshivaraju/pixgen/internal/api/middleware"
	"github.com/kiranshivaraju/pixgen/internal/api/response"
	"github.com/kiranshivaraju/pixgen/internal/cache"
	"github.com/kiranshivaraju/pixgen/internal/config"
	"github.com/kiranshivaraju/pixgen/internal/generation"
	"github.com/kiranshivaraju/pixgen/internal/pixai"
	"github.com/kiranshivaraju/pixgen/internal/runs"
	"github.com/kiranshivaraju/pixgen/internal/storage"
	"github.com/kiranshivaraju/pixgen/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "endpoint", cfg.PixAI.Endpoint, "env", cfg.Server.Env,
		"output_dir", cfg.Output.Dir, "mirror", cfg.Minio.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build the generation runner
	opts := generation.OptionsFromConfig(cfg)
	if cfg.Minio.Enabled() {
		mirror, err := storage.NewMinioMirror(cfg.Minio)
		if err != nil {
			return fmt.Errorf("create artifact mirror: %w", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure mirror bucket: %w", err)
		}
		opts.Mirror = mirror
		slog.Info("artifact mirror enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	}
	client := pixai.NewHTTPClient(pixai.Options{
		Endpoint: cfg.PixAI.Endpoint,
		APIKey:   cfg.PixAI.APIKey,
		Timeout:  cfg.PixAI.HTTPTimeout,
	})
	runner := generation.NewRunner(client, opts, slog.Default())

	// 6. Create store and run service
	pgStore := store.NewPostgresStore(pool)
	runService := runs.NewService(runner, pgStore, redisCache, slog.Default())

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimit)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:    healthHandler(pgStore, redisCache),
		GenerateHandler:  handler.NewGenerateHandler(runService, cfg.Generation),
		GetRunHandler:    handler.NewGetRunHandler(runService),
		ListRunsHandler:  handler.NewListRunsHandler(runService),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := runService.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("run service shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, response.CodeDegraded,
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
