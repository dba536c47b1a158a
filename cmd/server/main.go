package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/m2o/internal/config"
	"github.com/JonMunkholm/m2o/internal/core"
	"github.com/JonMunkholm/m2o/internal/logging"
	"github.com/JonMunkholm/m2o/internal/store"
	"github.com/JonMunkholm/m2o/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err, "code", core.MapError(err).Code)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"catalog_source", cfg.Data.CatalogSource,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"session_ttl", cfg.Session.TTL.String(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	data, err := loadData(cfg)
	if err != nil {
		return err
	}

	service, err := core.NewService(data, core.Options{
		SessionTTL:  cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		MaxExports:  cfg.Export.MaxConcurrent,
		ExportWait:  cfg.Export.MaxWaitTime,
	})
	if err != nil {
		return err
	}
	slog.Info("currencies available", "currencies", service.Currencies())

	server := web.NewServer(service, cfg)

	// Background jobs run until shutdown.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.StartSessionSweeper(jobCtx, cfg.Session.SweepInterval)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ExportStatus(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := service.WaitForExports(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}

// loadData reads the catalog, price matrices and template. A database pool
// is opened only when the catalog lives in PostgreSQL, and closed once the
// catalog is read.
func loadData(cfg *config.Config) (*core.Data, error) {
	ctx := context.Background()

	var q store.Querier
	if cfg.Data.CatalogSource == config.SourcePostgres {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Database.LoadTimeout)
		defer cancel()

		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		q = pool
	}

	return core.Load(ctx, cfg.Data, q)
}
