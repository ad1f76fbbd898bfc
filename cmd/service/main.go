// cmd/service/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github-org-mirror/internal/api"
	"github-org-mirror/internal/auth"
	"github-org-mirror/internal/config"
	"github-org-mirror/internal/database"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/query"
	"github-org-mirror/internal/store"
	"github-org-mirror/internal/syncer"
	"github-org-mirror/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := pflag.String("env-file", "", "path to an env file (defaults to ./.env when present)")
	syncUser := pflag.String("sync-user", "", "run one sync pass for this user, print the report and exit")
	pflag.Parse()

	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "sync_mode", cfg.SyncMode, "sync_interval", cfg.SyncInterval.String())

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	st := store.New(database.New(dbpool), logger)
	ghClient := github.NewClient(logger,
		github.WithBaseURL(cfg.GithubAPIURL),
		github.WithRequestTimeout(cfg.GithubRequestTimeout),
		github.WithMaxRetries(cfg.GithubMaxRetries),
		github.WithPageDelay(cfg.SyncPageDelay),
	)
	appSyncer := syncer.NewSyncer(st, ghClient, logger, syncer.Options{
		Mode:               cfg.SyncMode,
		IncrementalOverlap: cfg.SyncIncrementalOverlap,
		CommitCap:          cfg.SyncCommitCap,
		ExtendedEntities:   cfg.SyncExtendedEntities,
		Interval:           cfg.SyncInterval,
		Concurrency:        cfg.SyncConcurrency,
	})
	defer appSyncer.Close()

	if *syncUser != "" {
		return syncOnce(ctx, appSyncer, *syncUser)
	}

	deps := api.Deps{
		Syncer:       appSyncer,
		Integrations: st,
		Collections:  query.NewService(dbpool, st, logger),
		FrontendURL:  cfg.FrontendURL,
		Logger:       logger,
	}
	if cfg.OAuthEnabled() {
		deps.OAuth = auth.NewGitHubProvider(cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubRedirectURL, ghClient)
	} else {
		logger.Warn("GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set; account connection is disabled")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 30 * time.Second,
	}

	// 6. Start the HTTP server and the syncer in separate goroutines
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go appSyncer.Start(ctx)

	// 7. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	appSyncer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func syncOnce(ctx context.Context, s *syncer.Syncer, userID string) error {
	report, err := s.Sync(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync for user %s failed: %w", userID, err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runMigrations(dbURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
