package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/auth"
	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/config"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/ingest"
	"github.com/bryan-buckman/sftu/internal/logging"
	"github.com/bryan-buckman/sftu/internal/metrics"
	"github.com/bryan-buckman/sftu/internal/model"
	"github.com/bryan-buckman/sftu/internal/server"
	"github.com/bryan-buckman/sftu/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sftu: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup still runs.
func run() error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Error("sftu exited", zap.Error(err))
		return err
	}
	return nil
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize database.
	var db *database.DB
	var err error
	if cfg.UsePostgres() {
		logger.Info("using PostgreSQL database")
		db, err = database.NewPostgres(cfg.DatabaseURL)
	} else {
		logger.Info("using SQLite database", zap.String("path", cfg.SQLitePath))
		db, err = database.New(cfg.SQLitePath)
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedIfEmpty(ctx, db, logger); err != nil {
		logger.Warn("seed reference listings", zap.Error(err))
	}
	if err := initPollingInterval(ctx, db, cfg.Ingest.PollingIntervalMinutes); err != nil {
		logger.Warn("store polling interval", zap.Error(err))
	}

	// Sessions, optionally cached in Redis.
	var lookup session.Lookup = db
	var authOpts []auth.Option
	if cfg.Redis.Addr != "" {
		client, err := session.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, sessions uncached", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer client.Close()
			cache := session.NewRedisCache(client, db, time.Duration(cfg.Redis.TTLSeconds)*time.Second, logger)
			lookup = cache
			authOpts = append(authOpts, auth.WithLookup(cache), auth.WithInvalidator(cache))
			logger.Info("session cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}
	viewers := session.NewCookieProvider(lookup, db, logger)
	authHandler := auth.New(cfg.Auth, db, logger, authOpts...)
	if cfg.Auth.GoogleClientID == "" {
		logger.Warn("google sign-in not configured")
	}

	m := metrics.New()

	deps := server.Deps{
		Catalog:     catalog.NewStoreSource(db, logger),
		Viewers:     viewers,
		Store:       db,
		Auth:        authHandler.Routes(),
		Metrics:     m,
		Logger:      logger,
		PageSize:    cfg.PageSize,
		AdminSecret: cfg.Auth.Secret,
	}
	if cfg.Ingest.Enabled {
		fetcher := ingest.NewFetcher(db, time.Duration(cfg.Ingest.FetchTimeoutSeconds)*time.Second, m, logger)
		deps.Poller = ingest.NewPoller(fetcher, db, logger)
	}

	srv, err := server.New(deps)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedIfEmpty stores the reference listings on first start.
func seedIfEmpty(ctx context.Context, db database.Store, logger *zap.Logger) error {
	listings, err := db.ListListings(ctx)
	if err != nil {
		return err
	}
	if len(listings) > 0 {
		return nil
	}
	created, err := catalog.Seed(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("seeded reference listings", zap.Int("created", created))
	return nil
}

// initPollingInterval stores the configured interval unless an admin has
// already saved one, which takes precedence across restarts.
func initPollingInterval(ctx context.Context, db database.Store, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	_, err := db.GetSetting(ctx, model.SettingPollingInterval)
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}
	return db.SetSetting(ctx, model.SettingPollingInterval, strconv.Itoa(minutes))
}
