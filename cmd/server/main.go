// Package main is the entry point for the sellerdesk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sellerdesk/internal/config"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/auth"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	v1 "sellerdesk/internal/infrastructure/http/v1"
	"sellerdesk/internal/infrastructure/export"
	"sellerdesk/internal/infrastructure/realtime"
	"sellerdesk/internal/infrastructure/storage/postgres"
	"sellerdesk/internal/infrastructure/storage/postgres/listing_repo"
	"sellerdesk/pkg/logger"
	"sellerdesk/pkg/numerator"
	"sellerdesk/pkg/ratelimit"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "sellerdesk-api",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting sellerdesk server", "version", version, "env", cfg.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.ApplicationName = "sellerdesk-api"

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	if cfg.Database.AutoMigrate {
		if _, err := postgres.Migrate(ctx, txManager); err != nil {
			log.Fatalw("failed to migrate database", "error", err)
		}
	}

	// --- Listings ---
	listingRepo := listing_repo.NewListingRepo(txManager)
	listingService := listing.NewService(listingRepo, txManager)

	// --- Bulk executor ---
	journal, err := postgres.NewBulkJournal(txManager, cfg.Bulk.JournalCompressAbove)
	if err != nil {
		log.Fatalw("failed to create bulk journal", "error", err)
	}

	bulkLimiter := ratelimit.NewPerMinute(cfg.Bulk.RatePerMinute, cfg.Bulk.Burst)
	go bulkLimiter.Run(ctx, ratelimit.DefaultCleanupInterval)

	hub := realtime.NewHub()

	deps := bulk.Deps{
		Repo:      listingRepo,
		TxManager: txManager,
		Journal:   journal,
		Events:    postgres.NewOutboxPublisher(txManager),
		Numerator: numerator.New(pool),
		Limiter:   bulkLimiter,
		Notifier:  hub,
	}
	if cfg.S3.Bucket != "" {
		store, err := export.NewS3Store(ctx, cfg.S3)
		if err != nil {
			log.Fatalw("failed to init export storage", "bucket", cfg.S3.Bucket, "error", err)
		}
		deps.Exporter = store
	} else {
		log.Warn("S3_BUCKET is empty, bulk export is disabled")
	}
	executor := bulk.NewExecutor(deps, bulk.Config{NumberPrefix: cfg.Bulk.NumberPrefix})

	// --- Selection sessions ---
	sessions := selection.NewRegistry[id.ID, filter.Scope](cfg.Selection.IdleTTL)
	go sweepSessions(ctx, log, sessions, cfg.Selection.SweepInterval)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:         log,
		JWTValidator:   auth.NewJWTService(cfg.JWT),
		DB:             pool,
		Listings:       listingService,
		Counter:        listingService,
		Sessions:       sessions,
		Executor:       executor,
		Hub:            hub,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		Version:        version,
		Debug:          cfg.IsDevelopment(),
	}
	if cfg.HTTP.IdempotencyEnabled {
		routerCfg.Idempotency = postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL)
	}
	if cfg.HTTP.RequestsPerMinute > 0 {
		apiLimiter := ratelimit.NewPerMinute(cfg.HTTP.RequestsPerMinute, cfg.HTTP.RequestBurst)
		go apiLimiter.Run(ctx, ratelimit.DefaultCleanupInterval)
		routerCfg.Limiter = apiLimiter
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}

// sweepSessions drops idle selection sessions until ctx is done.
func sweepSessions(ctx context.Context, log *logger.Logger, sessions *listing.SelectionRegistry, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Sweep(now); n > 0 {
				log.Debugw("selection sessions expired", "count", n, "live", sessions.Len())
			}
		}
	}
}
