// Package main is the entry point for the sellerdesk background worker.
// It relays the outbox and cleans up expired system rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sellerdesk/internal/config"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/infrastructure/storage/postgres"
	"sellerdesk/internal/infrastructure/storage/postgres/listing_repo"
	"sellerdesk/pkg/logger"
)

// publishedRetention is how long delivered outbox rows are kept.
const publishedRetention = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "sellerdesk-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting sellerdesk worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = min(cfg.Database.MaxConns, 10)
	poolCfg.ApplicationName = "sellerdesk-worker"

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	listingService := listing.NewService(listing_repo.NewListingRepo(txManager), txManager)

	journal, err := postgres.NewBulkJournal(txManager, cfg.Bulk.JournalCompressAbove)
	if err != nil {
		log.Fatalw("failed to create bulk journal", "error", err)
	}

	relay := postgres.NewOutboxRelay(txManager, postgres.Dispatcher{
		bulk.EventReprocessRequested: reprocessHandler(listingService),
	}, postgres.RelayConfig{BatchSize: cfg.Worker.OutboxBatchSize})

	w := &Worker{
		log:         log.WithComponent("worker"),
		relay:       relay,
		idempotency: postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL),
		journal:     journal,
		cfg:         cfg.Worker,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relay.Run(ctx, cfg.Worker.OutboxInterval)
	}()
	go func() {
		defer wg.Done()
		w.RunCleanup(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down worker...")
	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs periodic maintenance.
type Worker struct {
	log         *logger.Logger
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	journal     *postgres.BulkJournal
	cfg         config.WorkerConfig
}

// RunCleanup runs cleanup every CleanupInterval until ctx is done.
func (w *Worker) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.cleanup(ctx, now)
		}
	}
}

func (w *Worker) cleanup(ctx context.Context, now time.Time) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "error", err)
	} else if n > 0 {
		w.log.Warnw("outbox messages moved to DLQ", "count", n)
	}

	if n, err := w.relay.CleanupPublished(ctx, now.Add(-publishedRetention)); err != nil {
		w.log.Errorw("failed to clean up outbox", "error", err)
	} else if n > 0 {
		w.log.Infow("published outbox messages removed", "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("expired idempotency keys removed", "count", n)
	}

	if w.cfg.JournalRetention > 0 {
		if n, err := w.journal.Cleanup(ctx, now.Add(-w.cfg.JournalRetention)); err != nil {
			w.log.Errorw("failed to clean up bulk journal", "error", err)
		} else if n > 0 {
			w.log.Infow("old bulk operations removed", "count", n)
		}
	}
}
