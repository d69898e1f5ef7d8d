package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sellerdesk/migrations"
	"sellerdesk/pkg/logger"
)

// migrationLockID serializes concurrent Migrate calls across processes.
const migrationLockID int64 = 0x5e11e4de5c

// Migrate applies the embedded migrations that are not recorded in
// schema_migrations yet, all in one transaction. It returns the IDs applied.
func Migrate(ctx context.Context, txManager *TxManager) ([]string, error) {
	all, err := migrations.All()
	if err != nil {
		return nil, err
	}

	var done []string
	err = txManager.RunWithOptions(ctx, TxOptions{IsolationLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}, func(ctx context.Context) error {
		q := txManager.GetQuerier(ctx)

		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("lock migrations: %w", err)
		}
		if _, err := q.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				id         TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`); err != nil {
			return fmt.Errorf("ensure schema_migrations: %w", err)
		}

		rows, err := q.Query(ctx, `SELECT id FROM schema_migrations`)
		if err != nil {
			return fmt.Errorf("load applied migrations: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan applied migrations: %w", err)
		}

		for _, m := range pendingMigrations(all, ids) {
			if _, err := q.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("apply migration %q: %w", m.ID, err)
			}
			if _, err := q.Exec(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
				return fmt.Errorf("record migration %q: %w", m.ID, err)
			}
			done = append(done, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(done) > 0 {
		logger.Info(ctx, "schema migrated", "applied", done)
	}
	return done, nil
}

// pendingMigrations keeps the order of all and drops the applied IDs.
func pendingMigrations(all []migrations.Migration, applied []string) []migrations.Migration {
	seen := make(map[string]bool, len(applied))
	for _, id := range applied {
		seen[id] = true
	}
	var out []migrations.Migration
	for _, m := range all {
		if !seen[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
