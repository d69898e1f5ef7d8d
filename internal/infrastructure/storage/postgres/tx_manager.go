package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sellerdesk/internal/core/tx"
	"sellerdesk/pkg/logger"
)

var tracer = otel.Tracer("sellerdesk/postgres")

var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures a transaction.
type TxOptions struct {
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode

	// StatementTimeout is applied with SET LOCAL. Zero leaves the server default.
	StatementTimeout time.Duration

	// Savepoint wraps a nested call in a savepoint so its failure does not
	// abort the outer transaction.
	Savepoint bool
}

// DefaultTxOptions returns read committed, read-write, 30s statement timeout.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// Querier is what repositories run statements on: the active transaction or the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager keeps the active transaction in the context.
// Nested calls join the outer transaction.
type TxManager struct {
	pool       *pgxpool.Pool
	savepoints atomic.Uint64
}

// NewTxManager creates a transaction manager over pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

type txKey struct{}

// RunInTransaction implements tx.Manager.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunWithOptions(ctx, DefaultTxOptions(), fn)
}

// ReadOnly runs fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly
	return m.RunWithOptions(ctx, opts, fn)
}

// RunWithOptions runs fn in a transaction configured by opts.
func (m *TxManager) RunWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "postgres.tx", trace.WithAttributes(
		attribute.String("db.tx.isolation", string(opts.IsolationLevel)),
		attribute.String("db.tx.access", string(opts.AccessMode)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if outer := txFromContext(ctx); outer != nil {
		span.SetAttributes(attribute.Bool("db.tx.nested", true))
		if !opts.Savepoint {
			return fn(ctx)
		}
		return m.withSavepoint(ctx, outer, fn)
	}
	return m.begin(ctx, opts, fn)
}

func (m *TxManager) begin(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	t, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsolationLevel, AccessMode: opts.AccessMode})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds())
		if _, err := t.Exec(ctx, stmt); err != nil {
			_ = t.Rollback(context.Background())
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		// the caller's context may already be cancelled
		if rbErr := t.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) withSavepoint(ctx context.Context, outer pgx.Tx, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("sp_%d", m.savepoints.Add(1))
	if _, err := outer.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := outer.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		return err
	}
	if _, err := outer.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	t, _ := ctx.Value(txKey{}).(pgx.Tx)
	return t
}

// InTransaction reports whether ctx carries an active transaction.
func (m *TxManager) InTransaction(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// GetQuerier returns the active transaction or the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := txFromContext(ctx); t != nil {
		return t
	}
	return m.pool
}

// Pool returns the underlying pool.
func (m *TxManager) Pool() *pgxpool.Pool {
	return m.pool
}
