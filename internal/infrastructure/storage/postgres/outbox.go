package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain"
	"sellerdesk/pkg/logger"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxMessage is a row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

const insertOutbox = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// OutboxPublisher writes domain events to sys_outbox in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish stores event. It must run inside a transaction so the event
// commits or rolls back together with the change it describes.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	t := txFromContext(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish %s: no transaction in context", event.EventType)
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}
	_, err = t.Exec(ctx, insertOutbox,
		id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch stores several events with one round trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []domain.Event) error {
	t := txFromContext(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish batch: no transaction in context")
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event.EventType, err)
		}
		batch.Queue(insertOutbox,
			id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxPending, now)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler delivers one message.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number.
	Backoff time.Duration
}

// OutboxRelay moves pending messages to a handler.
// Several relays may run at once; rows are claimed with SKIP LOCKED.
type OutboxRelay struct {
	txManager *TxManager
	handler   OutboxHandler
	cfg       RelayConfig
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txManager *TxManager, handler OutboxHandler, cfg RelayConfig) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	return &OutboxRelay{txManager: txManager, handler: handler, cfg: cfg}
}

// ProcessBatch claims up to BatchSize due messages and hands them to the
// handler. Failures are rescheduled; after MaxRetries the message is failed.
// It returns the number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	delivered := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		rows, err := q.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, OutboxPending, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}
		messages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxMessage])
		if err != nil {
			return fmt.Errorf("scan outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, q, msg); err != nil {
				return err
			}
			if msg.Status == OutboxPublished {
				delivered++
			}
		}
		return nil
	})
	return delivered, err
}

// deliver runs the handler under a savepoint and records the outcome.
// Only bookkeeping errors are returned.
func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	opts := DefaultTxOptions()
	opts.Savepoint = true
	handleErr := r.txManager.RunWithOptions(ctx, opts, func(ctx context.Context) error {
		return r.handler.Handle(ctx, msg)
	})
	if handleErr == nil {
		msg.Status = OutboxPublished
		_, err := q.Exec(ctx,
			`UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3`,
			OutboxPublished, time.Now().UTC(), msg.ID)
		if err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		return nil
	}

	attempt := msg.RetryCount + 1
	status := OutboxPending
	if attempt >= r.cfg.MaxRetries {
		status = OutboxFailed
	}
	logger.Warn(ctx, "outbox delivery failed",
		"message_id", msg.ID, "event_type", msg.EventType, "attempt", attempt, "error", handleErr)

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
		WHERE id = $5`,
		attempt, handleErr.Error(), time.Now().UTC().Add(time.Duration(attempt)*r.cfg.Backoff), status, msg.ID)
	if err != nil {
		return fmt.Errorf("reschedule message: %w", err)
	}
	msg.Status = status
	return nil
}

// MoveToDLQ moves failed messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox WHERE status = $1
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT moved.*, NOW() AS failed_at FROM moved`, OutboxFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupPublished deletes messages published before cutoff.
func (r *OutboxRelay) CleanupPublished(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`, OutboxPublished, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		switch {
		case err != nil:
			logger.Error(ctx, "outbox batch failed", "error", err)
		case n > 0:
			logger.Debug(ctx, "outbox batch delivered", "count", n)
		}
		if err == nil && n >= r.cfg.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Dispatcher routes messages to handlers by event type.
// Unknown event types are treated as delivered.
type Dispatcher map[string]OutboxHandler

func (d Dispatcher) Handle(ctx context.Context, msg *OutboxMessage) error {
	h, ok := d[msg.EventType]
	if !ok {
		logger.Debug(ctx, "no outbox handler", "event_type", msg.EventType)
		return nil
	}
	return h.Handle(ctx, msg)
}
