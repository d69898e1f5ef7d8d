package bulk

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/core/tx"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/pkg/logger"
	"sellerdesk/pkg/numerator"
)

var tracer = otel.Tracer("sellerdesk/bulk")

// reprocessChunk bounds the id list of a single outbox event.
const reprocessChunk = 500

// Config holds executor settings.
type Config struct {
	NumberPrefix string
}

// Deps wires the executor. Exporter and Notifier are optional.
type Deps struct {
	Repo      listing.Repository
	TxManager tx.Manager
	Journal   Journal
	Events    domain.EventPublisher
	Numerator Numerator
	Limiter   Limiter
	Exporter  Exporter
	Notifier  Notifier
}

// Executor runs bulk actions.
type Executor struct {
	Deps
	cfg Config
	now func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(deps Deps, cfg Config) *Executor {
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "BLK"
	}
	return &Executor{Deps: deps, cfg: cfg, now: time.Now}
}

// Execute runs req for the authenticated seller.
func (e *Executor) Execute(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "bulk.execute", trace.WithAttributes(
		attribute.String("bulk.action", string(req.Action)),
		attribute.String("selection.mode", string(req.Selection.Mode)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sellerID, err := listing.SellerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	userID := appctx.GetUserID(ctx)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Action == ActionExport && e.Exporter == nil {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "export storage is not configured")
	}
	target, err := ResolveTarget(req.Action, req.Selection)
	if err != nil {
		return nil, err
	}

	if e.Limiter != nil {
		key := userID
		if key == "" {
			key = "seller:" + sellerID
		}
		if ok, retry := e.Limiter.Allow(key); !ok {
			return nil, apperror.NewRateLimited(retry)
		}
	}

	startedAt := e.now().UTC()
	number, err := e.Numerator.GetNextNumber(ctx, numerator.DefaultConfig(e.cfg.NumberPrefix), nil, startedAt)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("allocate operation number: %w", err))
	}

	entry := newEntry(number, sellerID, userID, req, target, startedAt)
	res = &Result{
		ID:        entry.ID,
		Number:    number,
		Action:    req.Action,
		Mode:      target.Mode,
		StartedAt: startedAt,
	}
	span.SetAttributes(attribute.String("bulk.number", number))

	switch req.Action {
	case ActionSetStatus:
		err = e.setStatus(ctx, sellerID, target, req.Status, entry)
	case ActionReprocess:
		err = e.reprocess(ctx, sellerID, target, entry)
	case ActionExport:
		err = e.export(ctx, sellerID, target, entry)
	}
	if err != nil {
		logger.Warn(ctx, "bulk operation failed",
			"number", number, "action", req.Action, "mode", target.Mode, "error", err)
		return nil, err
	}

	res.Matched = entry.Matched
	res.Affected = entry.Affected
	res.Skipped = max(entry.Matched-entry.Affected, 0)
	res.ExportKey = entry.ExportKey
	if url, ok := entry.Params["downloadUrl"].(string); ok {
		res.DownloadURL = url
	}
	res.FinishedAt = e.now().UTC()

	logger.Info(ctx, "bulk operation executed",
		"number", number,
		"action", req.Action,
		"mode", target.Mode,
		"scope", entry.ScopeFingerprint,
		"excluded", len(target.ExcludedIDs),
		"matched", res.Matched,
		"affected", res.Affected,
	)

	if e.Notifier != nil {
		e.Notifier.BulkCompleted(ctx, sellerID, userID, res)
	}
	return res, nil
}

// Get returns a journaled operation of the authenticated seller.
func (e *Executor) Get(ctx context.Context, number string) (*Entry, error) {
	sellerID, err := listing.SellerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return e.Journal.Get(ctx, sellerID, number)
}

func newEntry(number, sellerID, userID string, req Request, t listing.Target, at time.Time) *Entry {
	entry := &Entry{
		ID:          id.New(),
		Number:      number,
		SellerID:    sellerID,
		UserID:      userID,
		Action:      req.Action,
		Mode:        t.Mode,
		IDs:         t.IDs,
		ExcludedIDs: t.ExcludedIDs,
		Params:      map[string]any{},
		CreatedAt:   at,
	}
	if t.Mode == selection.ModeAllFiltered && t.Filter != nil {
		scope := *t.Filter
		entry.Scope = &scope
		entry.ScopeFingerprint = scope.Fingerprint()
	}
	if req.Action == ActionSetStatus {
		entry.Params["status"] = string(req.Status)
	}
	return entry
}

func (e *Executor) setStatus(ctx context.Context, sellerID string, t listing.Target, status listing.Status, entry *Entry) error {
	return e.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		matched, err := e.Repo.CountTarget(ctx, sellerID, t)
		if err != nil {
			return fmt.Errorf("count target: %w", err)
		}
		affected, err := e.Repo.SetStatus(ctx, sellerID, t, status)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		entry.Matched, entry.Affected = matched, affected
		return e.Journal.Record(ctx, entry)
	})
}

func (e *Executor) reprocess(ctx context.Context, sellerID string, t listing.Target, entry *Entry) error {
	return e.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		matched, err := e.Repo.CountTarget(ctx, sellerID, t)
		if err != nil {
			return fmt.Errorf("count target: %w", err)
		}
		ids, err := e.Repo.MarkForReprocess(ctx, sellerID, t)
		if err != nil {
			return fmt.Errorf("mark for reprocess: %w", err)
		}
		entry.Matched, entry.Affected = matched, int64(len(ids))

		for start := 0; start < len(ids); start += reprocessChunk {
			end := min(start+reprocessChunk, len(ids))
			err := e.Events.Publish(ctx, domain.Event{
				AggregateType: AggregateType,
				AggregateID:   entry.ID,
				EventType:     EventReprocessRequested,
				Payload: ReprocessRequested{
					SellerID:   sellerID,
					Operation:  entry.Number,
					ListingIDs: ids[start:end],
				},
			})
			if err != nil {
				return fmt.Errorf("publish reprocess event: %w", err)
			}
		}
		return e.Journal.Record(ctx, entry)
	})
}

func (e *Executor) export(ctx context.Context, sellerID string, t listing.Target, entry *Entry) error {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf)
	if err != nil {
		return err
	}
	err = e.Repo.Stream(ctx, sellerID, t, func(l *listing.Listing) error {
		return w.Write(l)
	})
	if err != nil {
		return fmt.Errorf("stream listings: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	key := fmt.Sprintf("exports/%s/%s.csv", sellerID, entry.Number)
	up, err := e.Exporter.Upload(ctx, key, "text/csv", buf.Bytes())
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("upload export: %w", err))
	}

	entry.Matched = w.Rows()
	entry.Affected = w.Rows()
	entry.ExportKey = up.Key
	entry.Params["downloadUrl"] = up.URL
	entry.Params["size"] = up.Size

	return e.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return e.Journal.Record(ctx, entry)
	})
}
