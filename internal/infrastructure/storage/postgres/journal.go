package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/filter"
)

// Compression names how a journal target is stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// journalTarget is the part of an entry that can grow with the selection.
type journalTarget struct {
	IDs         []id.ID        `json:"ids,omitempty"`
	ExcludedIDs []id.ID        `json:"excludedIds,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// BulkJournal stores executed bulk operations in sys_bulk_operations.
// Targets larger than the threshold are zstd-compressed.
type BulkJournal struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ bulk.Journal = (*BulkJournal)(nil)

// NewBulkJournal creates a journal. threshold is in bytes; zero uses 8 KiB.
func NewBulkJournal(txManager *TxManager, threshold int) (*BulkJournal, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = 8 * 1024
	}
	return &BulkJournal{txManager: txManager, encoder: enc, decoder: dec, threshold: threshold}, nil
}

// encodeTarget returns the JSON or compressed form of t.
func (j *BulkJournal) encodeTarget(t journalTarget) (plain, packed []byte, algo Compression, err error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, nil, "", fmt.Errorf("marshal target: %w", err)
	}
	if len(data) <= j.threshold {
		return data, nil, CompressionNone, nil
	}
	return nil, j.encoder.EncodeAll(data, nil), CompressionZstd, nil
}

func (j *BulkJournal) decodeTarget(plain, packed []byte, algo Compression) (journalTarget, error) {
	var t journalTarget
	data := plain
	if algo == CompressionZstd {
		var err error
		if data, err = j.decoder.DecodeAll(packed, nil); err != nil {
			return t, fmt.Errorf("decompress target: %w", err)
		}
	}
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("unmarshal target: %w", err)
	}
	return t, nil
}

// Record implements bulk.Journal.
func (j *BulkJournal) Record(ctx context.Context, e *bulk.Entry) error {
	plain, packed, algo, err := j.encodeTarget(journalTarget{IDs: e.IDs, ExcludedIDs: e.ExcludedIDs, Params: e.Params})
	if err != nil {
		return err
	}

	var scope []byte
	if e.Scope != nil {
		if scope, err = json.Marshal(e.Scope); err != nil {
			return fmt.Errorf("marshal scope: %w", err)
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err = j.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_bulk_operations (
			id, number, seller_id, user_id, action, mode, scope, scope_fingerprint,
			target, target_compressed, compression_algo,
			matched, affected, export_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Number, e.SellerID, e.UserID, e.Action, e.Mode, scope, e.ScopeFingerprint,
		plain, packed, algo,
		e.Matched, e.Affected, e.ExportKey, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bulk operation %s: %w", e.Number, err)
	}
	return nil
}

// Get implements bulk.Journal.
func (j *BulkJournal) Get(ctx context.Context, sellerID, number string) (*bulk.Entry, error) {
	var (
		e      bulk.Entry
		scope  []byte
		plain  []byte
		packed []byte
		algo   Compression
	)
	err := j.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT id, number, seller_id, user_id, action, mode, scope, scope_fingerprint,
		       target, target_compressed, compression_algo,
		       matched, affected, export_key, created_at
		FROM sys_bulk_operations
		WHERE seller_id = $1 AND number = $2`, sellerID, number,
	).Scan(
		&e.ID, &e.Number, &e.SellerID, &e.UserID, &e.Action, &e.Mode, &scope, &e.ScopeFingerprint,
		&plain, &packed, &algo,
		&e.Matched, &e.Affected, &e.ExportKey, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("bulk operation", number)
	}
	if err != nil {
		return nil, fmt.Errorf("get bulk operation %s: %w", number, err)
	}

	if len(scope) > 0 {
		var s filter.Scope
		if err := json.Unmarshal(scope, &s); err != nil {
			return nil, fmt.Errorf("unmarshal scope: %w", err)
		}
		e.Scope = &s
	}
	t, err := j.decodeTarget(plain, packed, algo)
	if err != nil {
		return nil, err
	}
	e.IDs, e.ExcludedIDs, e.Params = t.IDs, t.ExcludedIDs, t.Params
	return &e, nil
}

// Cleanup deletes entries created before cutoff.
func (j *BulkJournal) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := j.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_bulk_operations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup bulk operations: %w", err)
	}
	return tag.RowsAffected(), nil
}
