// Package listing_repo is the PostgreSQL listing repository.
package listing_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/infrastructure/storage/postgres"
)

const tableName = "listings"

// ListingRepo implements listing.Repository.
type ListingRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

var _ listing.Repository = (*ListingRepo)(nil)

// NewListingRepo creates the repository.
func NewListingRepo(txManager *postgres.TxManager) *ListingRepo {
	return &ListingRepo{
		txManager:  txManager,
		selectCols: postgres.Columns[listing.Listing](),
	}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r *ListingRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ListingRepo) baseSelect(sellerID string) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(tableName).
		Where(squirrel.Eq{"seller_id": sellerID})
}

// List implements listing.Repository.
func (r *ListingRepo) List(ctx context.Context, sellerID string, f domain.ListFilter) (domain.ListResult[*listing.Listing], error) {
	result := domain.ListResult[*listing.Listing]{
		Items:  []*listing.Listing{},
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	cond, err := scopeCondition(f.Scope)
	if err != nil {
		return result, err
	}
	q := r.baseSelect(sellerID).Where(cond)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count listings: %w", err)
	}

	orderBy, err := parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id ASC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list listings: %w", err)
	}
	return result, nil
}

// GetByID implements listing.Repository.
func (r *ListingRepo) GetByID(ctx context.Context, sellerID string, listingID id.ID) (*listing.Listing, error) {
	sql, args, err := r.baseSelect(sellerID).Where(squirrel.Eq{"id": listingID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l listing.Listing
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("listing", listingID.String())
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

// Create implements listing.Repository.
func (r *ListingRepo) Create(ctx context.Context, l *listing.Listing) error {
	cols, values := postgres.ColumnValues(l)
	sql, args, err := r.Builder().Insert(tableName).Columns(cols...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("listing", "sku", l.SKU).WithCause(err)
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Count implements listing.Repository.
func (r *ListingRepo) Count(ctx context.Context, sellerID string, scope filter.Scope) (int64, error) {
	cond, err := scopeCondition(scope)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, squirrel.And{squirrel.Eq{"seller_id": sellerID}, cond})
}

// ValidateScope implements listing.Repository.
func (r *ListingRepo) ValidateScope(scope filter.Scope) error {
	_, err := scopeCondition(scope)
	return err
}

// CountTarget implements listing.Repository.
func (r *ListingRepo) CountTarget(ctx context.Context, sellerID string, t listing.Target) (int64, error) {
	cond, err := targetCondition(sellerID, t)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, cond)
}

func (r *ListingRepo) count(ctx context.Context, cond squirrel.Sqlizer) (int64, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").From(tableName).Where(cond).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func (r *ListingRepo) setStatusQuery(sellerID string, t listing.Target, status listing.Status, now time.Time) (squirrel.UpdateBuilder, error) {
	cond, err := targetCondition(sellerID, t)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	return r.Builder().
		Update(tableName).
		Set("status", status).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(cond).
		Where(squirrel.Eq{"status": listing.AllowedFrom(status)}), nil
}

// SetStatus implements listing.Repository.
func (r *ListingRepo) SetStatus(ctx context.Context, sellerID string, t listing.Target, status listing.Status) (int64, error) {
	q, err := r.setStatusQuery(sellerID, t, status, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("set listing status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ListingRepo) reprocessQuery(sellerID string, t listing.Target, now time.Time) (squirrel.UpdateBuilder, error) {
	cond, err := targetCondition(sellerID, t)
	if err != nil {
		return squirrel.UpdateBuilder{}, err
	}
	return r.Builder().
		Update(tableName).
		Set("sync_status", listing.SyncPending).
		Set("sync_error", nil).
		Set("updated_at", now).
		Where(cond).
		Where(squirrel.NotEq{"status": listing.StatusArchived}).
		Suffix("RETURNING id"), nil
}

// MarkForReprocess implements listing.Repository.
func (r *ListingRepo) MarkForReprocess(ctx context.Context, sellerID string, t listing.Target) ([]id.ID, error) {
	q, err := r.reprocessQuery(sellerID, t, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("mark for reprocess: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[id.ID])
	if err != nil {
		return nil, fmt.Errorf("collect reprocessed ids: %w", err)
	}
	return ids, nil
}

// Stream implements listing.Repository.
func (r *ListingRepo) Stream(ctx context.Context, sellerID string, t listing.Target, fn func(*listing.Listing) error) error {
	cond, err := targetCondition(sellerID, t)
	if err != nil {
		return err
	}
	sql, args, err := r.Builder().
		Select(r.selectCols...).
		From(tableName).
		Where(cond).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("stream listings: %w", err)
	}
	defer rows.Close()

	rs := pgxscan.NewRowScanner(rows)
	for rows.Next() {
		var l listing.Listing
		if err := rs.Scan(&l); err != nil {
			return fmt.Errorf("scan listing: %w", err)
		}
		if err := fn(&l); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetMany implements listing.Repository.
func (r *ListingRepo) GetMany(ctx context.Context, sellerID string, ids []id.ID) ([]*listing.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.baseSelect(sellerID).Where(squirrel.Eq{"id": ids}).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []*listing.Listing
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get listings: %w", err)
	}
	return items, nil
}

// SetSyncResult implements listing.Repository.
func (r *ListingRepo) SetSyncResult(ctx context.Context, listingID id.ID, status listing.SyncStatus, syncErr *string) error {
	sql, args, err := r.Builder().
		Update(tableName).
		Set("sync_status", status).
		Set("sync_error", syncErr).
		Set("synced_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": listingID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set sync result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("listing", listingID.String())
	}
	return nil
}

var sortable = map[string]struct{}{
	"sku": {}, "title": {}, "status": {}, "price": {}, "stock": {},
	"marketplace": {}, "sync_status": {}, "created_at": {}, "updated_at": {},
}

// parseOrderBy accepts "field" or "-field".
func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "updated_at DESC", nil
	}
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		orderBy = orderBy[1:]
	}
	if _, ok := sortable[orderBy]; !ok {
		return "", apperror.NewValidation("invalid sort field").WithDetail("orderBy", orderBy)
	}
	return orderBy + " " + dir, nil
}
