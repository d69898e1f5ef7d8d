package listing

import (
	"context"

	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/selection"
)

// Selection types instantiated for listings.
type (
	Selection         = selection.State[id.ID, filter.Scope]
	SelectionCommand  = selection.Command[id.ID, filter.Scope]
	SelectionStore    = selection.Store[id.ID, filter.Scope]
	SelectionRegistry = selection.Registry[id.ID, filter.Scope]
	Target            = selection.Target[id.ID, filter.Scope]
)

// Repository persists listings. Every call is scoped to one seller.
type Repository interface {
	List(ctx context.Context, sellerID string, f domain.ListFilter) (domain.ListResult[*Listing], error)
	GetByID(ctx context.Context, sellerID string, listingID id.ID) (*Listing, error)
	Create(ctx context.Context, l *Listing) error

	// ValidateScope rejects a scope referencing fields the storage cannot
	// filter on.
	ValidateScope(scope filter.Scope) error

	// Count returns the number of listings matching scope.
	Count(ctx context.Context, sellerID string, scope filter.Scope) (int64, error)

	// CountTarget returns the number of listings a bulk target resolves to.
	CountTarget(ctx context.Context, sellerID string, t Target) (int64, error)

	// SetStatus moves every targeted listing whose current status allows it
	// to status and returns the number of rows changed.
	SetStatus(ctx context.Context, sellerID string, t Target, status Status) (int64, error)

	// MarkForReprocess flags targeted listings as pending sync and returns
	// their ids. Archived listings are left alone.
	MarkForReprocess(ctx context.Context, sellerID string, t Target) ([]id.ID, error)

	// Stream calls fn for every targeted listing in id order.
	Stream(ctx context.Context, sellerID string, t Target, fn func(*Listing) error) error

	// GetMany loads listings by id, skipping unknown ones.
	GetMany(ctx context.Context, sellerID string, ids []id.ID) ([]*Listing, error)

	// SetSyncResult records the outcome of a sync attempt.
	SetSyncResult(ctx context.Context, listingID id.ID, status SyncStatus, syncErr *string) error
}
