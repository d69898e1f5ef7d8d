package listing

import (
	"context"
	"fmt"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/core/tx"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/pkg/logger"
)

// Service provides business logic for listings of the current seller.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a listing service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// SellerFromContext returns the seller of the authenticated user.
func SellerFromContext(ctx context.Context) (string, error) {
	sellerID := appctx.GetSellerID(ctx)
	if sellerID == "" {
		return "", apperror.NewUnauthorized("no seller in request context")
	}
	return sellerID, nil
}

// List returns one page of listings matching f. TotalCount is the number of
// listings matching the scope, which is what selection counts are based on.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Listing], error) {
	sellerID, err := SellerFromContext(ctx)
	if err != nil {
		return domain.ListResult[*Listing]{}, err
	}
	f.Scope = f.Scope.Normalize()
	if err := f.Scope.Validate(); err != nil {
		return domain.ListResult[*Listing]{}, err
	}

	var res domain.ListResult[*Listing]
	err = s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.repo.List(ctx, sellerID, f.Clamp())
		return err
	})
	return res, err
}

// GetByID returns a single listing.
func (s *Service) GetByID(ctx context.Context, listingID id.ID) (*Listing, error) {
	sellerID, err := SellerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.GetByID(ctx, sellerID, listingID)
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.NewInternal(err).WithDetail("id", listingID)
	}
	return l, nil
}

// Create stores a new listing owned by the current seller.
func (s *Service) Create(ctx context.Context, l *Listing) error {
	sellerID, err := SellerFromContext(ctx)
	if err != nil {
		return err
	}
	l.SellerID = sellerID
	if l.Status == "" {
		l.Status = StatusDraft
	}
	if l.SyncStatus == "" {
		l.SyncStatus = SyncPending
	}

	if err := l.Validate(ctx); err != nil {
		if apperror.IsAppError(err) {
			return err
		}
		return apperror.NewValidation(err.Error())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, l); err != nil {
			return fmt.Errorf("create listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "listing created", "listing_id", l.ID, "sku", l.SKU, "marketplace", l.Marketplace)
	return nil
}

// ValidateScope checks scope before it is captured by a selection, so that a
// later count or bulk action cannot fail on it.
func (s *Service) ValidateScope(scope filter.Scope) error {
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.repo.ValidateScope(scope)
}

// Count returns how many listings match scope.
func (s *Service) Count(ctx context.Context, scope filter.Scope) (int64, error) {
	sellerID, err := SellerFromContext(ctx)
	if err != nil {
		return 0, err
	}
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, sellerID, scope)
}

// Reprocess re-validates pending listings and records the outcome.
// Listings that pass are marked synced; the rest are marked failed with the
// validation message.
func (s *Service) Reprocess(ctx context.Context, sellerID string, ids []id.ID) (synced, failed int, err error) {
	items, err := s.repo.GetMany(ctx, sellerID, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("load listings: %w", err)
	}

	for _, l := range items {
		if l.SyncStatus != SyncPending {
			continue
		}
		status, msg := SyncSynced, (*string)(nil)
		if vErr := l.Validate(ctx); vErr != nil {
			text := vErr.Error()
			if appErr, ok := apperror.AsAppError(vErr); ok {
				text = appErr.Message
			}
			status, msg = SyncFailed, &text
		}
		if err := s.repo.SetSyncResult(ctx, l.ID, status, msg); err != nil {
			return synced, failed, fmt.Errorf("set sync result %s: %w", l.ID, err)
		}
		if status == SyncSynced {
			synced++
		} else {
			failed++
		}
	}
	return synced, failed, nil
}
