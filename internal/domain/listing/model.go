// Package listing provides the seller's marketplace listings.
package listing

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/entity"
)

// Status is the publication state of a listing.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
	StatusError    Status = "error" // rejected by the marketplace
)

// Statuses lists every known status.
var Statuses = []Status{StatusDraft, StatusActive, StatusPaused, StatusArchived, StatusError}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses, s)
}

var transitions = map[Status][]Status{
	StatusDraft:    {StatusActive, StatusArchived},
	StatusActive:   {StatusPaused, StatusArchived},
	StatusPaused:   {StatusActive, StatusArchived},
	StatusError:    {StatusDraft, StatusActive, StatusArchived},
	StatusArchived: {StatusDraft},
}

// CanTransition reports whether a listing may move from s to to.
func (s Status) CanTransition(to Status) bool {
	return slices.Contains(transitions[s], to)
}

// AllowedFrom returns the statuses that may move to to.
// Bulk status changes only touch rows in one of these.
func AllowedFrom(to Status) []Status {
	var out []Status
	for _, from := range Statuses {
		if from.CanTransition(to) {
			out = append(out, from)
		}
	}
	return out
}

// SyncStatus tracks delivery of the listing to the marketplace.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncFailed  SyncStatus = "failed"
)

// Listing is one product card on one marketplace.
type Listing struct {
	entity.BaseEntity

	SellerID    string          `db:"seller_id" json:"sellerId"`
	Marketplace string          `db:"marketplace" json:"marketplace"`
	SKU         string          `db:"sku" json:"sku"`
	Title       string          `db:"title" json:"title"`
	Status      Status          `db:"status" json:"status"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	Stock       int64           `db:"stock" json:"stock"`

	SyncStatus SyncStatus `db:"sync_status" json:"syncStatus"`
	SyncError  *string    `db:"sync_error" json:"syncError,omitempty"`
	SyncedAt   *time.Time `db:"synced_at" json:"syncedAt,omitempty"`
}

// NewListing creates a draft listing.
func NewListing(sellerID, marketplace, sku, title string) *Listing {
	return &Listing{
		BaseEntity:  entity.NewBaseEntity(),
		SellerID:    sellerID,
		Marketplace: marketplace,
		SKU:         sku,
		Title:       title,
		Status:      StatusDraft,
		Price:       decimal.Zero,
		Currency:    "RUB",
		SyncStatus:  SyncPending,
	}
}

// Validate implements entity.Validatable.
func (l *Listing) Validate(ctx context.Context) error {
	switch {
	case strings.TrimSpace(l.SellerID) == "":
		return apperror.NewValidation("seller is required").WithDetail("field", "sellerId")
	case strings.TrimSpace(l.Marketplace) == "":
		return apperror.NewValidation("marketplace is required").WithDetail("field", "marketplace")
	case strings.TrimSpace(l.SKU) == "":
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	case strings.TrimSpace(l.Title) == "":
		return apperror.NewValidation("title is required").WithDetail("field", "title")
	}

	if !l.Status.IsValid() {
		return apperror.NewValidation("invalid listing status").
			WithDetail("field", "status").
			WithDetail("value", string(l.Status))
	}
	if l.Price.IsNegative() {
		return apperror.NewValidation("price must not be negative").
			WithDetail("field", "price").
			WithDetail("value", l.Price.String())
	}
	if l.Stock < 0 {
		return apperror.NewValidation("stock must not be negative").
			WithDetail("field", "stock").
			WithDetail("value", l.Stock)
	}
	if len(l.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").
			WithDetail("field", "currency").
			WithDetail("value", l.Currency)
	}
	// active listings are visible to buyers
	if l.Status == StatusActive && l.Price.IsZero() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "active listing must have a price").
			WithDetail("field", "price")
	}
	return nil
}
