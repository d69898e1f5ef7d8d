package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"sellerdesk/internal/core/entity"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/listing"
)

// CreateListingRequest is the body of POST /listings.
type CreateListingRequest struct {
	Marketplace string            `json:"marketplace" binding:"required"`
	SKU         string            `json:"sku" binding:"required"`
	Title       string            `json:"title" binding:"required"`
	Status      listing.Status    `json:"status"`
	Price       decimal.Decimal   `json:"price"`
	Currency    string            `json:"currency"`
	Stock       int64             `json:"stock"`
	Attributes  entity.Attributes `json:"attributes"`
}

// ToEntity builds a listing. The seller is taken from the request context
// by the service.
func (r CreateListingRequest) ToEntity() *listing.Listing {
	l := listing.NewListing("", r.Marketplace, r.SKU, r.Title)
	if r.Status != "" {
		l.Status = r.Status
	}
	l.Price = r.Price
	if r.Currency != "" {
		l.Currency = r.Currency
	}
	l.Stock = r.Stock
	if r.Attributes != nil {
		l.Attributes = r.Attributes
	}
	return l
}

// ListingResponse is a listing as returned by the API.
type ListingResponse struct {
	BaseResponse
	Marketplace string             `json:"marketplace"`
	SKU         string             `json:"sku"`
	Title       string             `json:"title"`
	Status      listing.Status     `json:"status"`
	Price       decimal.Decimal    `json:"price"`
	Currency    string             `json:"currency"`
	Stock       int64              `json:"stock"`
	SyncStatus  listing.SyncStatus `json:"syncStatus"`
	SyncError   *string            `json:"syncError,omitempty"`
	SyncedAt    *time.Time         `json:"syncedAt,omitempty"`
}

// FromListing creates ListingResponse from a listing.
func FromListing(l *listing.Listing) ListingResponse {
	return ListingResponse{
		BaseResponse: FromBase(l.BaseEntity),
		Marketplace:  l.Marketplace,
		SKU:          l.SKU,
		Title:        l.Title,
		Status:       l.Status,
		Price:        l.Price,
		Currency:     l.Currency,
		Stock:        l.Stock,
		SyncStatus:   l.SyncStatus,
		SyncError:    l.SyncError,
		SyncedAt:     l.SyncedAt,
	}
}

// FromListingResult converts a page of listings.
func FromListingResult(res domain.ListResult[*listing.Listing]) ListResponse[ListingResponse] {
	items := make([]ListingResponse, 0, len(res.Items))
	for _, l := range res.Items {
		items = append(items, FromListing(l))
	}
	return ListResponse[ListingResponse]{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}
