package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/infrastructure/http/v1/dto"
)

// ListingService is the listing use-case surface used by the handler.
type ListingService interface {
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*listing.Listing], error)
	GetByID(ctx context.Context, listingID id.ID) (*listing.Listing, error)
	Create(ctx context.Context, l *listing.Listing) error
}

// ListingHandler handles listing requests.
type ListingHandler struct {
	*BaseHandler
	service ListingService
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(base *BaseHandler, service ListingService) *ListingHandler {
	return &ListingHandler{BaseHandler: base, service: service}
}

// List handles GET /listings.
func (h *ListingHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	f, err := req.ToListFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListingResult(res))
}

// Get handles GET /listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	listingID, ok := h.ParseID(c)
	if !ok {
		return
	}
	l, err := h.service.GetByID(c.Request.Context(), listingID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListing(l))
}

// Create handles POST /listings.
func (h *ListingHandler) Create(c *gin.Context) {
	var req dto.CreateListingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), l); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromListing(l))
}
