// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"encoding/json"
	"time"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/entity"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/filter"
)

// --- List Request ---

// ListRequest holds the query parameters of a list call.
// Filter is a JSON array of filter rows.
type ListRequest struct {
	Search  string `form:"search"`
	Filter  string `form:"filter"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// Scope parses the search text and the filter rows.
func (r ListRequest) Scope() (filter.Scope, error) {
	scope := filter.Scope{Search: r.Search}
	if r.Filter != "" {
		if err := json.Unmarshal([]byte(r.Filter), &scope.Items); err != nil {
			return filter.Scope{}, apperror.NewValidation("filter must be a JSON array of filter rows").
				WithDetail("field", "filter").
				WithDetail("error", err.Error())
		}
	}
	return scope.Normalize(), nil
}

// ToListFilter converts the request to a domain filter.
func (r ListRequest) ToListFilter() (domain.ListFilter, error) {
	scope, err := r.Scope()
	if err != nil {
		return domain.ListFilter{}, err
	}
	f := domain.DefaultListFilter()
	f.Scope = scope
	if r.OrderBy != "" {
		f.OrderBy = r.OrderBy
	}
	if r.Limit > 0 {
		f.Limit = r.Limit
	}
	f.Offset = r.Offset
	return f, nil
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Base DTOs ---

// BaseResponse contains common response fields.
type BaseResponse struct {
	ID         string            `json:"id"`
	Version    int               `json:"version"`
	Attributes entity.Attributes `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// FromBase creates BaseResponse from entity.BaseEntity.
func FromBase(b entity.BaseEntity) BaseResponse {
	return BaseResponse{
		ID:         b.ID.String(),
		Version:    b.Version,
		Attributes: b.Attributes,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}
