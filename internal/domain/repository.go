// Package domain holds types shared by domain packages.
package domain

import (
	"sellerdesk/internal/domain/filter"
)

// --- Filter & Pagination ---

// ListFilter contains filtering and paging options of a list call.
type ListFilter struct {
	// Scope is the search text plus filter rows of the view
	Scope filter.Scope

	// OrderBy specifies sorting (e.g., "title", "-updated_at")
	OrderBy string

	Limit  int
	Offset int
}

// MaxListLimit caps a single page.
const MaxListLimit = 500

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-updated_at",
	}
}

// Clamp keeps paging values in range.
func (f ListFilter) Clamp() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListFilter().Limit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListResult contains one page and the number of rows matching the filter.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
