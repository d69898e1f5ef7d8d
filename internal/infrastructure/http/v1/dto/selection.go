package dto

import (
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
)

// SelectAllRequest is the body of POST /selections/:view/select-all.
type SelectAllRequest struct {
	Filter filter.Scope `json:"filter"`
}

// ToggleRequest is the body of POST /selections/:view/toggle.
type ToggleRequest struct {
	ID       id.ID `json:"id" binding:"required"`
	Selected bool  `json:"selected"`
}

// CommandsRequest carries reducer commands applied in order.
type CommandsRequest struct {
	Commands []listing.SelectionCommand `json:"commands" binding:"required,min=1,max=1000"`
}

// SelectionResponse is a selection snapshot.
//
// Total is the number of listings matching the captured filter, present only
// for an all-filtered selection. Stale is set when the captured filter differs
// from the filter the caller is looking at.
type SelectionResponse struct {
	View          string            `json:"view"`
	Version       uint64            `json:"version"`
	State         listing.Selection `json:"state"`
	Mode          selection.Mode    `json:"mode"`
	SelectedCount int64             `json:"selectedCount"`
	Total         *int64            `json:"total,omitempty"`
	Stale         bool              `json:"stale"`
}

// CountResponse is the answer of GET /selections/:view/count.
// Known is false when an all-filtered selection was counted without a total.
type CountResponse struct {
	Mode          selection.Mode `json:"mode"`
	SelectedCount int64          `json:"selectedCount"`
	Known         bool           `json:"known"`
}

// NewSelectionResponse builds the snapshot view. total is only used by
// all-filtered selections.
func NewSelectionResponse(view string, version uint64, s listing.Selection, total *int64) SelectionResponse {
	resp := SelectionResponse{
		View:          view,
		Version:       version,
		State:         s,
		Mode:          s.Mode,
		SelectedCount: selection.SelectedCount(s, total),
	}
	if s.Mode == selection.ModeAllFiltered {
		resp.Total = total
	}
	return resp
}

// BulkRequest is the body of POST /selections/:view/bulk/:action.
type BulkRequest struct {
	Status listing.Status `json:"status"`

	// KeepSelection leaves the selection in place after success.
	KeepSelection bool `json:"keepSelection"`
}
