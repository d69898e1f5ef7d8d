// Package bulk runs actions over a listing selection.
//
// The executor never expands an all-filtered selection on the client side:
// it hands the captured scope and the exclusion list to the repository, which
// resolves identifiers in SQL.
package bulk

import (
	"context"
	"time"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/pkg/numerator"
)

// Action names a bulk operation.
type Action string

const (
	ActionSetStatus Action = "set_status"
	ActionReprocess Action = "reprocess"
	ActionExport    Action = "export"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionSetStatus, ActionReprocess, ActionExport:
		return true
	}
	return false
}

// Request asks for one action over a selection snapshot.
type Request struct {
	Action    Action
	Selection listing.Selection

	// Status is the target status of ActionSetStatus.
	Status listing.Status
}

// Validate checks the action parameters. The selection itself is checked
// when the target is resolved.
func (r Request) Validate() error {
	if !r.Action.IsValid() {
		return apperror.NewValidation("unknown bulk action").WithDetail("action", r.Action)
	}
	if r.Action == ActionSetStatus && !r.Status.IsValid() {
		return apperror.NewValidation("invalid target status").
			WithDetail("field", "status").
			WithDetail("value", string(r.Status))
	}
	return nil
}

// Result describes a finished bulk operation.
type Result struct {
	ID          id.ID          `json:"id"`
	Number      string         `json:"number"`
	Action      Action         `json:"action"`
	Mode        selection.Mode `json:"mode"`
	Matched     int64          `json:"matched"`
	Affected    int64          `json:"affected"`
	Skipped     int64          `json:"skipped"`
	ExportKey   string         `json:"exportKey,omitempty"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
}

// Entry is the journal record of an operation.
type Entry struct {
	ID               id.ID          `json:"id"`
	Number           string         `json:"number"`
	SellerID         string         `json:"sellerId"`
	UserID           string         `json:"userId"`
	Action           Action         `json:"action"`
	Mode             selection.Mode `json:"mode"`
	Scope            *filter.Scope  `json:"scope,omitempty"`
	ScopeFingerprint string         `json:"scopeFingerprint,omitempty"`
	IDs              []id.ID        `json:"ids,omitempty"`
	ExcludedIDs      []id.ID        `json:"excludedIds,omitempty"`
	Params           map[string]any `json:"params,omitempty"`
	Matched          int64          `json:"matched"`
	Affected         int64          `json:"affected"`
	ExportKey        string         `json:"exportKey,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// --- Dependencies ---

// Journal stores executed operations.
type Journal interface {
	Record(ctx context.Context, e *Entry) error
	Get(ctx context.Context, sellerID, number string) (*Entry, error)
}

// Upload is a stored export file.
type Upload struct {
	Key       string
	URL       string
	Size      int64
	ExpiresAt time.Time
}

// Exporter stores export files and returns a download link.
type Exporter interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (*Upload, error)
}

// Limiter throttles operations per key.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// Numerator issues operation numbers.
type Numerator interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Notifier is told about finished operations.
type Notifier interface {
	BulkCompleted(ctx context.Context, sellerID, userID string, res *Result)
}

// --- Outbox events ---

const (
	AggregateType           = "listing_bulk"
	EventReprocessRequested = "listing.reprocess_requested"
)

// ReprocessRequested is the outbox payload of ActionReprocess.
type ReprocessRequested struct {
	SellerID   string  `json:"sellerId"`
	Operation  string  `json:"operation"`
	ListingIDs []id.ID `json:"listingIds"`
}
