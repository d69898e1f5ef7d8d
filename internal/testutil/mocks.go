// Package testutil provides in-memory fakes for domain dependencies.
package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/pkg/numerator"
)

// MockListingRepo is an in-memory listing.Repository.
// Scopes are evaluated in Go with the same operators the SQL builder supports.
type MockListingRepo struct {
	mu       sync.Mutex
	Listings map[id.ID]*listing.Listing
	Err      error
}

// NewMockListingRepo creates a repo holding items.
func NewMockListingRepo(items ...*listing.Listing) *MockListingRepo {
	m := &MockListingRepo{Listings: make(map[id.ID]*listing.Listing)}
	for _, l := range items {
		m.Listings[l.ID] = l
	}
	return m
}

func (m *MockListingRepo) sorted(sellerID string) []*listing.Listing {
	var out []*listing.Listing
	for _, l := range m.Listings {
		if l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b *listing.Listing) int {
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func (m *MockListingRepo) resolve(sellerID string, t listing.Target) []*listing.Listing {
	var out []*listing.Listing
	for _, l := range m.sorted(sellerID) {
		switch t.Mode {
		case selection.ModeManual:
			if slices.Contains(t.IDs, l.ID) {
				out = append(out, l)
			}
		case selection.ModeAllFiltered:
			if MatchScope(l, *t.Filter) && !slices.Contains(t.ExcludedIDs, l.ID) {
				out = append(out, l)
			}
		}
	}
	return out
}

func (m *MockListingRepo) List(_ context.Context, sellerID string, f domain.ListFilter) (domain.ListResult[*listing.Listing], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.ListResult[*listing.Listing]{}, m.Err
	}

	var matched []*listing.Listing
	for _, l := range m.sorted(sellerID) {
		if MatchScope(l, f.Scope) {
			matched = append(matched, l)
		}
	}
	res := domain.ListResult[*listing.Listing]{
		Items:      []*listing.Listing{},
		TotalCount: int64(len(matched)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if f.Offset < len(matched) {
		end := len(matched)
		if f.Limit > 0 {
			end = min(f.Offset+f.Limit, len(matched))
		}
		res.Items = matched[f.Offset:end]
	}
	return res, nil
}

func (m *MockListingRepo) GetByID(_ context.Context, sellerID string, listingID id.ID) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.Listings[listingID]; ok && l.SellerID == sellerID {
		return l, nil
	}
	return nil, apperror.NewNotFound("listing", listingID.String())
}

func (m *MockListingRepo) Create(_ context.Context, l *listing.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Listings[l.ID] = l
	return nil
}

// ValidateScope rejects fields the mock cannot evaluate, the way the
// postgres repository rejects fields outside its whitelist.
func (m *MockListingRepo) ValidateScope(scope filter.Scope) error {
	for _, item := range scope.Items {
		if _, ok := fieldValue(&listing.Listing{}, item.Field); !ok {
			return apperror.NewValidation("unknown filter field").WithDetail("field", item.Field)
		}
	}
	return nil
}

func (m *MockListingRepo) Count(_ context.Context, sellerID string, scope filter.Scope) (int64, error) {
	if err := m.ValidateScope(scope); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.sorted(sellerID) {
		if MatchScope(l, scope) {
			n++
		}
	}
	return n, m.Err
}

func (m *MockListingRepo) CountTarget(_ context.Context, sellerID string, t listing.Target) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.resolve(sellerID, t))), m.Err
}

func (m *MockListingRepo) SetStatus(_ context.Context, sellerID string, t listing.Target, status listing.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var n int64
	for _, l := range m.resolve(sellerID, t) {
		if l.Status.CanTransition(status) {
			l.Status = status
			l.Touch()
			n++
		}
	}
	return n, nil
}

func (m *MockListingRepo) MarkForReprocess(_ context.Context, sellerID string, t listing.Target) ([]id.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var ids []id.ID
	for _, l := range m.resolve(sellerID, t) {
		if l.Status == listing.StatusArchived {
			continue
		}
		l.SyncStatus = listing.SyncPending
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (m *MockListingRepo) Stream(_ context.Context, sellerID string, t listing.Target, fn func(*listing.Listing) error) error {
	m.mu.Lock()
	items := m.resolve(sellerID, t)
	err := m.Err
	m.mu.Unlock()
	if err != nil {
		return err
	}
	for _, l := range items {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockListingRepo) GetMany(_ context.Context, sellerID string, ids []id.ID) ([]*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*listing.Listing
	for _, v := range ids {
		if l, ok := m.Listings[v]; ok && l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	return out, m.Err
}

func (m *MockListingRepo) SetSyncResult(_ context.Context, listingID id.ID, status listing.SyncStatus, syncErr *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.Listings[listingID]
	if !ok {
		return apperror.NewNotFound("listing", listingID.String())
	}
	l.SyncStatus = status
	l.SyncError = syncErr
	now := time.Now().UTC()
	l.SyncedAt = &now
	return nil
}

var _ listing.Repository = (*MockListingRepo)(nil)

// --- Scope evaluation ---

func fieldValue(l *listing.Listing, field string) (any, bool) {
	if key, ok := strings.CutPrefix(field, "attributes."); ok {
		switch {
		case !l.Attributes.Has(key) || l.Attributes[key] == nil:
			return nil, true
		case l.Attributes.GetString(key) != "":
			return l.Attributes.GetString(key), true
		}
		return l.Attributes.GetDecimal(key), true
	}
	switch field {
	case "id":
		return l.ID.String(), true
	case "marketplace":
		return l.Marketplace, true
	case "sku":
		return l.SKU, true
	case "title":
		return l.Title, true
	case "status":
		return string(l.Status), true
	case "currency":
		return l.Currency, true
	case "sync_status":
		return string(l.SyncStatus), true
	case "stock":
		return decimal.NewFromInt(l.Stock), true
	case "price":
		return l.Price, true
	case "sync_error":
		if l.SyncError == nil {
			return nil, true
		}
		return *l.SyncError, true
	}
	return nil, false
}

// MatchScope reports whether l satisfies scope.
func MatchScope(l *listing.Listing, scope filter.Scope) bool {
	if q := strings.ToLower(strings.TrimSpace(scope.Search)); q != "" {
		if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.SKU), q) {
			return false
		}
	}
	for _, item := range scope.Items {
		v, ok := fieldValue(l, item.Field)
		if !ok || !matchItem(v, item) {
			return false
		}
	}
	return true
}

func matchItem(v any, item filter.Item) bool {
	switch item.Operator {
	case filter.IsNull:
		return v == nil
	case filter.IsNotNull:
		return v != nil
	case filter.Equal:
		return equalValues(v, item.Value)
	case filter.NotEqual:
		return !equalValues(v, item.Value)
	case filter.InList, filter.NotInList:
		found := false
		for _, candidate := range toList(item.Value) {
			if equalValues(v, candidate) {
				found = true
				break
			}
		}
		return found == (item.Operator == filter.InList)
	case filter.Contains, filter.NotContains:
		s := strings.ToLower(fmt.Sprint(v))
		has := strings.Contains(s, strings.ToLower(fmt.Sprint(item.Value)))
		return has == (item.Operator == filter.Contains)
	case filter.Less, filter.LessOrEqual, filter.Greater, filter.GreaterOrEqual:
		a, okA := v.(decimal.Decimal)
		b, err := decimal.NewFromString(fmt.Sprint(item.Value))
		if !okA || err != nil {
			return false
		}
		c := a.Cmp(b)
		switch item.Operator {
		case filter.Less:
			return c < 0
		case filter.LessOrEqual:
			return c <= 0
		case filter.Greater:
			return c > 0
		default:
			return c >= 0
		}
	}
	return false
}

func equalValues(v, want any) bool {
	if d, ok := v.(decimal.Decimal); ok {
		w, err := decimal.NewFromString(fmt.Sprint(want))
		return err == nil && d.Equal(w)
	}
	return fmt.Sprint(v) == fmt.Sprint(want)
}

func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// --- Transactions ---

// MockTxManager runs fn inline and counts calls.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *MockTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

// --- Bulk dependencies ---

// MockJournal keeps entries by number.
type MockJournal struct {
	mu      sync.Mutex
	Entries map[string]*bulk.Entry
	Err     error
}

func NewMockJournal() *MockJournal {
	return &MockJournal{Entries: make(map[string]*bulk.Entry)}
}

func (m *MockJournal) Record(_ context.Context, e *bulk.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries[e.Number] = e
	return nil
}

func (m *MockJournal) Get(_ context.Context, sellerID, number string) (*bulk.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Entries[number]; ok && e.SellerID == sellerID {
		return e, nil
	}
	return nil, apperror.NewNotFound("bulk operation", number)
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (m *MockPublisher) Publish(_ context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// MockNumerator issues PREFIX-YYYY-NNNNN numbers from a counter.
type MockNumerator struct {
	mu   sync.Mutex
	next int64
	Err  error
}

func (m *MockNumerator) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.next++
	return fmt.Sprintf("%s-%d-%05d", cfg.Prefix, period.Year(), m.next), nil
}

// MockLimiter allows everything unless Deny is set.
type MockLimiter struct {
	Deny       bool
	RetryAfter time.Duration
	Keys       []string
}

func (m *MockLimiter) Allow(key string) (bool, time.Duration) {
	m.Keys = append(m.Keys, key)
	if m.Deny {
		return false, m.RetryAfter
	}
	return true, 0
}

// MockExporter keeps uploaded files in memory.
type MockExporter struct {
	mu    sync.Mutex
	Files map[string][]byte
	Err   error
}

func NewMockExporter() *MockExporter {
	return &MockExporter{Files: make(map[string][]byte)}
}

func (m *MockExporter) Upload(_ context.Context, key, _ string, body []byte) (*bulk.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Files[key] = append([]byte(nil), body...)
	return &bulk.Upload{
		Key:       key,
		URL:       "https://exports.test/" + key,
		Size:      int64(len(body)),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

// MockNotifier records finished operations.
type MockNotifier struct {
	mu      sync.Mutex
	Results []*bulk.Result
}

func (m *MockNotifier) BulkCompleted(_ context.Context, _, _ string, res *bulk.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results = append(m.Results, res)
}

// --- Fixtures ---

// NewListing builds a valid listing for sellerID.
func NewListing(sellerID, sku string, status listing.Status) *listing.Listing {
	l := listing.NewListing(sellerID, "ozon", sku, "Item "+sku)
	l.Status = status
	l.Price = decimal.RequireFromString("100.00")
	l.Stock = 10
	return l
}
