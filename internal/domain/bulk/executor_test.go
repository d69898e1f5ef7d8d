package bulk_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/internal/testutil"
)

const seller = "seller-1"

type fixture struct {
	repo     *testutil.MockListingRepo
	txm      *testutil.MockTxManager
	journal  *testutil.MockJournal
	events   *testutil.MockPublisher
	limiter  *testutil.MockLimiter
	exporter *testutil.MockExporter
	notifier *testutil.MockNotifier
	executor *bulk.Executor
	listings []*listing.Listing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		txm:      &testutil.MockTxManager{},
		journal:  testutil.NewMockJournal(),
		events:   &testutil.MockPublisher{},
		limiter:  &testutil.MockLimiter{},
		exporter: testutil.NewMockExporter(),
		notifier: &testutil.MockNotifier{},
	}
	// five active, two paused, one archived, plus one listing of another seller
	for i, st := range []listing.Status{
		listing.StatusActive, listing.StatusActive, listing.StatusActive, listing.StatusActive, listing.StatusActive,
		listing.StatusPaused, listing.StatusPaused, listing.StatusArchived,
	} {
		f.listings = append(f.listings, testutil.NewListing(seller, "SKU-"+string(rune('A'+i)), st))
	}
	foreign := testutil.NewListing("seller-2", "SKU-X", listing.StatusActive)
	f.repo = testutil.NewMockListingRepo(append(f.listings, foreign)...)

	f.executor = bulk.NewExecutor(bulk.Deps{
		Repo:      f.repo,
		TxManager: f.txm,
		Journal:   f.journal,
		Events:    f.events,
		Numerator: &testutil.MockNumerator{},
		Limiter:   f.limiter,
		Exporter:  f.exporter,
		Notifier:  f.notifier,
	}, bulk.Config{NumberPrefix: "BLK"})
	return f
}

func userCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", SellerID: seller})
}

var activeScope = filter.Scope{Items: []filter.Item{{Field: "status", Operator: filter.Equal, Value: "active"}}}

func selectAll(scope filter.Scope, excluded ...id.ID) listing.Selection {
	s := selection.Empty[id.ID, filter.Scope]().SelectAllFiltered(scope)
	for _, v := range excluded {
		s = s.Toggle(v, false)
	}
	return s
}

func manual(ids ...id.ID) listing.Selection {
	s := selection.Empty[id.ID, filter.Scope]()
	for _, v := range ids {
		s = s.Toggle(v, true)
	}
	return s
}

func TestExecute_RefusesEmptySelection(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: selection.Empty[id.ID, filter.Scope](),
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEmptySelection))
	assert.Zero(t, f.txm.Calls)
	assert.Empty(t, f.journal.Entries)
}

func TestExecute_SetStatusAllFilteredWithExclusions(t *testing.T) {
	f := newFixture(t)
	excluded := []id.ID{f.listings[0].ID, f.listings[1].ID}

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionSetStatus,
		Selection: selectAll(activeScope, excluded...),
		Status:    listing.StatusPaused,
	})
	require.NoError(t, err)

	assert.Equal(t, selection.ModeAllFiltered, res.Mode)
	assert.Equal(t, int64(3), res.Matched)
	assert.Equal(t, int64(3), res.Affected)
	assert.Equal(t, listing.StatusActive, f.listings[0].Status)
	assert.Equal(t, listing.StatusActive, f.listings[1].Status)
	for _, l := range f.listings[2:5] {
		assert.Equal(t, listing.StatusPaused, l.Status)
	}
	assert.True(t, strings.HasPrefix(res.Number, "BLK-"))

	entry := f.journal.Entries[res.Number]
	require.NotNil(t, entry)
	assert.Equal(t, activeScope, *entry.Scope)
	assert.Equal(t, activeScope.Fingerprint(), entry.ScopeFingerprint)
	assert.ElementsMatch(t, excluded, entry.ExcludedIDs)
	assert.Empty(t, entry.IDs)
	assert.Equal(t, "paused", entry.Params["status"])
}

func TestExecute_SetStatusManualSkipsForbiddenTransitions(t *testing.T) {
	f := newFixture(t)
	archived := f.listings[7]
	paused := f.listings[5]

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionSetStatus,
		Selection: manual(archived.ID, paused.ID),
		Status:    listing.StatusActive,
	})
	require.NoError(t, err)

	assert.Equal(t, selection.ModeManual, res.Mode)
	assert.Equal(t, int64(2), res.Matched)
	assert.Equal(t, int64(1), res.Affected)
	assert.Equal(t, int64(1), res.Skipped)
	assert.Equal(t, listing.StatusArchived, archived.Status)
	assert.Equal(t, listing.StatusActive, paused.Status)

	entry := f.journal.Entries[res.Number]
	assert.ElementsMatch(t, []id.ID{archived.ID, paused.ID}, entry.IDs)
	assert.Nil(t, entry.Scope)
}

func TestExecute_ManualIgnoresOtherSellers(t *testing.T) {
	f := newFixture(t)
	var foreign *listing.Listing
	for _, l := range f.repo.Listings {
		if l.SellerID != seller {
			foreign = l
		}
	}

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionSetStatus,
		Selection: manual(foreign.ID),
		Status:    listing.StatusPaused,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Affected)
	assert.Equal(t, listing.StatusActive, foreign.Status)
}

func TestExecute_ReprocessPublishesOutboxEvent(t *testing.T) {
	f := newFixture(t)

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: selectAll(filter.Scope{}, f.listings[6].ID),
	})
	require.NoError(t, err)

	// archived listings are not reprocessed and one paused listing is excluded
	assert.Equal(t, int64(7), res.Matched)
	assert.Equal(t, int64(6), res.Affected)
	require.Len(t, f.events.Events, 1)

	ev := f.events.Events[0]
	assert.Equal(t, bulk.EventReprocessRequested, ev.EventType)
	assert.Equal(t, res.ID, ev.AggregateID)
	payload, ok := ev.Payload.(bulk.ReprocessRequested)
	require.True(t, ok)
	assert.Equal(t, seller, payload.SellerID)
	assert.Equal(t, res.Number, payload.Operation)
	assert.Len(t, payload.ListingIDs, 6)
	assert.NotContains(t, payload.ListingIDs, f.listings[6].ID)
}

func TestExecute_ExportUploadsCSV(t *testing.T) {
	f := newFixture(t)

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionExport,
		Selection: selectAll(activeScope, f.listings[4].ID),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), res.Affected)
	assert.Equal(t, "exports/seller-1/"+res.Number+".csv", res.ExportKey)
	assert.Equal(t, "https://exports.test/"+res.ExportKey, res.DownloadURL)

	body := string(f.exporter.Files[res.ExportKey])
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "id,marketplace,sku"))
	assert.NotContains(t, body, f.listings[4].SKU+",")
	assert.Contains(t, body, "100.00")
}

func TestExecute_ExportWithoutStorage(t *testing.T) {
	f := newFixture(t)
	f.executor.Exporter = nil

	_, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionExport,
		Selection: manual(f.listings[0].ID),
	})
	require.Error(t, err)
	assert.Equal(t, 422, apperror.GetHTTPStatus(err))
	assert.Empty(t, f.limiter.Keys)
	assert.Zero(t, f.txm.Calls)

	// the refused export used no operation number
	f.executor.Exporter = f.exporter
	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionExport,
		Selection: manual(f.listings[0].ID),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Number, "-00001"), res.Number)
}

func TestExecute_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.Deny = true
	f.limiter.RetryAfter = 3 * time.Second

	_, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: manual(f.listings[0].ID),
	})

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeRateLimited, appErr.Code)
	assert.Equal(t, 3, appErr.Details["retry_after_seconds"])
	assert.Equal(t, []string{"u-1"}, f.limiter.Keys)
	assert.Zero(t, f.txm.Calls)
}

func TestExecute_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  bulk.Request
	}{
		{"unknown action", bulk.Request{Action: "delete", Selection: manual(f.listings[0].ID)}},
		{"missing status", bulk.Request{Action: bulk.ActionSetStatus, Selection: manual(f.listings[0].ID)}},
		{"bad scope", bulk.Request{
			Action:    bulk.ActionReprocess,
			Selection: selectAll(filter.Scope{Items: []filter.Item{{Field: "status", Operator: "like", Value: "x"}}}),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.executor.Execute(userCtx(), tt.req)
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
		})
	}
}

func TestExecute_RequiresSeller(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.Execute(context.Background(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: manual(f.listings[0].ID),
	})
	require.Error(t, err)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))
}

func TestExecute_JournalFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.journal.Err = errors.New("disk full")

	_, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: manual(f.listings[0].ID),
	})
	require.Error(t, err)
	assert.Empty(t, f.notifier.Results)
}

func TestExecute_NotifiesAndJournals(t *testing.T) {
	f := newFixture(t)

	res, err := f.executor.Execute(userCtx(), bulk.Request{
		Action:    bulk.ActionReprocess,
		Selection: manual(f.listings[0].ID),
	})
	require.NoError(t, err)

	require.Len(t, f.notifier.Results, 1)
	assert.Equal(t, res.Number, f.notifier.Results[0].Number)

	entry, err := f.executor.Get(userCtx(), res.Number)
	require.NoError(t, err)
	assert.Equal(t, "u-1", entry.UserID)

	_, err = f.executor.Get(userCtx(), "BLK-1999-00001")
	assert.True(t, apperror.IsNotFound(err))
}

func TestResolveTarget(t *testing.T) {
	a, b := id.New(), id.New()

	target, err := bulk.ResolveTarget(bulk.ActionExport, manual(a, b))
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ID{a, b}, target.IDs)
	assert.Nil(t, target.Filter)

	target, err = bulk.ResolveTarget(bulk.ActionExport, selectAll(activeScope, a))
	require.NoError(t, err)
	assert.Equal(t, activeScope, *target.Filter)
	assert.Equal(t, []id.ID{a}, target.ExcludedIDs)
	assert.Empty(t, target.IDs)

	_, err = bulk.ResolveTarget(bulk.ActionExport, manual(a).Toggle(a, false))
	assert.True(t, apperror.IsCode(err, apperror.CodeEmptySelection))
}
