package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/auth"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/internal/infrastructure/http/v1/dto"
	"sellerdesk/internal/infrastructure/realtime"
	"sellerdesk/internal/infrastructure/storage/postgres"
	"sellerdesk/internal/testutil"
	"sellerdesk/pkg/logger"
)

const seller = "seller-1"

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }
func (fakeDB) Stats() postgres.PoolStats    { return postgres.PoolStats{MaxConns: 4} }

type tokens map[string]*appctx.UserContext

func (t tokens) ValidateToken(token string) (*appctx.UserContext, error) {
	if u, ok := t[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

type apiFixture struct {
	router   *gin.Engine
	repo     *testutil.MockListingRepo
	registry *listing.SelectionRegistry
	journal  *testutil.MockJournal
	active   []*listing.Listing
	paused   *listing.Listing
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		registry: selection.NewRegistry[id.ID, filter.Scope](time.Minute),
		journal:  testutil.NewMockJournal(),
	}
	for _, sku := range []string{"A-1", "A-2", "A-3"} {
		f.active = append(f.active, testutil.NewListing(seller, sku, listing.StatusActive))
	}
	f.paused = testutil.NewListing(seller, "P-1", listing.StatusPaused)
	foreign := testutil.NewListing("seller-2", "F-1", listing.StatusActive)
	f.repo = testutil.NewMockListingRepo(append(f.active, f.paused, foreign)...)

	txm := &testutil.MockTxManager{}
	service := listing.NewService(f.repo, txm)
	hub := realtime.NewHub()
	executor := bulk.NewExecutor(bulk.Deps{
		Repo:      f.repo,
		TxManager: txm,
		Journal:   f.journal,
		Events:    &testutil.MockPublisher{},
		Numerator: &testutil.MockNumerator{},
		Exporter:  testutil.NewMockExporter(),
		Notifier:  hub,
	}, bulk.Config{})

	f.router = NewRouter(RouterConfig{
		Logger: logger.Default(),
		JWTValidator: tokens{
			"owner": {
				UserID:   "u-1",
				SellerID: seller,
				Permissions: []string{
					auth.PermListingsRead, auth.PermListingsWrite, auth.PermBulkExecute, auth.PermBulkExport,
				},
			},
			"reader": {UserID: "u-2", SellerID: seller, Permissions: []string{auth.PermListingsRead}},
		},
		DB:       fakeDB{},
		Listings: service,
		Counter:  service,
		Sessions: f.registry,
		Executor: executor,
		Hub:      hub,
		Version:  "test",
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var activeScope = filter.Scope{Items: []filter.Item{{Field: "status", Operator: filter.Equal, Value: "active"}}}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]any](t, rec)
	assert.Equal(t, "test", info["version"])
	assert.EqualValues(t, 0, info["selection_sessions"])
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/listings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListings_ListWithFilter(t *testing.T) {
	f := newAPIFixture(t)

	q := url.Values{}
	q.Set("filter", `[{"field":"status","operator":"eq","value":"active"}]`)
	q.Set("limit", "2")
	rec := f.do(t, http.MethodGet, "/api/v1/listings?"+q.Encode(), "reader", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := decode[dto.ListResponse[dto.ListingResponse]](t, rec)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.Equal(t, listing.StatusActive, item.Status)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/listings?filter=not-json", "reader", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListings_GetAndCreate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/listings/"+f.paused.ID.String(), "reader", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P-1", decode[dto.ListingResponse](t, rec).SKU)

	rec = f.do(t, http.MethodGet, "/api/v1/listings/not-an-id", "reader", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/listings/"+id.New().String(), "reader", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := map[string]any{"marketplace": "wb", "sku": "N-1", "title": "New", "price": "10.50"}
	rec = f.do(t, http.MethodPost, "/api/v1/listings", "reader", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/listings", "owner", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.ListingResponse](t, rec)
	assert.Equal(t, listing.StatusDraft, created.Status)
	assert.Equal(t, "10.5", created.Price.String())
}

func TestSelection_ManualThenAllFiltered(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/selections/listings"

	rec := f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.active[0].ID, Selected: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.active[1].ID, Selected: true})
	snap := decode[dto.SelectionResponse](t, rec)
	assert.Equal(t, selection.ModeManual, snap.Mode)
	assert.Equal(t, int64(2), snap.SelectedCount)
	assert.Nil(t, snap.Total)

	rec = f.do(t, http.MethodPost, base+"/select-all", "owner", dto.SelectAllRequest{Filter: activeScope})
	snap = decode[dto.SelectionResponse](t, rec)
	assert.Equal(t, selection.ModeAllFiltered, snap.Mode)
	require.NotNil(t, snap.Total)
	assert.Equal(t, int64(3), *snap.Total)
	assert.Equal(t, int64(3), snap.SelectedCount)

	rec = f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.active[2].ID, Selected: false})
	snap = decode[dto.SelectionResponse](t, rec)
	assert.Equal(t, int64(2), snap.SelectedCount)
	assert.Equal(t, uint64(4), snap.Version)

	// the caller now looks at a different filter
	rec = f.do(t, http.MethodGet, base+"?search=A-1", "owner", nil)
	assert.True(t, decode[dto.SelectionResponse](t, rec).Stale)
	q := url.Values{}
	q.Set("filter", `[{"field":"status","operator":"eq","value":"active"}]`)
	rec = f.do(t, http.MethodGet, base+"?"+q.Encode(), "owner", nil)
	assert.False(t, decode[dto.SelectionResponse](t, rec).Stale)

	rec = f.do(t, http.MethodGet, base+"/count", "owner", nil)
	count := decode[dto.CountResponse](t, rec)
	assert.False(t, count.Known)
	assert.Zero(t, count.SelectedCount)

	rec = f.do(t, http.MethodGet, base+"/count?total=10", "owner", nil)
	count = decode[dto.CountResponse](t, rec)
	assert.True(t, count.Known)
	assert.Equal(t, int64(9), count.SelectedCount)

	rec = f.do(t, http.MethodGet, base+"/count?total=-1", "owner", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelection_SessionsArePerUserAndView(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/api/v1/selections/listings/toggle", "owner", dto.ToggleRequest{ID: f.active[0].ID, Selected: true})

	rec := f.do(t, http.MethodGet, "/api/v1/selections/listings", "reader", nil)
	assert.Equal(t, selection.ModeNone, decode[dto.SelectionResponse](t, rec).Mode)
	rec = f.do(t, http.MethodGet, "/api/v1/selections/archive", "owner", nil)
	assert.Equal(t, selection.ModeNone, decode[dto.SelectionResponse](t, rec).Mode)
	assert.Equal(t, 3, f.registry.Len())
}

func TestSelection_Commands(t *testing.T) {
	f := newAPIFixture(t)
	path := "/api/v1/selections/listings/commands"

	rec := f.do(t, http.MethodPost, path, "owner", dto.CommandsRequest{Commands: []listing.SelectionCommand{
		selection.SelectAllCommand[id.ID](activeScope),
		selection.ToggleCommand[id.ID, filter.Scope](f.active[0].ID, false),
		selection.ToggleCommand[id.ID, filter.Scope](f.active[0].ID, true),
		selection.ToggleCommand[id.ID, filter.Scope](f.active[1].ID, false),
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[dto.SelectionResponse](t, rec)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, int64(2), snap.SelectedCount)
	assert.True(t, selection.IsSelected(snap.State, f.active[0].ID))
	assert.False(t, selection.IsSelected(snap.State, f.active[1].ID))

	rec = f.do(t, http.MethodPost, path, "owner", map[string]any{
		"commands": []map[string]any{{"type": "reset"}, {"type": "explode"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["details"].(map[string]any)["index"])

	// the rejected batch left the state alone
	rec = f.do(t, http.MethodGet, "/api/v1/selections/listings", "owner", nil)
	assert.Equal(t, selection.ModeAllFiltered, decode[dto.SelectionResponse](t, rec).Mode)
}

func TestSelection_SelectAllRejectsUnknownField(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/selections/listings"

	rec := f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.active[0].ID, Selected: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	bogus := filter.Scope{Items: []filter.Item{{Field: "bogus", Operator: filter.Equal, Value: 1}}}
	rec = f.do(t, http.MethodPost, base+"/select-all", "owner", dto.SelectAllRequest{Filter: bogus})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, apperror.CodeValidation, body["code"])
	assert.Equal(t, "bogus", body["details"].(map[string]any)["field"])

	rec = f.do(t, http.MethodPost, base+"/commands", "owner", dto.CommandsRequest{Commands: []listing.SelectionCommand{
		selection.ResetCommand[id.ID, filter.Scope](),
		selection.SelectAllCommand[id.ID](bogus),
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, base, "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[dto.SelectionResponse](t, rec)
	assert.Equal(t, selection.ModeManual, snap.Mode)
	assert.Equal(t, uint64(1), snap.Version)
	assert.True(t, selection.IsSelected(snap.State, f.active[0].ID))
}

func TestBulk_SetStatusResetsSelection(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/selections/listings"

	f.do(t, http.MethodPost, base+"/select-all", "owner", dto.SelectAllRequest{Filter: activeScope})
	f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.active[0].ID, Selected: false})

	rec := f.do(t, http.MethodPost, base+"/bulk/set-status", "owner", dto.BulkRequest{Status: listing.StatusPaused})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[bulk.Result](t, rec)
	assert.Equal(t, bulk.ActionSetStatus, res.Action)
	assert.Equal(t, selection.ModeAllFiltered, res.Mode)
	assert.Equal(t, int64(2), res.Matched)
	assert.Equal(t, int64(2), res.Affected)

	assert.Equal(t, listing.StatusActive, f.repo.Listings[f.active[0].ID].Status)
	assert.Equal(t, listing.StatusPaused, f.repo.Listings[f.active[1].ID].Status)

	rec = f.do(t, http.MethodGet, base, "owner", nil)
	assert.Equal(t, selection.ModeNone, decode[dto.SelectionResponse](t, rec).Mode)

	rec = f.do(t, http.MethodGet, "/api/v1/bulk-operations/"+res.Number, "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[bulk.Entry](t, rec)
	assert.Equal(t, []id.ID{f.active[0].ID}, entry.ExcludedIDs)

	rec = f.do(t, http.MethodGet, "/api/v1/bulk-operations/"+res.Number, "reader", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBulk_KeepSelection(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/selections/listings"

	f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.paused.ID, Selected: true})
	rec := f.do(t, http.MethodPost, base+"/bulk/export", "owner", dto.BulkRequest{KeepSelection: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[bulk.Result](t, rec).DownloadURL)

	rec = f.do(t, http.MethodGet, base, "owner", nil)
	assert.Equal(t, selection.ModeManual, decode[dto.SelectionResponse](t, rec).Mode)
}

func TestBulk_Refusals(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/selections/listings"

	rec := f.do(t, http.MethodPost, base+"/bulk/reprocess", "owner", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeEmptySelection, decode[map[string]any](t, rec)["code"])

	f.do(t, http.MethodPost, base+"/toggle", "reader", dto.ToggleRequest{ID: f.paused.ID, Selected: true})
	rec = f.do(t, http.MethodPost, base+"/bulk/reprocess", "reader", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/bulk/export", "reader", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.do(t, http.MethodPost, base+"/toggle", "owner", dto.ToggleRequest{ID: f.paused.ID, Selected: true})
	rec = f.do(t, http.MethodPost, base+"/bulk/delete", "owner", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a refused action keeps the selection
	rec = f.do(t, http.MethodGet, base, "owner", nil)
	assert.Equal(t, selection.ModeManual, decode[dto.SelectionResponse](t, rec).Mode)
}

type wsEvent struct {
	Type    string          `json:"type"`
	View    string          `json:"view"`
	Version uint64          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestSelection_WebSocketStream(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/selections/listings/ws?access_token=owner"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readEvent(t, conn)
	assert.Equal(t, realtime.TypeSelectionChanged, initial.Type)
	assert.Equal(t, "listings", initial.View)
	assert.Zero(t, initial.Version)

	// commands sent over the socket go through the store
	require.NoError(t, conn.WriteJSON(selection.ToggleCommand[id.ID, filter.Scope](f.paused.ID, true)))
	ev := readEvent(t, conn)
	assert.Equal(t, uint64(1), ev.Version)
	var snap dto.SelectionResponse
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	assert.Equal(t, selection.ModeManual, snap.Mode)
	assert.Equal(t, int64(1), snap.SelectedCount)

	// REST changes of the same session are pushed too
	f.do(t, http.MethodPost, "/api/v1/selections/listings/toggle", "owner", dto.ToggleRequest{ID: f.active[0].ID, Selected: true})
	assert.Equal(t, uint64(2), readEvent(t, conn).Version)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"explode"}`)))
	assert.Equal(t, realtime.TypeError, readEvent(t, conn).Type)

	// a scope on an unknown field is refused without a transition
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"select_all_filtered","filter":{"items":[{"field":"bogus","operator":"eq","value":1}]}}`)))
	assert.Equal(t, realtime.TypeError, readEvent(t, conn).Type)

	rec := f.do(t, http.MethodPost, "/api/v1/selections/listings/bulk/reprocess", "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, realtime.TypeBulkCompleted, readEvent(t, conn).Type)
	reset := readEvent(t, conn)
	assert.Equal(t, realtime.TypeSelectionChanged, reset.Type)
	assert.Equal(t, uint64(3), reset.Version)
}
