package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/internal/infrastructure/http/v1/dto"
	"sellerdesk/internal/infrastructure/realtime"
	"sellerdesk/pkg/logger"
)

const maxViewLength = 64

// ScopeCounter counts listings matching a scope. ValidateScope is checked
// before a scope is captured by select-all.
type ScopeCounter interface {
	Count(ctx context.Context, scope filter.Scope) (int64, error)
	ValidateScope(scope filter.Scope) error
}

// SelectionHandler exposes the selection store of each user view.
type SelectionHandler struct {
	*BaseHandler
	registry *listing.SelectionRegistry
	counter  ScopeCounter
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewSelectionHandler creates a selection handler. An empty allowedOrigins
// keeps the same-origin check of the websocket upgrader.
func NewSelectionHandler(base *BaseHandler, registry *listing.SelectionRegistry, counter ScopeCounter, hub *realtime.Hub, allowedOrigins []string) *SelectionHandler {
	h := &SelectionHandler{
		BaseHandler: base,
		registry:    registry,
		counter:     counter,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		}
	}
	return h
}

// view returns the :view parameter or aborts the request.
func (h *SelectionHandler) view(c *gin.Context) (string, bool) {
	view := strings.TrimSpace(c.Param("view"))
	if view == "" || len(view) > maxViewLength {
		h.Error(c, apperror.NewValidation("invalid view name").WithDetail("view", c.Param("view")))
		return "", false
	}
	return view, true
}

// store returns the store of the caller's view.
func (h *SelectionHandler) store(c *gin.Context) (*listing.SelectionStore, string, bool) {
	view, ok := h.view(c)
	if !ok {
		return nil, "", false
	}
	userID := h.GetUserID(c)
	if userID == "" {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return nil, "", false
	}
	return h.registry.Get(selection.SessionKey(userID, view)), view, true
}

// total resolves the count of the captured filter: the ?total query
// parameter when given, otherwise a server-side count.
func (h *SelectionHandler) total(c *gin.Context, s listing.Selection) (*int64, bool) {
	total, ok := h.ParseOptionalInt64(c, "total")
	if !ok || total != nil {
		return total, ok
	}
	scope, captured := s.Scope()
	if !captured || h.counter == nil {
		return nil, true
	}
	n, err := h.counter.Count(c.Request.Context(), scope)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return &n, true
}

func (h *SelectionHandler) respond(c *gin.Context, view string, version uint64, s listing.Selection) {
	total, ok := h.total(c, s)
	if !ok {
		return
	}
	h.OK(c, dto.NewSelectionResponse(view, version, s, total))
}

// Get handles GET /selections/:view.
// When search or filter query parameters describe the caller's current view,
// the response reports whether the captured filter went stale.
func (h *SelectionHandler) Get(c *gin.Context) {
	store, view, ok := h.store(c)
	if !ok {
		return
	}
	s, version := store.Snapshot()

	total, ok := h.total(c, s)
	if !ok {
		return
	}
	resp := dto.NewSelectionResponse(view, version, s, total)

	q := c.Request.URL.Query()
	if q.Has("search") || q.Has("filter") {
		current, err := dto.ListRequest{Search: q.Get("search"), Filter: q.Get("filter")}.Scope()
		if err != nil {
			h.Error(c, err)
			return
		}
		resp.Stale = selection.FilterChanged(s, current, filter.SameScope)
	}
	h.OK(c, resp)
}

// Count handles GET /selections/:view/count?total=N.
// Without total an all-filtered selection counts as zero and Known is false.
func (h *SelectionHandler) Count(c *gin.Context) {
	store, _, ok := h.store(c)
	if !ok {
		return
	}
	total, ok := h.ParseOptionalInt64(c, "total")
	if !ok {
		return
	}
	s, _ := store.Snapshot()
	h.OK(c, dto.CountResponse{
		Mode:          s.Mode,
		SelectedCount: selection.SelectedCount(s, total),
		Known:         s.Mode != selection.ModeAllFiltered || total != nil,
	})
}

// Reset handles POST /selections/:view/reset.
func (h *SelectionHandler) Reset(c *gin.Context) {
	h.dispatch(c, func(*gin.Context) ([]listing.SelectionCommand, bool) {
		return []listing.SelectionCommand{selection.ResetCommand[id.ID, filter.Scope]()}, true
	})
}

// SelectAll handles POST /selections/:view/select-all.
func (h *SelectionHandler) SelectAll(c *gin.Context) {
	h.dispatch(c, func(c *gin.Context) ([]listing.SelectionCommand, bool) {
		var req dto.SelectAllRequest
		if !h.BindJSON(c, &req) {
			return nil, false
		}
		scope := req.Filter.Normalize()
		if err := h.validateScope(scope); err != nil {
			h.Error(c, err)
			return nil, false
		}
		return []listing.SelectionCommand{selection.SelectAllCommand[id.ID](scope)}, true
	})
}

// Toggle handles POST /selections/:view/toggle.
func (h *SelectionHandler) Toggle(c *gin.Context) {
	h.dispatch(c, func(c *gin.Context) ([]listing.SelectionCommand, bool) {
		var req dto.ToggleRequest
		if !h.BindJSON(c, &req) {
			return nil, false
		}
		return []listing.SelectionCommand{selection.ToggleCommand[id.ID, filter.Scope](req.ID, req.Selected)}, true
	})
}

// Commands handles POST /selections/:view/commands. The batch is applied as
// one transition.
func (h *SelectionHandler) Commands(c *gin.Context) {
	h.dispatch(c, func(c *gin.Context) ([]listing.SelectionCommand, bool) {
		var req dto.CommandsRequest
		if !h.BindJSON(c, &req) {
			return nil, false
		}
		for i, cmd := range req.Commands {
			if err := h.validateCommand(cmd); err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					err = appErr.WithDetail("index", i)
				}
				h.Error(c, err)
				return nil, false
			}
		}
		return req.Commands, true
	})
}

func (h *SelectionHandler) dispatch(c *gin.Context, build func(*gin.Context) ([]listing.SelectionCommand, bool)) {
	store, view, ok := h.store(c)
	if !ok {
		return
	}
	cmds, ok := build(c)
	if !ok {
		return
	}
	s, version := store.DispatchAll(cmds...)
	h.respond(c, view, version, s)
}

func (h *SelectionHandler) validateCommand(cmd listing.SelectionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Type == selection.CommandSelectAllFiltered {
		return h.validateScope(*cmd.Filter)
	}
	return nil
}

// validateScope rejects a scope the listing storage could not count or
// resolve, so it never reaches the store.
func (h *SelectionHandler) validateScope(scope filter.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if h.counter == nil {
		return nil
	}
	return h.counter.ValidateScope(scope)
}

// Stream handles GET /selections/:view/ws.
//
// The socket receives a selection.changed event for every committed
// snapshot of the view and bulk.completed events of the user. Messages sent
// by the client are decoded as selection commands.
func (h *SelectionHandler) Stream(c *gin.Context) {
	store, view, ok := h.store(c)
	if !ok {
		return
	}
	userID := h.GetUserID(c)
	ctx := c.Request.Context()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the response
		logger.Warn(ctx, "websocket upgrade failed", "view", view, "error", err)
		return
	}

	client := realtime.NewClient(conn, userID, view)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	send := func(event realtime.Event) {
		data, err := event.ToJSON()
		if err != nil {
			logger.Error(ctx, "serialize realtime event", "type", event.Type, "error", err)
			return
		}
		if err := client.Send(data); err != nil {
			logger.Debug(ctx, "drop realtime message", "conn_id", client.ID(), "error", err)
		}
	}
	snapshotEvent := func(version uint64, s listing.Selection) realtime.Event {
		event := realtime.NewEvent(realtime.TypeSelectionChanged, view, dto.NewSelectionResponse(view, version, s, nil))
		event.Version = version
		return event
	}

	unsubscribe := store.Subscribe(func(version uint64, s listing.Selection) {
		send(snapshotEvent(version, s))
	})
	defer unsubscribe()

	s, version := store.Snapshot()
	send(snapshotEvent(version, s))

	go client.WritePump(ctx)
	client.ReadPump(ctx, func(data []byte) {
		var cmd listing.SelectionCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			send(realtime.NewEvent(realtime.TypeError, view, apperror.NewValidation("malformed selection command")))
			return
		}
		if err := h.validateCommand(cmd); err != nil {
			send(realtime.NewEvent(realtime.TypeError, view, err))
			return
		}
		store.Dispatch(cmd)
	})
}
