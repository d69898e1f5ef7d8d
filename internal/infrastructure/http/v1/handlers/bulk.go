package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/infrastructure/http/v1/dto"
)

// BulkExecutor runs and looks up bulk operations.
type BulkExecutor interface {
	Execute(ctx context.Context, req bulk.Request) (*bulk.Result, error)
	Get(ctx context.Context, number string) (*bulk.Entry, error)
}

// BulkHandler runs bulk actions over the caller's selection.
type BulkHandler struct {
	*SelectionHandler
	executor BulkExecutor
}

// NewBulkHandler creates a bulk handler sharing the selection sessions of sel.
func NewBulkHandler(sel *SelectionHandler, executor BulkExecutor) *BulkHandler {
	return &BulkHandler{SelectionHandler: sel, executor: executor}
}

// Execute handles POST /selections/:view/bulk/:action.
//
// The action runs against the snapshot taken when the request arrives.
// On success the selection is reset unless keepSelection is set and the
// snapshot is still current.
func (h *BulkHandler) Execute(c *gin.Context) {
	store, _, ok := h.store(c)
	if !ok {
		return
	}

	var req dto.BulkRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	action := bulk.Action(strings.ReplaceAll(c.Param("action"), "-", "_"))

	snapshot, version := store.Snapshot()
	res, err := h.executor.Execute(c.Request.Context(), bulk.Request{
		Action:    action,
		Selection: snapshot,
		Status:    req.Status,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	if !req.KeepSelection {
		// a selection changed while the action ran belongs to the user
		store.ResetIfVersion(version)
	}
	h.OK(c, res)
}

// GetOperation handles GET /bulk-operations/:number.
func (h *BulkHandler) GetOperation(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		h.Error(c, apperror.NewValidation("operation number is required"))
		return
	}
	entry, err := h.executor.Get(c.Request.Context(), number)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

var _ BulkExecutor = (*bulk.Executor)(nil)
