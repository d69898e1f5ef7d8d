package v1

import (
	"github.com/gin-gonic/gin"

	"sellerdesk/internal/domain/auth"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/infrastructure/http/v1/middleware"
)

// ListingRouteHandler defines the listing endpoints.
type ListingRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// SelectionRouteHandler defines the selection endpoints of a view.
type SelectionRouteHandler interface {
	Get(c *gin.Context)
	Count(c *gin.Context)
	Reset(c *gin.Context)
	SelectAll(c *gin.Context)
	Toggle(c *gin.Context)
	Commands(c *gin.Context)
	Stream(c *gin.Context)
}

// BulkRouteHandler defines the bulk endpoints.
type BulkRouteHandler interface {
	Execute(c *gin.Context)
	GetOperation(c *gin.Context)
}

// RegisterListingRoutes registers the listing catalog routes.
func RegisterListingRoutes(group *gin.RouterGroup, handler ListingRouteHandler) {
	group.GET("", middleware.RequirePermission(auth.PermListingsRead), handler.List)
	group.POST("", middleware.RequirePermission(auth.PermListingsWrite), handler.Create)
	group.GET("/:id", middleware.RequirePermission(auth.PermListingsRead), handler.Get)
}

// RegisterSelectionRoutes registers selection and bulk routes under /selections/:view.
// Selecting is read access; running an action needs the bulk permissions.
func RegisterSelectionRoutes(group *gin.RouterGroup, handler SelectionRouteHandler, bulkHandler BulkRouteHandler) {
	read := middleware.RequirePermission(auth.PermListingsRead)

	group.GET("", read, handler.Get)
	group.GET("/count", read, handler.Count)
	group.POST("/reset", read, handler.Reset)
	group.POST("/select-all", read, handler.SelectAll)
	group.POST("/toggle", read, handler.Toggle)
	group.POST("/commands", read, handler.Commands)
	group.GET("/ws", read, handler.Stream)

	if bulkHandler != nil {
		group.POST("/bulk/:action", requireActionPermission(), bulkHandler.Execute)
	}
}

// requireActionPermission checks the permission of the :action parameter.
// Exports need their own permission because they hand out listing data.
func requireActionPermission() gin.HandlerFunc {
	execute := middleware.RequirePermission(auth.PermBulkExecute)
	export := middleware.RequirePermission(auth.PermBulkExport)
	return func(c *gin.Context) {
		if bulk.Action(c.Param("action")) == bulk.ActionExport {
			export(c)
			return
		}
		execute(c)
	}
}
