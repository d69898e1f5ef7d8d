// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"sellerdesk/internal/domain/auth"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/infrastructure/http/v1/handlers"
	"sellerdesk/internal/infrastructure/http/v1/middleware"
	"sellerdesk/internal/infrastructure/realtime"
	"sellerdesk/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.TokenValidator

	// DB backs the readiness probe
	DB handlers.Pinger

	Listings handlers.ListingService
	Counter  handlers.ScopeCounter
	Sessions *listing.SelectionRegistry
	Executor handlers.BulkExecutor
	Hub      *realtime.Hub

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// Limiter throttles API calls per user when set
	Limiter middleware.KeyedLimiter

	// AllowedOrigins for websocket upgrades; empty means same origin only
	AllowedOrigins []string

	Version string
	Debug   bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Sessions, cfg.Hub, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Limiter != nil {
		v1.Use(middleware.RateLimit(cfg.Limiter))
	}
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()

	listingHandler := handlers.NewListingHandler(base, cfg.Listings)
	RegisterListingRoutes(v1.Group("/listings"), listingHandler)

	selectionHandler := handlers.NewSelectionHandler(base, cfg.Sessions, cfg.Counter, cfg.Hub, cfg.AllowedOrigins)
	var bulkHandler *handlers.BulkHandler
	if cfg.Executor != nil {
		bulkHandler = handlers.NewBulkHandler(selectionHandler, cfg.Executor)
		v1.GET("/bulk-operations/:number",
			middleware.RequirePermission(auth.PermBulkExecute, auth.PermBulkExport),
			bulkHandler.GetOperation)
	}
	RegisterSelectionRoutes(v1.Group("/selections/:view"), selectionHandler, bulkRoutes(bulkHandler))

	return router
}

// bulkRoutes keeps a nil handler a nil interface.
func bulkRoutes(h *handlers.BulkHandler) BulkRouteHandler {
	if h == nil {
		return nil
	}
	return h
}
