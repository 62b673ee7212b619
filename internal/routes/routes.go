// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/config"
	"projector-service/internal/handler"
	"projector-service/internal/middleware"
	"projector-service/internal/service"
	"projector-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	catalog          *catalog.Catalog
	projectorService *service.ProjectorService
	eventBus         *service.EventBus

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	cat *catalog.Catalog,
	projectorService *service.ProjectorService,
	eventBus *service.EventBus,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		catalog:          cat,
		projectorService: projectorService,
		eventBus:         eventBus,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	case r.config.IsDebugEnabled() && !r.config.IsProduction():
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Close releases the WebSocket connections
func (r *Router) Close() {
	if r.wsHandler != nil {
		r.wsHandler.Close()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.projectorService, r.config, r.logger)
	projectorHandler := handler.NewProjectorHandler(r.projectorService, r.catalog, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(r.projectorService, r.eventBus, r.config.Security.AllowedOrigins, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	projectorHandler.RegisterRoutes(router.Group("/api/v1"))

	// WebSocket routes
	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}
