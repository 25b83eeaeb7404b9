package handlers

import (
	_ "cartridge_conditioner/docs"
	"cartridge_conditioner/internal/logger"
	"cartridge_conditioner/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
//
// The device command endpoints (/auto, /manual, /stop) are unauthenticated:
// they are the contract the deployed orchestrator speaks, and the emergency
// stop must never be blocked behind an expired token. The inspection API is
// operator-facing and sits behind auth.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Device command contract
	router.POST("/auto", h.autoCommand)
	router.POST("/manual", h.manualCommand)
	router.POST("/stop", h.stopCommand)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned inspection API (protected)
	h.registerAPIRoutes(router)

	// Live state stream over the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.GET("/state", h.getState)
		api.GET("/config", h.getConfig)
		api.GET("/logs", h.getLogs)
	}
}
