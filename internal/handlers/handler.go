package handlers

import (
	"alarmmate/internal/detector"
	"alarmmate/internal/logger"
	"alarmmate/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	detector detector.Detector
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. The detector
// may be nil when no detection service is configured; the photo endpoint
// then reports 503.
func NewHandler(services *service.Service, det detector.Detector, log *logger.Logger) *Handler {
	return &Handler{services: services, detector: det, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Fire-event + state stream (HTTP upgrade) — same port
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
		h.registerScheduleRoutes(api)
		h.registerAlarmRoutes(api)
		h.registerAnalysisRoutes(api)
		h.registerSettingsRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerScheduleRoutes(api *gin.RouterGroup) {
	schedule := api.Group("/schedule")
	{
		schedule.GET("", h.getWeeklySchedule)
		schedule.GET("/today", h.getTodayAlarm)
		// Body example: {"time":"07:30"}
		schedule.PUT("/:day", h.setDayAlarm)
	}
}

func (h *Handler) registerAlarmRoutes(api *gin.RouterGroup) {
	alarm := api.Group("/alarm")
	{
		alarm.GET("/next", h.getNextAlarm)
		alarm.GET("/state", h.getGateState)
		alarm.POST("/test", h.scheduleTestAlarm)
		alarm.POST("/proof/open", h.openProof)
		alarm.POST("/proof/input", h.submitProofInput)
		alarm.POST("/dismiss", h.dismissAlarm)
	}
}

func (h *Handler) registerAnalysisRoutes(api *gin.RouterGroup) {
	analysis := api.Group("/analysis")
	{
		// Pre-computed detections from on-device inference
		analysis.POST("", h.applyDetections)
		// Raw timetable photo routed through the external detector
		analysis.POST("/photo", h.analyzePhoto)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("/game", h.getGame)
		settings.PUT("/game", h.setGame)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
