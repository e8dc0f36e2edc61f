// internal/app/router.go
package app

import (
	"net/http"

	authHandler "leaven-service/internal/handlers/auth"
	featureHandler "leaven-service/internal/handlers/featuretoggle"
	telemetryHandler "leaven-service/internal/handlers/telemetry"
	wsHandler "leaven-service/internal/handlers/websocket"
	"leaven-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	WSHandler        *wsHandler.WebSocketHandler
	TelemetryHandler *telemetryHandler.TelemetryHandler
	FeatureHandler   *featureHandler.FeatureToggleHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

type RouterConfig struct {
	WSPath   string
	Gatherer prometheus.Gatherer
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, cfg RouterConfig, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// ==================== WebSocket ====================
	wsPath := cfg.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.GET(wsPath, h.WSHandler.HandleConnection)

	// ==================== Identity ====================
	auth := api.Group("/auth")
	auth.Use(h.AuthMiddleware.Auth())
	{
		auth.GET("/me", h.AuthHandler.GetMe)
		auth.POST("/logout", h.AuthHandler.Logout)
	}

	// ==================== Realtime (admin) ====================
	realtime := api.Group("/realtime")
	realtime.Use(h.AuthMiddleware.AdminOnly()...)
	{
		realtime.GET("/stats", h.WSHandler.GetStats)
		realtime.GET("/topics/:topic/subscribers", h.WSHandler.GetTopicSubscribers)
		realtime.POST("/topics/:topic/broadcast", h.WSHandler.Broadcast)
		realtime.GET("/clients/:clientId/topics", h.WSHandler.GetClientTopics)
		realtime.GET("/clients/:clientId/sockets", h.WSHandler.GetClientSockets)
	}

	// ==================== Telemetry (device bridge) ====================
	telemetry := api.Group("/telemetry")
	telemetry.Use(h.AuthMiddleware.DeviceOnly()...)
	{
		telemetry.POST("/readings", h.TelemetryHandler.PostReading)
		telemetry.POST("/ota-progress", h.TelemetryHandler.PostOtaProgress)
		telemetry.POST("/diagnostics", h.TelemetryHandler.PostDiagnostics)
	}

	// ==================== Feature toggles (admin) ====================
	features := api.Group("/features")
	features.Use(h.AuthMiddleware.AdminOnly()...)
	{
		features.GET("", h.FeatureHandler.ListFeatures)
		features.PUT("/:name/enabled", h.FeatureHandler.SetEnabled)
		features.PUT("/:name/rollout", h.FeatureHandler.SetRollout)
		features.POST("/:name/users/:userId", h.FeatureHandler.AddUser)
		features.DELETE("/:name/users/:userId", h.FeatureHandler.RemoveUser)
	}

	r.NoRoute(func(c *gin.Context) {
		logger.Debug("route not found", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})
}

// WithCORS wraps the engine in a CORS handler. An empty origin list
// disables CORS handling.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(h)
}
