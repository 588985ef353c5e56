// routes.go - Route and middleware registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pump-sim/backend/internal/config"
)

// RegisterRoutes registers all API routes with the Echo instance. A nil
// metricsHandler leaves /metrics unregistered.
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler, metricsHandler http.Handler) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", h.HandleHealth)

	// WebSocket endpoint
	if ws != nil {
		apiGroup.GET("/ws", ws.HandleWebSocket)
	}

	// Series
	seriesGroup := apiGroup.Group("/series")
	seriesGroup.GET("", h.HandleGetSeries)
	seriesGroup.GET("/msgpack", h.HandleGetSeriesMsgpack)
	seriesGroup.GET("/daily", h.HandleGetDailySummary)
	seriesGroup.GET("/status-counts", h.HandleGetStatusCounts)
	seriesGroup.GET("/range", h.HandleGetRange)
	seriesGroup.POST("/regenerate", h.HandleRegenerate)

	// Playback
	playbackGroup := apiGroup.Group("/playback")
	playbackGroup.GET("", h.HandleGetPlayback)
	playbackGroup.GET("/diagram", h.HandleGetDiagram)
	playbackGroup.GET("/chart", h.HandleGetChart)
	playbackGroup.GET("/stream", h.HandlePlaybackStream)
	playbackGroup.POST("/play", h.HandlePlay)
	playbackGroup.POST("/pause", h.HandlePause)
	playbackGroup.POST("/toggle", h.HandleToggle)
	playbackGroup.POST("/reset", h.HandleReset)
	playbackGroup.POST("/seek", h.HandleSeek)
	playbackGroup.POST("/speed", h.HandleSetSpeed)

	// Chart interaction
	apiGroup.POST("/chart/click", h.HandleChartClick)

	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
}

// isStreamRequest reports requests that hold the connection open.
func isStreamRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/stream") ||
		path == "/api/ws" ||
		c.Request().Header.Get("Accept") == "text/event-stream"
}

// SetupMiddleware configures common middleware from the server config.
// embedded selects the configured CORS origins; otherwise only the local dev
// servers are allowed.
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, embedded bool) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper:      isStreamRequest,
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: isStreamRequest,
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if !cfg.Server.EnableCORS {
		return
	}
	methods := []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept}
	if embedded {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: methods,
			AllowHeaders: headers,
		}))
		return
	}
	// Development mode - only allow localhost
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:3000", "http://127.0.0.1:3000",
		},
		AllowMethods: methods,
		AllowHeaders: headers,
	}))
}
