package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/tallyd/internal/platform/errors"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(apperrors.Middleware())

	s.registerHealthRoutes()

	ingestLimiter := newRateLimiter(s.config.IngestRatePerSecond, s.config.IngestBurst)

	api := s.echo.Group("/api")
	api.POST("/streams", s.handleCreateStream)
	api.GET("/streams", s.handleListStreams)
	api.GET("/streams/:id", s.handleGetStream)
	api.DELETE("/streams/:id", s.handleDeleteStream)

	api.POST("/streams/:id/observations", s.handleIngest, ingestLimiter)
	api.GET("/streams/:id/snapshot", s.handleGetSnapshot)
	api.GET("/streams/:id/mode", s.handleGetMode)
	api.GET("/streams/:id/top", s.handleTop)
	api.POST("/streams/:id/reset", s.handleReset)
	api.GET("/streams/:id/history/latest", s.handleLatestPersisted)

	if s.hub != nil {
		s.echo.GET("/ws/streams/:id", s.handleWebSocket)
	}

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", s.metricsHandler)
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
