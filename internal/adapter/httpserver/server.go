// Package httpserver exposes the REST and websocket API on Echo.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/adapter/websocket"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/internal/platform/config"
)

type appService interface {
	CreateStream(ctx context.Context, name string) (*domain.Stream, error)
	GetStream(ctx context.Context, streamID uuid.UUID) (*domain.Stream, error)
	ListStreams(ctx context.Context) ([]domain.Stream, error)
	DeleteStream(ctx context.Context, streamID uuid.UUID) error

	Ingest(ctx context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error)
	GetSnapshot(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error)
	GetMode(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error)
	Top(ctx context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error)
	ResetStream(ctx context.Context, streamID uuid.UUID) error
}

type snapshotSource interface {
	Latest(ctx context.Context, streamID uuid.UUID) (*domain.PersistedSnapshot, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app       appService
	snapshots snapshotSource
	hub       *websocket.Hub

	metricsHandler echo.HandlerFunc
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer wires the HTTP surface. hub, snapshots, and metricsHandler may be
// nil; the corresponding routes are not registered.
func NewServer(cfg *config.Config, app appService, snapshots snapshotSource, hub *websocket.Hub, metricsHandler echo.HandlerFunc, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		app:            app,
		snapshots:      snapshots,
		hub:            hub,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
