package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tallyd/internal/adapter/httpserver"
	"github.com/pscheid92/tallyd/internal/adapter/metrics"
	"github.com/pscheid92/tallyd/internal/adapter/postgres"
	"github.com/pscheid92/tallyd/internal/adapter/redis"
	"github.com/pscheid92/tallyd/internal/adapter/websocket"
	"github.com/pscheid92/tallyd/internal/app"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/internal/engine"
	"github.com/pscheid92/tallyd/internal/platform/config"
	"github.com/pscheid92/tallyd/internal/platform/logging"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config, reg *metrics.BreakerMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	breaker := redis.NewCircuitBreakerHook(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL, breaker)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, eng *engine.Engine, hub *websocket.Hub, cancelTicker context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelTicker()
		hub.Stop()
		eng.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "backend", cfg.TallyBackend)

	registry := metrics.NewRegistry()

	pool := setupDB(cfg)
	defer pool.Close()

	streamRepo := postgres.NewStreamRepo(pool)
	snapshotRepo := postgres.NewSnapshotRepo(pool)

	healthChecks := []httpserver.HealthCheck{
		{Name: "database", Check: pool.Ping},
	}

	// Select the tally backend
	var store domain.TallyStore
	var redisClient *goredis.Client
	if cfg.TallyBackend == config.BackendRedis {
		redisClient = setupRedis(cfg, metrics.NewBreakerMetrics(registry))
		defer func() { _ = redisClient.Close() }()
		store = redis.NewTallyStore(redisClient)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		store = engine.NewInMemoryStore()
	}

	eng := engine.New(store, clock, cfg.StreamIdleTimeout)

	wsMetrics := metrics.NewWebSocketMetrics(registry)

	// Viewers keep their stream on the ticker so they receive pushes even
	// without ongoing ingest. ticker is assigned below, before the server
	// accepts any connection.
	var ticker *app.SnapshotTicker
	hub := websocket.NewHub(cfg.MaxWebSocketConnections, wsMetrics,
		func(streamID uuid.UUID) error {
			ticker.Track(streamID)
			return nil
		},
		func(streamID uuid.UUID) { ticker.Untrack(streamID) },
	)
	publisher := websocket.NewPublisher(hub, wsMetrics)

	ticker = app.NewSnapshotTicker(eng, snapshotRepo, publisher, cfg.SnapshotInterval)
	eng.SetIdleHandler(func(streamID uuid.UUID) { ticker.Untrack(streamID) })
	eng.Start()

	tickerCtx, cancelTicker := context.WithCancel(context.Background())
	go ticker.Run(tickerCtx)

	ingestMetrics := metrics.NewIngestMetrics(registry)
	appSvc := app.NewService(streamRepo, eng, ticker, ingestMetrics, clock, cfg.MaxBatchSize)

	metricsHandler := echo.WrapHandler(metrics.Handler(registry))
	srv := httpserver.NewServer(cfg, appSvc, snapshotRepo, hub, metricsHandler, healthChecks)

	done := runGracefulShutdown(srv, eng, hub, cancelTicker)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
