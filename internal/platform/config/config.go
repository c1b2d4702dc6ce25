// Package config loads and validates the application configuration from
// environment variables, with optional .env support for local development.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	// BackendMemory keeps all tally state in process memory.
	BackendMemory = "memory"
	// BackendRedis shares tally state across instances via Redis.
	BackendRedis = "redis"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// TallyBackend selects where live tally state lives: "memory" or "redis".
	TallyBackend string `env:"TALLY_BACKEND" default:"memory"`

	SnapshotInterval  time.Duration `env:"SNAPSHOT_INTERVAL" default:"2s"`
	StreamIdleTimeout time.Duration `env:"STREAM_IDLE_TIMEOUT" default:"30m"`

	MaxBatchSize            int     `env:"MAX_BATCH_SIZE" default:"1000"`
	IngestRatePerSecond     float64 `env:"INGEST_RATE_PER_SECOND" default:"50"`
	IngestBurst             int     `env:"INGEST_BURST" default:"100"`
	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.TallyBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when TALLY_BACKEND is %q", BackendRedis)
		}
	default:
		return fmt.Errorf("TALLY_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.TallyBackend)
	}

	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", cfg.MaxBatchSize)
	}
	if cfg.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %s", cfg.SnapshotInterval)
	}

	return nil
}
