// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"shpkml-service/internal/converter"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// AppConfig composes the per-concern sections below. Each field maps to one
// environment variable; see the struct tags for names and defaults.
type AppConfig struct {
	HTTP      HTTPConfig
	Store     StoreConfig
	Queue     QueueConfig
	Redis     RedisConfig `envPrefix:"REDIS_"`
	Worker    WorkerConfig
	Workspace WorkspaceConfig
	Converter ConverterConfig `envPrefix:"CONVERTER_"`

	DiagnosticsMode string `env:"DIAGNOSTICS_MODE" envDefault:"lenient"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr  string `env:"METRICS_ADDR" envDefault:":9090"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Version      string `env:"APP_VERSION" envDefault:"dev"`
}

// Load reads an optional .env file, then the environment.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Worker.Sanitize()
	c.Converter.Sanitize()

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Queue.Driver = strings.ToLower(strings.TrimSpace(c.Queue.Driver))
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
	c.DiagnosticsMode = strings.ToLower(strings.TrimSpace(c.DiagnosticsMode))
	if c.DiagnosticsMode == "" {
		c.DiagnosticsMode = string(converter.ModeLenient)
	}
	if strings.TrimSpace(c.Workspace.Root) == "" {
		c.Workspace.Root = "./data"
	}
	if c.Workspace.OutputRetention < 0 {
		c.Workspace.OutputRetention = 0
	}
	if c.Workspace.MaxExtractMB <= 0 {
		c.Workspace.MaxExtractMB = defaultMaxExtractMB
	}
	if c.Workspace.JanitorInterval <= 0 {
		c.Workspace.JanitorInterval = defaultJanitorInterval
	}
	if c.Queue.RequeueInterval <= 0 {
		c.Queue.RequeueInterval = defaultRequeueInterval
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = defaultLockTTL
	}
}

// Validate rejects combinations the binaries cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Queue.Driver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}

	if _, err := converter.ParseMode(c.DiagnosticsMode); err != nil {
		return err
	}
	if len(c.Converter.Command) == 0 {
		return errors.New("CONVERTER_COMMAND is empty")
	}
	return nil
}

// Mode returns the diagnostics mode; Validate has already rejected unknown values.
func (c *AppConfig) Mode() converter.Mode {
	m, err := converter.ParseMode(c.DiagnosticsMode)
	if err != nil {
		return converter.ModeLenient
	}
	return m
}

// Distributed reports whether jobs may run in another process (Redis queue).
func (c *AppConfig) Distributed() bool {
	return c.Queue.Driver == DriverRedis
}
