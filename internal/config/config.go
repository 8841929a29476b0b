package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/efreitasn/marketboard/internal/domain"
)

// Store back-ends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config holds all runtime configuration for the market board.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend  string `envconfig:"STORE_BACKEND" default:"memory"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"market"`

	// DisabledOperators are reducers the in-memory trade log refuses, so
	// that analytics exercise their recompute path.
	DisabledOperators []string `envconfig:"DISABLED_OPERATORS"`

	SeedListingsFile string `envconfig:"SEED_LISTINGS_FILE"`
	SeedHistoryFile  string `envconfig:"SEED_HISTORY_FILE"`

	QueryTimeout    time.Duration `envconfig:"QUERY_TIMEOUT" default:"10s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from a .env file when present and from
// environment variables, applies defaults, and validates values. It
// returns an error for any invalid value.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for STORE_BACKEND=%s", BackendMongo)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: %s, %s", c.StoreBackend, BackendMemory, BackendMongo)
	}
	if _, err := c.Operators(); err != nil {
		return fmt.Errorf("invalid DISABLED_OPERATORS: %w", err)
	}
	for name, d := range map[string]time.Duration{
		"QUERY_TIMEOUT":    c.QueryTimeout,
		"READ_TIMEOUT":     c.ReadTimeout,
		"WRITE_TIMEOUT":    c.WriteTimeout,
		"IDLE_TIMEOUT":     c.IdleTimeout,
		"SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s: %v, must not be negative", name, d)
		}
	}
	return nil
}

// Operators parses DisabledOperators.
func (c *Config) Operators() ([]domain.Op, error) {
	ops := make([]domain.Op, 0, len(c.DisabledOperators))
	for _, s := range c.DisabledOperators {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		op, err := domain.ParseOp(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
