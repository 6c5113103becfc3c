// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Taxonomy TaxonomyConfig
	Sinks    SinksConfig
	Identity IdentityConfig
	NATS     NATSConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `env:"SERVICE_NAME" envDefault:"be-ar-nonpayment"`
	Version     string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	TimeZone    string `env:"TIME_ZONE" envDefault:"Asia/Ho_Chi_Minh"`
}

// ServerConfig configures the HTTP and gRPC listeners.
type ServerConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8086"`
	GRPCPort        int           `env:"GRPC_PORT" envDefault:"9086"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// DatabaseConfig configures the Postgres pool. An empty URL disables persistence.
type DatabaseConfig struct {
	URL         string        `env:"DATABASE_URL"`
	MaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnTime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	HealthCheck time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// RedisConfig configures the reason cache. An empty address disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REASON_CACHE_TTL" envDefault:"10m"`
}

// TaxonomyConfig selects where reason codes come from.
type TaxonomyConfig struct {
	Source string `env:"TAXONOMY_SOURCE" envDefault:"static"`
	File   string `env:"TAXONOMY_FILE"`
}

// SinksConfig addresses the three downstream systems.
type SinksConfig struct {
	DebtGRPCAddr   string        `env:"DEBT_GRPC_ADDR" envDefault:"localhost:9090"`
	InteractionURL string        `env:"INTERACTION_URL" envDefault:"http://localhost:8091"`
	CareURL        string        `env:"CARE_URL" envDefault:"http://localhost:8092"`
	Timeout        time.Duration `env:"SINK_TIMEOUT" envDefault:"10s"`
}

// IdentityConfig addresses the account lookup service. Empty URL uses the
// static staff directory.
type IdentityConfig struct {
	URL           string `env:"IDENTITY_URL"`
	DirectoryFile string `env:"STAFF_DIRECTORY_FILE"`
}

// NATSConfig configures event publishing. Empty URL disables it.
type NATSConfig struct {
	URL     string `env:"NATS_URL"`
	Subject string `env:"NATS_SUBJECT" envDefault:"nonpayment.submission.accepted"`
}

// Load reads a .env file when present and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Taxonomy.Source) {
	case "static", "postgres":
	default:
		return fmt.Errorf("TAXONOMY_SOURCE must be static or postgres, got %q", c.Taxonomy.Source)
	}
	if strings.EqualFold(c.Taxonomy.Source, "postgres") && c.Database.URL == "" {
		return fmt.Errorf("TAXONOMY_SOURCE=postgres requires DATABASE_URL")
	}
	if c.Sinks.Timeout <= 0 {
		return fmt.Errorf("SINK_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.Service.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.Service.TimeZone, err)
	}
	return nil
}

// Location returns the configured business time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Service.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
