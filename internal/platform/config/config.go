package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Registry locates and authenticates against the property registry.
type Registry struct {
	BaseURL    string `env:"RESIGHT_API_BASE_URL" envDefault:"https://api.resights.dk/api/v2"`
	APIKey     string `env:"RESIGHT_API_KEY"`
	HealthRoot string `env:"RESIGHT_HEALTH_ROOT"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"RESIGHTS_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"RESIGHTS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// JWTSigningKey enables bearer-JWT auth on the API when set.
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"resights"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"resights-api"`
}

// Audit selects the audit store. Postgres is used when DatabaseURL is set.
type Audit struct {
	DatabaseURL string `env:"DATABASE_URL"`
	MemoryLimit int    `env:"AUDIT_MEMORY_LIMIT" envDefault:"1000"`
}

type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type Tracing struct {
	Exporter     string `env:"TRACING_EXPORTER" envDefault:"none"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

// Config is the full process configuration.
type Config struct {
	Registry Registry
	Server   Server
	Audit    Audit
	Logging  Logging
	Tracing  Tracing
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express. A missing API key is
// not checked here; the registry reports it as a configuration failure.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.Logging.Format)
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("invalid TRACING_EXPORTER %q: want none, stdout or otlp", c.Tracing.Exporter)
	}
	if c.Audit.MemoryLimit < 0 {
		return fmt.Errorf("invalid AUDIT_MEMORY_LIMIT %d: must not be negative", c.Audit.MemoryLimit)
	}
	return nil
}
