package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabasePath string `env:"DB_PATH" envDefault:"./familytasks.db"`

	// Tokens are issued by the external auth service and signed with a shared secret.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	AuthJWTIssuer string `env:"AUTH_JWT_ISSUER"`

	// Empty keeps change notifications in-process.
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"familytasks:changes"`

	SESRegion    string `env:"SES_REGION" envDefault:"us-east-1"`
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"Family Tasks"`
	AppBaseURL   string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	DigestSchedule string `env:"DIGEST_SCHEDULE" envDefault:"0 7 * * *"`
	DigestTimezone string `env:"DIGEST_TIMEZONE" envDefault:"UTC"`

	// Requests per user (or per client IP on /healthz) per window; 0 disables.
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"json"`
}

// Load reads configuration from environment variables (optionally .env)
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations the env tags cannot express.
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "postgres", "postgresql", "pgx", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database type %q", c.DatabaseType)
		}
	}
	if c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(c.DigestTimezone); err != nil {
		return fmt.Errorf("invalid DIGEST_TIMEZONE %q: %w", c.DigestTimezone, err)
	}
	return nil
}

// DigestLocation returns the zone the daily digest is computed in
func (c *Config) DigestLocation() *time.Location {
	loc, err := time.LoadLocation(c.DigestTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Address returns the HTTP listen address
func (c *Config) Address() string {
	return ":" + c.ServerPort
}
