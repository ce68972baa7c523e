// Package config provides configuration loading using koanf with
// env → compiled defaults precedence.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/a2workspace/jwtguard/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Auth service configuration
	Auth AuthConfig `koanf:"auth"`

	// Infrastructure configurations
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Redis    RedisConfig    `koanf:"redis"`
	AWS      AWSConfig      `koanf:"aws"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// AuthConfig holds token issuance and HTTP surface configuration.
type AuthConfig struct {
	HTTPPort   int    `koanf:"http_port"`
	PathPrefix string `koanf:"path_prefix"`

	// Issuer is the iss claim stamped on and required of every token.
	Issuer string `koanf:"issuer"`

	// Algorithm selects the signing method: "HS256" or "RS256".
	// HS256 signs with HMACSecret; RS256 loads keys from AWS
	// (Secrets Manager + SSM) outside local environments.
	Algorithm  string `koanf:"algorithm"`
	HMACSecret string `koanf:"hmac_secret"`
	KeyID      string `koanf:"key_id"`

	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshWindow time.Duration `koanf:"refresh_window"`

	// UsersTable is the DynamoDB table holding accounts. Required outside
	// local environments; local uses the in-memory store.
	UsersTable string `koanf:"users_table"`
}

// DynamoDBConfig holds DynamoDB configuration.
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Timeout  time.Duration `koanf:"timeout"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		Auth: AuthConfig{
			HTTPPort:      8080,
			PathPrefix:    domain.DefaultAuthPrefix,
			Issuer:        "jwtguard",
			Algorithm:     "HS256",
			KeyID:         "primary",
			AccessTTL:     domain.AccessTokenLifetime,
			RefreshWindow: domain.RefreshWindow,
		},

		DynamoDB: DynamoDBConfig{
			Timeout: domain.DynamoDBTimeout,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		OTEL: OTELConfig{
			ServiceName: "jwtguard",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Required keys missing cause startup failure; optional keys fall back to
// defaults.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	// Environment variable names map to nested keys: AUTH_HTTP_PORT →
	// auth.http_port. No prefix is required.
	err := k.Load(env.Provider("", ".", envToKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envSections are the nested config groups addressable from the
// environment. Only the section prefix becomes a key separator; the
// remainder keeps its underscores, so AUTH_HMAC_SECRET addresses
// auth.hmac_secret rather than auth.hmac.secret.
var envSections = []string{"AUTH_", "REDIS_", "DYNAMODB_", "AWS_", "OTEL_"}

// envToKey maps an environment variable name to its koanf key.
// Names outside a known section are top-level keys (LOG_LEVEL → log_level).
func envToKey(s string) string {
	for _, section := range envSections {
		if strings.HasPrefix(s, section) {
			return strings.ToLower(strings.TrimSuffix(section, "_")) + "." + strings.ToLower(strings.TrimPrefix(s, section))
		}
	}
	return strings.ToLower(s)
}

// validate checks that the configuration is internally consistent and that
// required keys are present for the target environment.
func validate(cfg *Config) error {
	switch cfg.Auth.Algorithm {
	case "HS256":
		if !cfg.IsLocal() && len(cfg.Auth.HMACSecret) < domain.MinHMACSecretBytes {
			return fmt.Errorf("%w: auth.hmac_secret (minimum %d bytes)",
				domain.ErrConfigRequired, domain.MinHMACSecretBytes)
		}
	case "RS256":
		// Key material comes from AWS or is generated locally.
	default:
		return fmt.Errorf("%w: auth.algorithm must be HS256 or RS256, got %q",
			domain.ErrConfigRequired, cfg.Auth.Algorithm)
	}

	if !strings.HasPrefix(cfg.Auth.PathPrefix, "/") {
		return fmt.Errorf("%w: auth.path_prefix must start with /", domain.ErrConfigRequired)
	}
	if cfg.Auth.AccessTTL <= 0 {
		return fmt.Errorf("%w: auth.access_ttl must be positive", domain.ErrConfigRequired)
	}
	if cfg.Auth.RefreshWindow < 0 {
		return fmt.Errorf("%w: auth.refresh_window must not be negative", domain.ErrConfigRequired)
	}

	if cfg.IsLocal() {
		return nil
	}

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}
	if cfg.Auth.UsersTable == "" {
		return fmt.Errorf("%w: auth.users_table", domain.ErrConfigRequired)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
