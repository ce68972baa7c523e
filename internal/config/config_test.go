package config_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2workspace/jwtguard/internal/config"
	"github.com/a2workspace/jwtguard/internal/domain"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	// Auth defaults
	assert.Equal(t, 8080, cfg.Auth.HTTPPort)
	assert.Equal(t, "/api/auth", cfg.Auth.PathPrefix)
	assert.Equal(t, "jwtguard", cfg.Auth.Issuer)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 60*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshWindow)

	// Infrastructure defaults
	assert.Equal(t, domain.DynamoDBTimeout, cfg.DynamoDB.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, domain.RedisTimeout, cfg.Redis.Timeout)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "jwtguard", cfg.OTEL.ServiceName)
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"local returns true", "local", true},
		{"prod returns false", "prod", false},
		{"dev returns false", "dev", false},
		{"empty returns false", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tt.env}

			assert.Equal(t, tt.want, cfg.IsLocal())
		})
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AUTH_USERS_TABLE", "jwtguard-users")
	t.Setenv("AUTH_HMAC_SECRET", strings.Repeat("s", 32))
	t.Setenv("AUTH_PATH_PREFIX", "/auth")
	t.Setenv("AUTH_ACCESS_TTL", "30m")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "jwtguard-users", cfg.Auth.UsersTable)
	assert.Equal(t, "/auth", cfg.Auth.PathPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
}

func TestLoadKeepsUnderscoresInLeafKeys(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AUTH_USERS_TABLE", "jwtguard-users")
	t.Setenv("AUTH_HMAC_SECRET", strings.Repeat("s", 32))
	t.Setenv("AUTH_REFRESH_WINDOW", "168h")
	t.Setenv("AUTH_HTTP_PORT", "9090")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, strings.Repeat("s", 32), cfg.Auth.HMACSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshWindow)
	assert.Equal(t, 9090, cfg.Auth.HTTPPort)
}

func TestValidate_LocalAllowsMissingFields(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
}

func TestValidate_ProdRequiresRedisAddr(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AUTH_USERS_TABLE", "jwtguard-users")
	t.Setenv("AUTH_HMAC_SECRET", strings.Repeat("s", 32))

	_, err := config.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestValidate_ProdRequiresUsersTable(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AUTH_HMAC_SECRET", strings.Repeat("s", 32))

	_, err := config.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "auth.users_table")
}

func TestValidate_ProdRequiresStrongHMACSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AUTH_USERS_TABLE", "jwtguard-users")
	t.Setenv("AUTH_HMAC_SECRET", "too-short")

	_, err := config.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "auth.hmac_secret")
}

func TestValidate_RejectsUnknownAlgorithm(t *testing.T) {
	t.Setenv("AUTH_ALGORITHM", "none")

	_, err := config.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "auth.algorithm")
}

func TestValidate_RejectsRelativePathPrefix(t *testing.T) {
	t.Setenv("AUTH_PATH_PREFIX", "api/auth")

	_, err := config.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "auth.path_prefix")
}
