package domain

import "time"

// Compiled defaults. All of these can be overridden via configuration.
const (
	// Token lifecycle
	AccessTokenLifetime = 60 * time.Minute    // JWT access token validity
	RefreshWindow       = 14 * 24 * time.Hour // Grace period after expiry during which refresh is allowed
	BearerScheme        = "Bearer"            // Authorization header scheme
	MinHMACSecretBytes  = 32                  // Minimum HMAC signing secret length
	DefaultAuthPrefix   = "/api/auth"         // Default HTTP route prefix

	// Timeout contracts
	DynamoDBTimeout = 5 * time.Second // Max time for DynamoDB operations
	RedisTimeout    = 2 * time.Second // Max time for Redis operations

	// Graceful shutdown
	ShutdownDrainDelay      = 3 * time.Second  // Let load balancers propagate endpoint removal
	ShutdownHTTPTimeout     = 10 * time.Second // Max time to drain in-flight HTTP requests
	ShutdownOTELTimeout     = 5 * time.Second  // Max time to flush telemetry on exit
	GracefulShutdownTimeout = 30 * time.Second // Overall budget from signal to exit
)
