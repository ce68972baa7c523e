package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/a2workspace/jwtguard/internal/adapter"
	"github.com/a2workspace/jwtguard/internal/config"
	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/dynamo"
	"github.com/a2workspace/jwtguard/internal/guard"
	"github.com/a2workspace/jwtguard/internal/port"
	redisclient "github.com/a2workspace/jwtguard/internal/redis"
	"github.com/a2workspace/jwtguard/internal/server"
	"github.com/a2workspace/jwtguard/internal/token"
)

// Local development credentials. Seeded into the in-memory user store so
// the service is usable immediately after `go run`.
const (
	devUserID   = "dev-001"
	devUsername = "dev"
	devPassword = "password"
	devKeyID    = "dev-key-001"
)

// setup is the composition root. It wires infrastructure clients, stores,
// the token pipeline and the HTTP surface from config. Local environments
// run entirely in-process; everything else talks to DynamoDB and Redis.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (http.Handler, server.Cleanup, error) {
	clock := domain.RealClock{}

	var (
		userStore guard.UserStore
		blacklist guard.BlacklistStore
		cleanup   server.Cleanup
	)

	if cfg.IsLocal() {
		users := adapter.NewMemoryUserStore()
		if err := seedDevUser(users); err != nil {
			return nil, nil, fmt.Errorf("seed dev user: %w", err)
		}
		logger.InfoContext(ctx, "setup.local_stores", "dev_username", devUsername)

		userStore = users
		blacklist = adapter.NewMemoryBlacklist(clock)
	} else {
		dynamoClient, err := dynamo.NewClient(ctx, dynamo.Config{
			Endpoint: cfg.DynamoDB.Endpoint,
			Region:   cfg.AWS.Region,
			Timeout:  cfg.DynamoDB.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dynamodb client: %w", err)
		}

		redisClient := redisclient.NewClient(redisclient.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			ReadTimeout:  cfg.Redis.Timeout,
			WriteTimeout: cfg.Redis.Timeout,
		})

		userStore = adapter.NewDynamoUserStore(dynamoClient.DB, cfg.Auth.UsersTable, clock)
		blacklist = adapter.NewRedisBlacklist(redisClient.RDB, clock)
		cleanup = func(context.Context) error { return redisClient.Close() }
	}

	keyStore, err := newKeyStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("key store: %w", err)
	}

	issuer := token.NewIssuer(token.IssuerConfig{
		KeyStore:  keyStore,
		AccessTTL: cfg.Auth.AccessTTL,
		Issuer:    cfg.Auth.Issuer,
		Clock:     clock,
	})
	validator := token.NewValidator(token.ValidatorConfig{
		KeyStore:      keyStore,
		Issuer:        cfg.Auth.Issuer,
		RefreshWindow: cfg.Auth.RefreshWindow,
		Clock:         clock,
	})

	g := guard.New(guard.Config{
		UserStore:     userStore,
		Blacklist:     blacklist,
		Issuer:        issuer,
		Validator:     validator,
		RefreshWindow: cfg.Auth.RefreshWindow,
		Clock:         clock,
		Logger:        logger,
	})

	handler := port.NewHandler(port.Config{
		Guard:      g,
		PathPrefix: cfg.Auth.PathPrefix,
		Logger:     logger,
	})

	return handler.Routes(), cleanup, nil
}

// newKeyStore selects the signing backend. HS256 signs with the configured
// shared secret. RS256 loads keys from Secrets Manager and SSM; local
// environments get an ephemeral key pair instead, so the service runs
// without AWS access. Ephemeral keys mean tokens do not survive a restart.
func newKeyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (token.KeyStore, error) {
	switch cfg.Auth.Algorithm {
	case "HS256":
		secret := []byte(cfg.Auth.HMACSecret)
		if len(secret) == 0 && cfg.IsLocal() {
			secret = make([]byte, domain.MinHMACSecretBytes)
			if _, err := rand.Read(secret); err != nil {
				return nil, fmt.Errorf("generate dev secret: %w", err)
			}
			logger.WarnContext(ctx, "setup.ephemeral_hmac_secret")
		}
		return token.NewHMACKeyStore(secret, cfg.Auth.KeyID)

	case "RS256":
		if cfg.IsLocal() {
			key, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				return nil, fmt.Errorf("generate dev key pair: %w", err)
			}
			logger.WarnContext(ctx, "setup.ephemeral_rsa_key", "key_id", devKeyID)
			return token.NewStaticRSAKeyStore(key, devKeyID), nil
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		sm := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		})
		paramStore := awsssm.NewFromConfig(awsCfg, func(o *awsssm.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		})
		return adapter.NewAWSKeyStore(ctx, sm, paramStore, domain.RealClock{})

	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Auth.Algorithm)
	}
}

func seedDevUser(store *adapter.MemoryUserStore) error {
	return store.Add(&adapter.User{
		UserID:   devUserID,
		Username: devUsername,
		Claims:   map[string]any{"role": "admin"},
	}, devPassword)
}
