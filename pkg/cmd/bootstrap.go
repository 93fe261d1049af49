package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/flowhook/flowhook/pkg/providers"
	"github.com/flowhook/flowhook/pkg/reconcile"
	"github.com/flowhook/flowhook/pkg/registry"
	"github.com/flowhook/flowhook/pkg/secrets"
)

// NewRedisClient connects to redis when a URL is configured. Returns nil
// otherwise; callers fall back to in-process alternatives.
func NewRedisClient(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	return redis.NewClient(options)
}

// NewRegistry builds a provider registry with every built-in provider
// registered.
func NewRegistry(logger *slog.Logger, redisClient *redis.Client) *registry.Registry {
	reg := registry.NewRegistry(logger)
	providers.RegisterAll(reg, logger, redisClient)

	return reg
}

// NewSecretsCodec returns the AES codec when a 32-byte key is configured
// and the plaintext codec otherwise. The plaintext codec is only suitable
// for development.
func NewSecretsCodec(logger *slog.Logger, key string) secrets.Codec {
	if key == "" {
		logger.Warn("SECRETS_KEY is not set, provider config is stored unencrypted")

		return secrets.PlainCodec{}
	}

	codec, err := secrets.NewAESCodec([]byte(key))
	if err != nil {
		panic(fmt.Errorf("invalid secrets key: %w", err))
	}

	return codec
}

// NewLocker serializes reconciliations through redis when available and
// in-process otherwise.
func NewLocker(redisClient *redis.Client) reconcile.Locker {
	if redisClient != nil {
		return reconcile.NewRedisLocker(redisClient)
	}

	return reconcile.NewMemoryLocker()
}
