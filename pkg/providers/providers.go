// Package providers wires the built-in provider integrations into a
// registry.
package providers

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/flowhook/flowhook/pkg/providers/builtin"
	"github.com/flowhook/flowhook/pkg/providers/github"
	"github.com/flowhook/flowhook/pkg/providers/kvstore"
	"github.com/flowhook/flowhook/pkg/providers/schedule"
	"github.com/flowhook/flowhook/pkg/providers/slack"
	"github.com/flowhook/flowhook/pkg/registry"
)

// RegisterAll registers every built-in provider. redisClient may be nil;
// the kvstore provider then skips watch registration.
func RegisterAll(reg *registry.Registry, logger *slog.Logger, redisClient *redis.Client) {
	reg.RegisterProvider(builtin.NewProvider(logger))
	reg.RegisterProvider(schedule.NewProvider(logger))
	reg.RegisterProvider(slack.NewProvider(logger))
	reg.RegisterProvider(github.NewProvider(logger))
	reg.RegisterProvider(kvstore.NewProvider(logger, redisClient))
}
