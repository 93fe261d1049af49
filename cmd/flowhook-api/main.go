package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowhook/flowhook/pkg/cmd"
	"github.com/flowhook/flowhook/pkg/log"
	"github.com/flowhook/flowhook/pkg/provision"
	"github.com/flowhook/flowhook/pkg/reconcile"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowhook-api",
		Usage:                 "Manage trigger reconciliation for workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "public-base-url",
				Usage:    "Public base URL webhook paths are served under",
				Required: true,
				Sources:  cli.EnvVars("PUBLIC_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for reconcile locking and kvstore watches",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "secrets-key",
				Usage:   "32-byte key sealing provider credentials",
				Sources: cli.EnvVars("SECRETS_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowhook API")

			redisClient := cmd.NewRedisClient(command.String("redis-url"))
			registry := cmd.NewRegistry(logger, redisClient)
			codec := cmd.NewSecretsCodec(logger, command.String("secrets-key"))
			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			provisioner := provision.NewProvisioner(logger, registry, codec, command.String("public-base-url"))
			reconciler := reconcile.NewReconciler(logger, persistence, registry, provisioner, cmd.NewLocker(redisClient))

			api := NewAPI(logger, persistence, reconciler, provisioner, codec)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
