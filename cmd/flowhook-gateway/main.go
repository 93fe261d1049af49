// Package main provides the flowhook gateway: the webhook ingestion server
// and the schedule poller.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/flowhook/flowhook/pkg/cmd"
	"github.com/flowhook/flowhook/pkg/dispatch"
	"github.com/flowhook/flowhook/pkg/log"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("gateway")

	command := &cli.Command{
		Name:                  "flowhook-gateway",
		Usage:                 "Receive webhook deliveries and fire matching triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
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
				Name:    "event-bus",
				Usage:   "Event bus backend (kafka, memory)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for kvstore watch registration",
				Sources: cli.EnvVars("REDIS_URL"),
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

			logger.InfoContext(ctx, "Initializing Flowhook gateway")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			redisClient := cmd.NewRedisClient(command.String("redis-url"))
			registry := cmd.NewRegistry(logger, redisClient)
			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			router := dispatch.NewRouter(persistence)
			dispatcher := dispatch.NewDispatcher(logger, router, persistence, registry, eventBus)
			server := dispatch.NewServer(command.Int("port"), logger, dispatcher, persistence)
			scheduler := dispatch.NewScheduler(logger, persistence, eventBus)

			if err := server.Start(ctx); err != nil {
				return err
			}

			if err := scheduler.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			if err := scheduler.Stop(context.Background()); err != nil {
				logger.Error("Failed to stop scheduler", "error", err)
			}

			<-server.Done()

			logger.Info("Flowhook gateway stopped")

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
