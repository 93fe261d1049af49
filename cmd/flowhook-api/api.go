// Package main provides the flowhook management API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/provision"
	"github.com/flowhook/flowhook/pkg/reconcile"
	"github.com/flowhook/flowhook/pkg/secrets"
	"github.com/flowhook/flowhook/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	reconciler  *reconcile.Reconciler
	provisioner *provision.Provisioner
	codec       secrets.Codec
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	reconciler *reconcile.Reconciler,
	provisioner *provision.Provisioner,
	codec secrets.Codec,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		reconciler:  reconciler,
		provisioner: provisioner,
		codec:       codec,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.reconciler, a.provisioner, a.codec, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowhook API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
