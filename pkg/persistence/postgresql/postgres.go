// Package postgresql provides PostgreSQL persistence for triggers,
// providers, webhooks, recurring tasks and deployments.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	triggerRepo    *TriggerRepository
	providerRepo   *ProviderRepository
	webhookRepo    *WebhookRepository
	taskRepo       *RecurringTaskRepository
	deploymentRepo *DeploymentRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		triggerRepo:    &TriggerRepository{db: database},
		providerRepo:   &ProviderRepository{db: database},
		webhookRepo:    &WebhookRepository{db: database},
		taskRepo:       &RecurringTaskRepository{db: database},
		deploymentRepo: &DeploymentRepository{db: database},
	}, nil
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) ProviderRepository() persistence.ProviderRepository {
	return p.providerRepo
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return p.webhookRepo
}

func (p *Persistence) RecurringTaskRepository() persistence.RecurringTaskRepository {
	return p.taskRepo
}

func (p *Persistence) DeploymentRepository() persistence.DeploymentRepository {
	return p.deploymentRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
