// Package persistence provides the data storage abstraction layer for
// triggers, providers, webhooks, recurring tasks and deployments.
package persistence

import (
	"context"

	"github.com/flowhook/flowhook/pkg/models"
)

type Persistence interface {
	TriggerRepository() TriggerRepository
	ProviderRepository() ProviderRepository
	WebhookRepository() WebhookRepository
	RecurringTaskRepository() RecurringTaskRepository
	DeploymentRepository() DeploymentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// TriggerRepository persists trigger records. Delete cascades to the
// trigger's IncomingWebhook and RecurringTask rows.
type TriggerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Trigger, error)
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error)
	GetByProviderAndType(ctx context.Context, providerID, triggerType string) ([]*models.Trigger, error)
	Save(ctx context.Context, trigger *models.Trigger) error
	UpdateState(ctx context.Context, id string, state map[string]any) error
	Delete(ctx context.Context, id string) error
}

type ProviderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Provider, error)
	GetByAlias(ctx context.Context, namespaceID, providerType, alias string) (*models.Provider, error)
	Save(ctx context.Context, provider *models.Provider) error
	Delete(ctx context.Context, id string) error
}

type WebhookRepository interface {
	GetByPath(ctx context.Context, path string) (*models.IncomingWebhook, error)
	GetByTrigger(ctx context.Context, triggerID string) (*models.IncomingWebhook, error)
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.IncomingWebhook, error)
	Save(ctx context.Context, webhook *models.IncomingWebhook) error
	DeleteByTrigger(ctx context.Context, triggerID string) error
}

type RecurringTaskRepository interface {
	GetAll(ctx context.Context) ([]*models.RecurringTask, error)
	GetByTrigger(ctx context.Context, triggerID string) (*models.RecurringTask, error)
	Save(ctx context.Context, task *models.RecurringTask) error
	DeleteByTrigger(ctx context.Context, triggerID string) error
}

// DeploymentRepository persists workflow deployment snapshots.
type DeploymentRepository interface {
	// LatestActive returns the most recently deployed ACTIVE deployment of a
	// workflow, or ErrDeploymentNotFound when the workflow has none.
	LatestActive(ctx context.Context, workflowID string) (*models.WorkflowDeployment, error)
	Save(ctx context.Context, deployment *models.WorkflowDeployment) error
	// DeactivateAll marks every ACTIVE deployment of the workflow INACTIVE.
	// Called right before a new ACTIVE snapshot is saved.
	DeactivateAll(ctx context.Context, workflowID string) error
}
