package file

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
)

// TriggerRepository implements persistence.TriggerRepository on files.
type TriggerRepository struct {
	persistence *Persistence
}

func (r *TriggerRepository) GetByID(_ context.Context, id string) (*models.Trigger, error) {
	var trigger models.Trigger
	if err := r.persistence.readRecord(triggersDir, id, &trigger, persistence.ErrTriggerNotFound); err != nil {
		return nil, err
	}

	return &trigger, nil
}

func (r *TriggerRepository) GetByWorkflow(_ context.Context, workflowID string) ([]*models.Trigger, error) {
	return r.filter(func(t *models.Trigger) bool {
		return t.WorkflowID == workflowID
	})
}

func (r *TriggerRepository) GetByProviderAndType(_ context.Context, providerID, triggerType string) ([]*models.Trigger, error) {
	return r.filter(func(t *models.Trigger) bool {
		return t.ProviderID == providerID && t.TriggerType == triggerType
	})
}

func (r *TriggerRepository) filter(keep func(*models.Trigger) bool) ([]*models.Trigger, error) {
	triggers := make([]*models.Trigger, 0)

	err := r.persistence.eachRecord(triggersDir, func(data []byte) error {
		var trigger models.Trigger
		if err := json.Unmarshal(data, &trigger); err != nil {
			return err
		}

		if keep(&trigger) {
			triggers = append(triggers, &trigger)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return triggers, nil
}

func (r *TriggerRepository) Save(_ context.Context, trigger *models.Trigger) error {
	now := time.Now()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	return r.persistence.writeRecord(triggersDir, trigger.ID, trigger)
}

func (r *TriggerRepository) UpdateState(ctx context.Context, id string, state map[string]any) error {
	trigger, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	trigger.State = state

	return r.Save(ctx, trigger)
}

// Delete removes the trigger and cascades to its webhook and recurring task
// records, matching the foreign-key cleanup of the SQL implementation.
func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	if err := r.persistence.webhookRepo.DeleteByTrigger(ctx, id); err != nil {
		return err
	}

	if err := r.persistence.taskRepo.DeleteByTrigger(ctx, id); err != nil {
		return err
	}

	return r.persistence.deleteRecord(triggersDir, id)
}

// ProviderRepository implements persistence.ProviderRepository on files.
type ProviderRepository struct {
	persistence *Persistence
}

func (r *ProviderRepository) GetByID(_ context.Context, id string) (*models.Provider, error) {
	var provider models.Provider
	if err := r.persistence.readRecord(providersDir, id, &provider, persistence.ErrProviderNotFound); err != nil {
		return nil, err
	}

	return &provider, nil
}

func (r *ProviderRepository) GetByAlias(_ context.Context, namespaceID, providerType, alias string) (*models.Provider, error) {
	var found *models.Provider

	err := r.persistence.eachRecord(providersDir, func(data []byte) error {
		var provider models.Provider
		if err := json.Unmarshal(data, &provider); err != nil {
			return err
		}

		if provider.NamespaceID == namespaceID && provider.Type == providerType && provider.Alias == alias {
			found = &provider
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrProviderNotFound
	}

	return found, nil
}

func (r *ProviderRepository) Save(_ context.Context, provider *models.Provider) error {
	return r.persistence.writeRecord(providersDir, provider.ID, provider)
}

func (r *ProviderRepository) Delete(_ context.Context, id string) error {
	return r.persistence.deleteRecord(providersDir, id)
}

// WebhookRepository implements persistence.WebhookRepository on files.
type WebhookRepository struct {
	persistence *Persistence
}

func (r *WebhookRepository) GetByPath(_ context.Context, path string) (*models.IncomingWebhook, error) {
	return r.find(func(w *models.IncomingWebhook) bool { return w.Path == path })
}

func (r *WebhookRepository) GetByTrigger(_ context.Context, triggerID string) (*models.IncomingWebhook, error) {
	return r.find(func(w *models.IncomingWebhook) bool { return w.TriggerID == triggerID })
}

func (r *WebhookRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.IncomingWebhook, error) {
	triggers, err := r.persistence.triggerRepo.GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	triggerIDs := make(map[string]bool, len(triggers))
	for _, trigger := range triggers {
		triggerIDs[trigger.ID] = true
	}

	webhooks := make([]*models.IncomingWebhook, 0)

	err = r.persistence.eachRecord(webhooksDir, func(data []byte) error {
		var webhook models.IncomingWebhook
		if err := json.Unmarshal(data, &webhook); err != nil {
			return err
		}

		if triggerIDs[webhook.TriggerID] {
			webhooks = append(webhooks, &webhook)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return webhooks, nil
}

func (r *WebhookRepository) find(keep func(*models.IncomingWebhook) bool) (*models.IncomingWebhook, error) {
	var found *models.IncomingWebhook

	err := r.persistence.eachRecord(webhooksDir, func(data []byte) error {
		var webhook models.IncomingWebhook
		if err := json.Unmarshal(data, &webhook); err != nil {
			return err
		}

		if keep(&webhook) {
			found = &webhook
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrWebhookNotFound
	}

	return found, nil
}

func (r *WebhookRepository) Save(_ context.Context, webhook *models.IncomingWebhook) error {
	return r.persistence.writeRecord(webhooksDir, webhook.ID, webhook)
}

func (r *WebhookRepository) DeleteByTrigger(ctx context.Context, triggerID string) error {
	webhook, err := r.GetByTrigger(ctx, triggerID)
	if persistence.IsWebhookNotFound(err) {
		return nil
	}

	if err != nil {
		return err
	}

	return r.persistence.deleteRecord(webhooksDir, webhook.ID)
}

// RecurringTaskRepository implements persistence.RecurringTaskRepository on files.
type RecurringTaskRepository struct {
	persistence *Persistence
}

func (r *RecurringTaskRepository) GetAll(_ context.Context) ([]*models.RecurringTask, error) {
	tasks := make([]*models.RecurringTask, 0)

	err := r.persistence.eachRecord(tasksDir, func(data []byte) error {
		var task models.RecurringTask
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}

		tasks = append(tasks, &task)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *RecurringTaskRepository) GetByTrigger(ctx context.Context, triggerID string) (*models.RecurringTask, error) {
	tasks, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		if task.TriggerID == triggerID {
			return task, nil
		}
	}

	return nil, persistence.ErrRecurringTaskNotFound
}

func (r *RecurringTaskRepository) Save(_ context.Context, task *models.RecurringTask) error {
	return r.persistence.writeRecord(tasksDir, task.ID, task)
}

func (r *RecurringTaskRepository) DeleteByTrigger(ctx context.Context, triggerID string) error {
	task, err := r.GetByTrigger(ctx, triggerID)
	if err != nil {
		if err == persistence.ErrRecurringTaskNotFound {
			return nil
		}

		return err
	}

	return r.persistence.deleteRecord(tasksDir, task.ID)
}

// DeploymentRepository implements persistence.DeploymentRepository on files.
type DeploymentRepository struct {
	persistence *Persistence
}

func (r *DeploymentRepository) LatestActive(_ context.Context, workflowID string) (*models.WorkflowDeployment, error) {
	var latest *models.WorkflowDeployment

	err := r.persistence.eachRecord(deploymentsDir, func(data []byte) error {
		var deployment models.WorkflowDeployment
		if err := json.Unmarshal(data, &deployment); err != nil {
			return err
		}

		if deployment.WorkflowID != workflowID || deployment.Status != models.DeploymentStatusActive {
			return nil
		}

		if latest == nil || deployment.DeployedAt.After(latest.DeployedAt) {
			latest = &deployment
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if latest == nil {
		return nil, persistence.ErrDeploymentNotFound
	}

	return latest, nil
}

func (r *DeploymentRepository) Save(_ context.Context, deployment *models.WorkflowDeployment) error {
	return r.persistence.writeRecord(deploymentsDir, deployment.ID, deployment)
}

func (r *DeploymentRepository) DeactivateAll(_ context.Context, workflowID string) error {
	updates := make([]*models.WorkflowDeployment, 0)

	err := r.persistence.eachRecord(deploymentsDir, func(data []byte) error {
		var deployment models.WorkflowDeployment
		if err := json.Unmarshal(data, &deployment); err != nil {
			return err
		}

		if deployment.WorkflowID == workflowID && deployment.Status == models.DeploymentStatusActive {
			deployment.Status = models.DeploymentStatusInactive
			updates = append(updates, &deployment)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, deployment := range updates {
		if err := r.persistence.writeRecord(deploymentsDir, deployment.ID, deployment); err != nil {
			return err
		}
	}

	return nil
}
