package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
)

func marshalJSON(value any) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON column: %w", err)
	}

	return data, nil
}

func unmarshalMap(data []byte, out *map[string]any) error {
	if len(data) == 0 || string(data) == "null" {
		*out = nil

		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON column: %w", err)
	}

	return nil
}

// TriggerRepository implements persistence.TriggerRepository.
type TriggerRepository struct {
	db *sql.DB
}

const triggerColumns = "id, workflow_id, provider_id, trigger_type, input, state, created_at, updated_at"

func scanTrigger(row interface{ Scan(...any) error }) (*models.Trigger, error) {
	var (
		trigger models.Trigger
		input   []byte
		state   []byte
	)

	err := row.Scan(&trigger.ID, &trigger.WorkflowID, &trigger.ProviderID, &trigger.TriggerType,
		&input, &state, &trigger.CreatedAt, &trigger.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalMap(input, &trigger.Input); err != nil {
		return nil, err
	}

	if err := unmarshalMap(state, &trigger.State); err != nil {
		return nil, err
	}

	return &trigger, nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.Trigger, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+triggerColumns+" FROM triggers WHERE id = $1", id)

	trigger, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTriggerNotFound
	}

	if err != nil {
		return nil, persistence.NewTriggerError("GetByID", id, err)
	}

	return trigger, nil
}

func (r *TriggerRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error) {
	return r.query(ctx, "SELECT "+triggerColumns+" FROM triggers WHERE workflow_id = $1 ORDER BY created_at", workflowID)
}

func (r *TriggerRepository) GetByProviderAndType(ctx context.Context, providerID, triggerType string) ([]*models.Trigger, error) {
	return r.query(ctx,
		"SELECT "+triggerColumns+" FROM triggers WHERE provider_id = $1 AND trigger_type = $2 ORDER BY created_at",
		providerID, triggerType)
}

func (r *TriggerRepository) query(ctx context.Context, query string, args ...any) ([]*models.Trigger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}
	defer rows.Close()

	triggers := make([]*models.Trigger, 0)

	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger row: %w", err)
		}

		triggers = append(triggers, trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger rows: %w", err)
	}

	return triggers, nil
}

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.Trigger) error {
	now := time.Now()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	input, err := marshalJSON(trigger.Input)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, err)
	}

	state, err := marshalJSON(trigger.State)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triggers (id, workflow_id, provider_id, trigger_type, input, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET input = $5, state = $6, updated_at = $8`,
		trigger.ID, trigger.WorkflowID, trigger.ProviderID, trigger.TriggerType,
		input, state, trigger.CreatedAt, trigger.UpdatedAt)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) UpdateState(ctx context.Context, id string, state map[string]any) error {
	encoded, err := marshalJSON(state)
	if err != nil {
		return persistence.NewTriggerError("UpdateState", id, err)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE triggers SET state = $1, updated_at = NOW() WHERE id = $2", encoded, id)
	if err != nil {
		return persistence.NewTriggerError("UpdateState", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTriggerError("UpdateState", id, err)
	}

	if affected == 0 {
		return persistence.ErrTriggerNotFound
	}

	return nil
}

func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM triggers WHERE id = $1", id)
	if err != nil {
		return persistence.NewTriggerError("Delete", id, err)
	}

	return nil
}

// ProviderRepository implements persistence.ProviderRepository.
type ProviderRepository struct {
	db *sql.DB
}

const providerColumns = "id, namespace_id, type, alias, encrypted_config"

func scanProvider(row interface{ Scan(...any) error }) (*models.Provider, error) {
	var provider models.Provider

	err := row.Scan(&provider.ID, &provider.NamespaceID, &provider.Type, &provider.Alias, &provider.EncryptedConfig)
	if err != nil {
		return nil, err
	}

	return &provider, nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+providerColumns+" FROM providers WHERE id = $1", id)

	provider, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrProviderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s: %w", id, err)
	}

	return provider, nil
}

func (r *ProviderRepository) GetByAlias(ctx context.Context, namespaceID, providerType, alias string) (*models.Provider, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+providerColumns+" FROM providers WHERE namespace_id = $1 AND type = $2 AND alias = $3",
		namespaceID, providerType, alias)

	provider, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrProviderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s:%s: %w", providerType, alias, err)
	}

	return provider, nil
}

func (r *ProviderRepository) Save(ctx context.Context, provider *models.Provider) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO providers (id, namespace_id, type, alias, encrypted_config)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET encrypted_config = $5`,
		provider.ID, provider.NamespaceID, provider.Type, provider.Alias, provider.EncryptedConfig)
	if err != nil {
		return fmt.Errorf("failed to save provider %s: %w", provider.ID, err)
	}

	return nil
}

func (r *ProviderRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM providers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider %s: %w", id, err)
	}

	return nil
}

// WebhookRepository implements persistence.WebhookRepository.
type WebhookRepository struct {
	db *sql.DB
}

const webhookColumns = "id, trigger_id, path, method"

func scanWebhook(row interface{ Scan(...any) error }) (*models.IncomingWebhook, error) {
	var webhook models.IncomingWebhook

	err := row.Scan(&webhook.ID, &webhook.TriggerID, &webhook.Path, &webhook.Method)
	if err != nil {
		return nil, err
	}

	return &webhook, nil
}

func (r *WebhookRepository) GetByPath(ctx context.Context, path string) (*models.IncomingWebhook, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+webhookColumns+" FROM incoming_webhooks WHERE path = $1", path)

	webhook, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWebhookNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get webhook by path: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) GetByTrigger(ctx context.Context, triggerID string) (*models.IncomingWebhook, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+webhookColumns+" FROM incoming_webhooks WHERE trigger_id = $1", triggerID)

	webhook, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWebhookNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get webhook for trigger %s: %w", triggerID, err)
	}

	return webhook, nil
}

func (r *WebhookRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.IncomingWebhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.id, w.trigger_id, w.path, w.method
		FROM incoming_webhooks w
		JOIN triggers t ON t.id = w.trigger_id
		WHERE t.workflow_id = $1`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := make([]*models.IncomingWebhook, 0)

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook row: %w", err)
		}

		webhooks = append(webhooks, webhook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook rows: %w", err)
	}

	return webhooks, nil
}

func (r *WebhookRepository) Save(ctx context.Context, webhook *models.IncomingWebhook) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO incoming_webhooks (id, trigger_id, path, method)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		webhook.ID, webhook.TriggerID, webhook.Path, webhook.Method)
	if err != nil {
		return fmt.Errorf("failed to save webhook %s: %w", webhook.ID, err)
	}

	return nil
}

func (r *WebhookRepository) DeleteByTrigger(ctx context.Context, triggerID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM incoming_webhooks WHERE trigger_id = $1", triggerID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook for trigger %s: %w", triggerID, err)
	}

	return nil
}

// RecurringTaskRepository implements persistence.RecurringTaskRepository.
type RecurringTaskRepository struct {
	db *sql.DB
}

func (r *RecurringTaskRepository) GetAll(ctx context.Context) ([]*models.RecurringTask, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, trigger_id FROM recurring_tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.RecurringTask, 0)

	for rows.Next() {
		var task models.RecurringTask
		if err := rows.Scan(&task.ID, &task.TriggerID); err != nil {
			return nil, fmt.Errorf("failed to scan recurring task row: %w", err)
		}

		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recurring task rows: %w", err)
	}

	return tasks, nil
}

func (r *RecurringTaskRepository) GetByTrigger(ctx context.Context, triggerID string) (*models.RecurringTask, error) {
	var task models.RecurringTask

	err := r.db.QueryRowContext(ctx,
		"SELECT id, trigger_id FROM recurring_tasks WHERE trigger_id = $1", triggerID).
		Scan(&task.ID, &task.TriggerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrRecurringTaskNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get recurring task for trigger %s: %w", triggerID, err)
	}

	return &task, nil
}

func (r *RecurringTaskRepository) Save(ctx context.Context, task *models.RecurringTask) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_tasks (id, trigger_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, task.ID, task.TriggerID)
	if err != nil {
		return fmt.Errorf("failed to save recurring task %s: %w", task.ID, err)
	}

	return nil
}

func (r *RecurringTaskRepository) DeleteByTrigger(ctx context.Context, triggerID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM recurring_tasks WHERE trigger_id = $1", triggerID)
	if err != nil {
		return fmt.Errorf("failed to delete recurring task for trigger %s: %w", triggerID, err)
	}

	return nil
}

// DeploymentRepository implements persistence.DeploymentRepository.
type DeploymentRepository struct {
	db *sql.DB
}

func (r *DeploymentRepository) LatestActive(ctx context.Context, workflowID string) (*models.WorkflowDeployment, error) {
	var (
		deployment  models.WorkflowDeployment
		definitions []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, status, deployed_at, trigger_definitions
		FROM workflow_deployments
		WHERE workflow_id = $1 AND status = $2
		ORDER BY deployed_at DESC
		LIMIT 1`, workflowID, models.DeploymentStatusActive).
		Scan(&deployment.ID, &deployment.WorkflowID, &deployment.Status, &deployment.DeployedAt, &definitions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrDeploymentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get active deployment for workflow %s: %w", workflowID, err)
	}

	if err := json.Unmarshal(definitions, &deployment.TriggerDefinitions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment trigger definitions: %w", err)
	}

	return &deployment, nil
}

func (r *DeploymentRepository) Save(ctx context.Context, deployment *models.WorkflowDeployment) error {
	definitions, err := marshalJSON(deployment.TriggerDefinitions)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment trigger definitions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_deployments (id, workflow_id, status, deployed_at, trigger_definitions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = $3`,
		deployment.ID, deployment.WorkflowID, deployment.Status, deployment.DeployedAt, definitions)
	if err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", deployment.ID, err)
	}

	return nil
}

func (r *DeploymentRepository) DeactivateAll(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE workflow_deployments SET status = $1 WHERE workflow_id = $2 AND status = $3",
		models.DeploymentStatusInactive, workflowID, models.DeploymentStatusActive)
	if err != nil {
		return fmt.Errorf("failed to deactivate deployments for workflow %s: %w", workflowID, err)
	}

	return nil
}
