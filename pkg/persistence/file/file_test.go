package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/persistence/file"
)

func setupStore(t *testing.T) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	return store
}

func TestTriggerRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	trigger := &models.Trigger{
		ID:          uuid.NewString(),
		WorkflowID:  "wf-1",
		ProviderID:  "prov-1",
		TriggerType: "onMessage",
		Input:       map[string]any{"channel_id": "C1"},
	}
	require.NoError(t, store.TriggerRepository().Save(ctx, trigger))

	loaded, err := store.TriggerRepository().GetByID(ctx, trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, "C1", loaded.Input["channel_id"])
	assert.False(t, loaded.CreatedAt.IsZero())

	require.NoError(t, store.TriggerRepository().UpdateState(ctx, trigger.ID, map[string]any{"sub": "s-1"}))

	loaded, err = store.TriggerRepository().GetByID(ctx, trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, "s-1", loaded.State["sub"])

	_, err = store.TriggerRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsTriggerNotFound(err))
}

func TestTriggerDeleteCascades(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	trigger := &models.Trigger{ID: uuid.NewString(), WorkflowID: "wf-1", ProviderID: "prov-1", TriggerType: "cron"}
	require.NoError(t, store.TriggerRepository().Save(ctx, trigger))

	webhook := models.NewIncomingWebhook(trigger.ID)
	require.NoError(t, store.WebhookRepository().Save(ctx, webhook))

	task := &models.RecurringTask{ID: uuid.NewString(), TriggerID: trigger.ID}
	require.NoError(t, store.RecurringTaskRepository().Save(ctx, task))

	require.NoError(t, store.TriggerRepository().Delete(ctx, trigger.ID))

	_, err := store.WebhookRepository().GetByTrigger(ctx, trigger.ID)
	assert.True(t, persistence.IsWebhookNotFound(err))

	_, err = store.RecurringTaskRepository().GetByTrigger(ctx, trigger.ID)
	assert.ErrorIs(t, err, persistence.ErrRecurringTaskNotFound)
}

func TestProviderGetByAlias(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	provider := &models.Provider{
		ID:          uuid.NewString(),
		NamespaceID: "ns-1",
		Type:        models.ProviderTypeGitHub,
		Alias:       "org-main",
	}
	require.NoError(t, store.ProviderRepository().Save(ctx, provider))

	loaded, err := store.ProviderRepository().GetByAlias(ctx, "ns-1", models.ProviderTypeGitHub, "org-main")
	require.NoError(t, err)
	assert.Equal(t, provider.ID, loaded.ID)

	// Same alias in another namespace is a different provider.
	_, err = store.ProviderRepository().GetByAlias(ctx, "ns-2", models.ProviderTypeGitHub, "org-main")
	assert.True(t, persistence.IsProviderNotFound(err))
}

func TestWebhookGetByPath(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	trigger := &models.Trigger{ID: uuid.NewString(), WorkflowID: "wf-1", ProviderID: "prov-1", TriggerType: "webhook"}
	require.NoError(t, store.TriggerRepository().Save(ctx, trigger))

	webhook := models.NewIncomingWebhook(trigger.ID)
	require.NoError(t, store.WebhookRepository().Save(ctx, webhook))

	loaded, err := store.WebhookRepository().GetByPath(ctx, webhook.Path)
	require.NoError(t, err)
	assert.Equal(t, trigger.ID, loaded.TriggerID)

	byWorkflow, err := store.WebhookRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)
}

func TestDeploymentLatestActive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	deployments := store.DeploymentRepository()

	_, err := deployments.LatestActive(ctx, "wf-1")
	assert.True(t, persistence.IsDeploymentNotFound(err))

	older := &models.WorkflowDeployment{
		ID:         uuid.NewString(),
		WorkflowID: "wf-1",
		Status:     models.DeploymentStatusActive,
		DeployedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, deployments.Save(ctx, older))

	newer := &models.WorkflowDeployment{
		ID:         uuid.NewString(),
		WorkflowID: "wf-1",
		Status:     models.DeploymentStatusActive,
		DeployedAt: time.Now().UTC(),
	}
	require.NoError(t, deployments.Save(ctx, newer))

	latest, err := deployments.LatestActive(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	require.NoError(t, deployments.DeactivateAll(ctx, "wf-1"))

	_, err = deployments.LatestActive(ctx, "wf-1")
	assert.True(t, persistence.IsDeploymentNotFound(err))
}

func TestHealthCheck(t *testing.T) {
	store := setupStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))
}
