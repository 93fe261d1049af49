package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/persistence/file"
	"github.com/flowhook/flowhook/pkg/protocol"
	"github.com/flowhook/flowhook/pkg/provision"
	"github.com/flowhook/flowhook/pkg/registry"
	"github.com/flowhook/flowhook/pkg/secrets"
)

type fakeLifecycle struct {
	mu        sync.Mutex
	creates   []protocol.LifecycleRequest
	destroys  []protocol.LifecycleRequest
	createErr error
}

func (f *fakeLifecycle) Create(_ context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.creates = append(f.creates, req)

	return map[string]any{"subscription_id": "sub-" + req.TriggerID}, nil
}

func (f *fakeLifecycle) Destroy(_ context.Context, req protocol.LifecycleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.destroys = append(f.destroys, req)

	return nil
}

func (f *fakeLifecycle) Refresh(_ context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	return req.State, nil
}

func (f *fakeLifecycle) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.creates)
}

func (f *fakeLifecycle) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.destroys)
}

type fakeProvider struct {
	id           string
	triggerTypes []string
	lifecycle    *fakeLifecycle
}

func (p *fakeProvider) ID() string             { return p.id }
func (p *fakeProvider) TriggerTypes() []string { return p.triggerTypes }

func (p *fakeProvider) Lifecycle(string) (protocol.TriggerLifecycle, bool) {
	if p.lifecycle == nil {
		return nil, false
	}

	return p.lifecycle, true
}

func (p *fakeProvider) Matcher(string) (protocol.EventMatcher, bool) { return nil, false }
func (p *fakeProvider) Schema(string) map[string]any                 { return nil }

func newTestReconciler(t *testing.T, providers ...protocol.Provider) (*Reconciler, persistence.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	reg := registry.NewRegistry(logger)
	for _, provider := range providers {
		reg.RegisterProvider(provider)
	}

	provisioner := provision.NewProvisioner(logger, reg, secrets.PlainCodec{}, "http://localhost:9090")

	return NewReconciler(logger, store, reg, provisioner, NewMemoryLocker()), store
}

func kvChange(key string) models.TriggerMetadata {
	return models.TriggerMetadata{
		ProviderType:  models.ProviderTypeKVStore,
		ProviderAlias: "default",
		TriggerType:   "onChange",
		Input:         map[string]any{"key": key},
	}
}

func TestReconcileCreatesWebhookTriggers(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", []models.TriggerMetadata{kvChange("orders")})
	require.NoError(t, err)
	require.Len(t, webhooks, 1)

	assert.Equal(t, http.MethodPost, webhooks[0].Method)
	assert.Contains(t, webhooks[0].Path, "/webhook/")
	assert.Equal(t, models.ProviderTypeKVStore, webhooks[0].ProviderType)
	assert.Equal(t, "default", webhooks[0].ProviderAlias)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "sub-"+triggers[0].ID, triggers[0].State["subscription_id"])

	require.Len(t, lifecycle.creates, 1)
	assert.Equal(t, "http://localhost:9090"+webhooks[0].Path, lifecycle.creates[0].WebhookURL)
}

func TestReconcileCreatesRecurringTaskForScheduleTriggers(t *testing.T) {
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeBuiltin,
		triggerTypes: []string{models.TriggerTypeCron},
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{{
		ProviderType:  models.ProviderTypeBuiltin,
		ProviderAlias: "default",
		TriggerType:   models.TriggerTypeCron,
		Input:         map[string]any{"cron": "0 * * * *"},
	}}

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)
	assert.Empty(t, webhooks)

	tasks, err := store.RecurringTaskRepository().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, triggers[0].ID, tasks[0].TriggerID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{kvChange("orders")}

	first, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)

	second, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, lifecycle.createCount())
	assert.Equal(t, 0, lifecycle.destroyCount())

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestReconcileRemovesStaleTriggers(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()

	_, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", []models.TriggerMetadata{kvChange("orders"), kvChange("users")})
	require.NoError(t, err)

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", []models.TriggerMetadata{kvChange("orders")})
	require.NoError(t, err)
	assert.Len(t, webhooks, 1)

	assert.Equal(t, 1, lifecycle.destroyCount())

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "orders", triggers[0].Input["key"])

	// The stale trigger's webhook row must cascade away with it.
	rows, err := store.WebhookRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReconcileKeepsActiveDeploymentTriggers(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()
	protected := kvChange("orders")

	_, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", []models.TriggerMetadata{protected})
	require.NoError(t, err)

	err = store.DeploymentRepository().Save(ctx, &models.WorkflowDeployment{
		ID:         uuid.NewString(),
		WorkflowID: "wf-1",
		Status:     models.DeploymentStatusActive,
		DeployedAt: time.Now().UTC(),
		TriggerDefinitions: []models.TriggerDefinition{{
			Provider:    models.ProviderRef{Type: protected.ProviderType, Alias: protected.ProviderAlias},
			TriggerType: protected.TriggerType,
			Input:       protected.Input,
		}},
	})
	require.NoError(t, err)

	// A dev-mode sync dropping the trigger must not remove what the live
	// deployment still depends on.
	_, err = reconciler.Reconcile(ctx, "wf-1", "ns-1", nil)
	require.NoError(t, err)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
	assert.Equal(t, 0, lifecycle.destroyCount())
}

func TestReconcileAggregatesPartialFailures(t *testing.T) {
	failing := &fakeLifecycle{createErr: errors.New("slack api unavailable")}
	reconciler, store := newTestReconciler(t,
		&fakeProvider{id: models.ProviderTypeKVStore, triggerTypes: []string{"onChange"}, lifecycle: &fakeLifecycle{}},
		&fakeProvider{id: models.ProviderTypeBuiltin, triggerTypes: []string{"webhook"}, lifecycle: failing},
	)

	ctx := context.Background()
	desired := []models.TriggerMetadata{
		kvChange("orders"),
		{ProviderType: models.ProviderTypeBuiltin, ProviderAlias: "default", TriggerType: models.TriggerTypeWebhook},
	}

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.Error(t, err)

	var syncErr *SyncError

	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "wf-1", syncErr.WorkflowID)
	require.Len(t, syncErr.Failures, 1)
	assert.Equal(t, models.ProviderTypeBuiltin, syncErr.Failures[0].ProviderType)
	assert.Contains(t, syncErr.Failures[0].Error, "slack api unavailable")

	// The healthy trigger still provisioned and both records survive, so a
	// later sync can retry just the failed one.
	assert.Len(t, webhooks, 2)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, triggers, 2)
}

func TestReconcileRetriesFailedProvisioningOnNextSync(t *testing.T) {
	lifecycle := &fakeLifecycle{createErr: errors.New("transient outage")}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{kvChange("orders")}

	_, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.Error(t, err)

	// Recovery: the record kept by the failed sync is replaced by a fresh
	// create once the trigger is re-added after removal, or re-provisioned
	// when the identity is re-synced after being dropped.
	_, err = reconciler.Reconcile(ctx, "wf-1", "ns-1", nil)
	require.NoError(t, err)

	lifecycle.createErr = nil

	_, err = reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.NotEmpty(t, triggers[0].State)
}

func TestReconcileFailsForUnconfiguredProvider(t *testing.T) {
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeSlack,
		triggerTypes: []string{"onMessage"},
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{{
		ProviderType:  models.ProviderTypeSlack,
		ProviderAlias: "workspace-a",
		TriggerType:   "onMessage",
	}}

	_, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)

	var syncErr *SyncError

	require.ErrorAs(t, err, &syncErr)
	require.Len(t, syncErr.Failures, 1)
	assert.Contains(t, syncErr.Failures[0].Error, "not configured")

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestReconcileUsesConfiguredProviderRow(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeSlack,
		triggerTypes: []string{"onMessage"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()
	provider := &models.Provider{
		ID:          uuid.NewString(),
		NamespaceID: "ns-1",
		Type:        models.ProviderTypeSlack,
		Alias:       "workspace-a",
	}
	require.NoError(t, store.ProviderRepository().Save(ctx, provider))

	desired := []models.TriggerMetadata{{
		ProviderType:  models.ProviderTypeSlack,
		ProviderAlias: "workspace-a",
		TriggerType:   "onMessage",
		Input:         map[string]any{"channel_id": "C123"},
	}}

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)
	require.Len(t, webhooks, 1)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, provider.ID, triggers[0].ProviderID)
}

func TestReconcileIgnoresIncompleteDesiredEntries(t *testing.T) {
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{
		{ProviderType: "", ProviderAlias: "default", TriggerType: "onChange"},
		{ProviderType: models.ProviderTypeKVStore, ProviderAlias: "", TriggerType: "onChange"},
	}

	webhooks, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)
	assert.Empty(t, webhooks)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestReconcileDeduplicatesDesiredEntries(t *testing.T) {
	lifecycle := &fakeLifecycle{}
	reconciler, store := newTestReconciler(t, &fakeProvider{
		id:           models.ProviderTypeKVStore,
		triggerTypes: []string{"onChange"},
		lifecycle:    lifecycle,
	})

	ctx := context.Background()
	desired := []models.TriggerMetadata{kvChange("orders"), kvChange("orders")}

	_, err := reconciler.Reconcile(ctx, "wf-1", "ns-1", desired)
	require.NoError(t, err)

	triggers, err := store.TriggerRepository().GetByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
	assert.Equal(t, 1, lifecycle.createCount())
}
