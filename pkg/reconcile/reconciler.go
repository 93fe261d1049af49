package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/otelhelper"
	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/provision"
	"github.com/flowhook/flowhook/pkg/registry"
)

// Reconciler diffs a workflow's desired trigger set against its persisted
// trigger records and applies additions and removals, provisioning or
// tearing down external resources along the way. Reconcile is idempotent:
// running it twice with the same desired set leaves no extra work for the
// second run.
type Reconciler struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	provisioner *provision.Provisioner
	locker      Locker
}

func NewReconciler(
	logger *slog.Logger,
	persistence persistence.Persistence,
	reg *registry.Registry,
	provisioner *provision.Provisioner,
	locker Locker,
) *Reconciler {
	return &Reconciler{
		logger:      logger.With("module", "reconciler"),
		persistence: persistence,
		registry:    reg,
		provisioner: provisioner,
		locker:      locker,
	}
}

// existingTrigger pairs a persisted trigger with its resolved provider row.
type existingTrigger struct {
	trigger  *models.Trigger
	provider *models.Provider
}

// Reconcile brings the workflow's persisted triggers in line with desired.
// It returns the workflow's live webhook endpoints and, when one or more
// triggers failed to provision, a *SyncError aggregating the failures.
// Failed triggers keep their records so a later sync can retry them, and a
// partial failure never blocks the remaining triggers.
func (r *Reconciler) Reconcile(ctx context.Context, workflowID, namespaceID string, desired []models.TriggerMetadata) ([]models.WebhookInfo, error) {
	ctx, span := otelhelper.StartReconcileSpan(ctx, workflowID)
	defer span.End()

	release, err := r.locker.Acquire(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock workflow %s for reconciliation: %w", workflowID, err)
	}
	defer release()

	desired = filterDesired(desired)

	providersByRef, failures := r.resolveProviders(ctx, namespaceID, desired)

	existing, err := r.loadExisting(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	desiredIdentities := make(map[string]bool, len(desired))
	for _, meta := range desired {
		desiredIdentities[meta.Identity()] = true
	}

	protected, err := ProtectedIdentities(ctx, r.persistence.DeploymentRepository(), workflowID)
	if err != nil {
		return nil, err
	}

	r.removeStale(ctx, existing, desiredIdentities, protected)

	failures = append(failures, r.addMissing(ctx, workflowID, desired, existing, providersByRef)...)

	webhooks, err := r.collectWebhooks(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if len(failures) > 0 {
		syncErr := &SyncError{WorkflowID: workflowID, Failures: failures}
		otelhelper.SetError(span, syncErr)

		return webhooks, syncErr
	}

	return webhooks, nil
}

// filterDesired drops entries missing a provider reference. The remaining
// fields are validated per provider schema during addition.
func filterDesired(desired []models.TriggerMetadata) []models.TriggerMetadata {
	filtered := make([]models.TriggerMetadata, 0, len(desired))

	for _, meta := range desired {
		if meta.ProviderType == "" || meta.ProviderAlias == "" || meta.TriggerType == "" {
			continue
		}

		filtered = append(filtered, meta)
	}

	return filtered
}

// resolveProviders looks up the provider row for every distinct (type,
// alias) pair in the desired set, auto-creating rows for zero-setup
// provider types. Pairs that cannot be resolved yield one failure per
// desired trigger referencing them.
func (r *Reconciler) resolveProviders(ctx context.Context, namespaceID string, desired []models.TriggerMetadata) (map[string]*models.Provider, []TriggerFailure) {
	providers := r.persistence.ProviderRepository()
	resolved := make(map[string]*models.Provider)
	missing := make(map[string]error)

	var failures []TriggerFailure

	for _, meta := range desired {
		ref := meta.ProviderType + ":" + meta.ProviderAlias
		if _, ok := resolved[ref]; ok {
			continue
		}

		if prevErr, ok := missing[ref]; ok {
			failures = append(failures, newFailure(meta, prevErr))

			continue
		}

		provider, err := providers.GetByAlias(ctx, namespaceID, meta.ProviderType, meta.ProviderAlias)
		if err == nil {
			resolved[ref] = provider

			continue
		}

		if !persistence.IsProviderNotFound(err) {
			missing[ref] = err
			failures = append(failures, newFailure(meta, err))

			continue
		}

		if !models.IsZeroSetupProvider(meta.ProviderType) {
			missing[ref] = fmt.Errorf("provider %s is not configured", ref)
			failures = append(failures, newFailure(meta, missing[ref]))

			continue
		}

		provider = &models.Provider{
			ID:          uuid.NewString(),
			NamespaceID: namespaceID,
			Type:        meta.ProviderType,
			Alias:       meta.ProviderAlias,
		}

		if err := providers.Save(ctx, provider); err != nil {
			missing[ref] = fmt.Errorf("failed to auto-create provider %s: %w", ref, err)
			failures = append(failures, newFailure(meta, missing[ref]))

			continue
		}

		r.logger.Info("Auto-created zero-setup provider", "provider_type", meta.ProviderType, "provider_alias", meta.ProviderAlias)
		resolved[ref] = provider
	}

	return resolved, failures
}

// loadExisting fetches the workflow's persisted triggers together with their
// provider rows. Triggers whose provider row is gone cannot be identified
// and are left untouched.
func (r *Reconciler) loadExisting(ctx context.Context, workflowID string) ([]existingTrigger, error) {
	triggers, err := r.persistence.TriggerRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load triggers for workflow %s: %w", workflowID, err)
	}

	providerCache := make(map[string]*models.Provider)
	existing := make([]existingTrigger, 0, len(triggers))

	for _, trigger := range triggers {
		provider, ok := providerCache[trigger.ProviderID]
		if !ok {
			provider, err = r.persistence.ProviderRepository().GetByID(ctx, trigger.ProviderID)
			if err != nil {
				r.logger.Warn("Skipping trigger with unresolvable provider",
					"trigger_id", trigger.ID,
					"provider_id", trigger.ProviderID,
					"error", err)

				continue
			}

			providerCache[trigger.ProviderID] = provider
		}

		existing = append(existing, existingTrigger{trigger: trigger, provider: provider})
	}

	return existing, nil
}

// removeStale tears down and deletes persisted triggers whose identity is
// neither desired nor protected by the active deployment. Destroy is
// best-effort and the record is deleted regardless, so removal is never a
// sync failure.
func (r *Reconciler) removeStale(ctx context.Context, existing []existingTrigger, desired, protected map[string]bool) {
	for _, entry := range existing {
		identity := identityOf(entry.provider, entry.trigger)
		if desired[identity] || protected[identity] {
			continue
		}

		r.provisioner.Destroy(ctx, entry.provider, entry.trigger)

		if err := r.persistence.TriggerRepository().Delete(ctx, entry.trigger.ID); err != nil {
			r.logger.Error("Failed to delete stale trigger",
				"trigger_id", entry.trigger.ID,
				"error", err)

			continue
		}

		r.logger.Info("Removed stale trigger",
			"trigger_id", entry.trigger.ID,
			"provider_type", entry.provider.Type,
			"trigger_type", entry.trigger.TriggerType)
	}
}

// addMissing creates trigger records, routing rows and external resources
// for desired entries not yet persisted. Each entry fails independently.
func (r *Reconciler) addMissing(
	ctx context.Context,
	workflowID string,
	desired []models.TriggerMetadata,
	existing []existingTrigger,
	providersByRef map[string]*models.Provider,
) []TriggerFailure {
	existingIdentities := make(map[string]bool, len(existing))
	for _, entry := range existing {
		existingIdentities[identityOf(entry.provider, entry.trigger)] = true
	}

	var failures []TriggerFailure

	seen := make(map[string]bool, len(desired))

	for _, meta := range desired {
		identity := meta.Identity()
		if existingIdentities[identity] || seen[identity] {
			continue
		}

		seen[identity] = true

		provider, ok := providersByRef[meta.ProviderType+":"+meta.ProviderAlias]
		if !ok {
			// Already reported by resolveProviders.
			continue
		}

		if err := r.createTrigger(ctx, workflowID, provider, meta); err != nil {
			failures = append(failures, newFailure(meta, err))
		}
	}

	return failures
}

// createTrigger persists one new trigger with its routing row, then runs
// the provider lifecycle. A lifecycle failure keeps the record so a later
// sync retries provisioning, but is still reported to the caller.
func (r *Reconciler) createTrigger(ctx context.Context, workflowID string, provider *models.Provider, meta models.TriggerMetadata) error {
	if err := r.registry.ValidateInput(meta.ProviderType, meta.TriggerType, meta.Input); err != nil {
		return err
	}

	now := time.Now().UTC()
	trigger := &models.Trigger{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		ProviderID:  provider.ID,
		TriggerType: meta.TriggerType,
		Input:       meta.Input,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.persistence.TriggerRepository().Save(ctx, trigger); err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}

	webhookPath := ""

	switch {
	case models.IsWebhookTrigger(meta.ProviderType, meta.TriggerType):
		webhook := models.NewIncomingWebhook(trigger.ID)
		if err := r.persistence.WebhookRepository().Save(ctx, webhook); err != nil {
			return fmt.Errorf("failed to save webhook for trigger: %w", err)
		}

		webhookPath = webhook.Path
	case models.IsScheduleTrigger(meta.TriggerType):
		task := &models.RecurringTask{ID: uuid.NewString(), TriggerID: trigger.ID}
		if err := r.persistence.RecurringTaskRepository().Save(ctx, task); err != nil {
			return fmt.Errorf("failed to save recurring task for trigger: %w", err)
		}
	}

	state, err := r.provisioner.Create(ctx, provider, trigger, webhookPath)
	if err != nil {
		return err
	}

	if err := r.persistence.TriggerRepository().UpdateState(ctx, trigger.ID, state); err != nil {
		return fmt.Errorf("failed to persist trigger state: %w", err)
	}

	r.logger.Info("Created trigger",
		"trigger_id", trigger.ID,
		"provider_type", provider.Type,
		"trigger_type", meta.TriggerType,
		"webhook_path", webhookPath)

	return nil
}

// collectWebhooks builds the reconciliation result from the workflow's
// surviving webhook rows, deduplicated by webhook ID.
func (r *Reconciler) collectWebhooks(ctx context.Context, workflowID string) ([]models.WebhookInfo, error) {
	webhooks, err := r.persistence.WebhookRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for workflow %s: %w", workflowID, err)
	}

	infos := make([]models.WebhookInfo, 0, len(webhooks))
	seen := make(map[string]bool, len(webhooks))

	for _, webhook := range webhooks {
		if seen[webhook.ID] {
			continue
		}

		seen[webhook.ID] = true

		info := models.WebhookInfo{
			WebhookID: webhook.ID,
			TriggerID: webhook.TriggerID,
			Path:      webhook.Path,
			Method:    webhook.Method,
		}

		trigger, err := r.persistence.TriggerRepository().GetByID(ctx, webhook.TriggerID)
		if err == nil {
			if provider, perr := r.persistence.ProviderRepository().GetByID(ctx, trigger.ProviderID); perr == nil {
				info.ProviderType = provider.Type
				info.ProviderAlias = provider.Alias
			}
		}

		infos = append(infos, info)
	}

	return infos, nil
}

func newFailure(meta models.TriggerMetadata, err error) TriggerFailure {
	return TriggerFailure{
		ProviderType:  meta.ProviderType,
		ProviderAlias: meta.ProviderAlias,
		TriggerType:   meta.TriggerType,
		Error:         err.Error(),
	}
}
