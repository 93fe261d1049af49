package reconcile

import (
	"context"
	"fmt"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
)

// ProtectedIdentities computes the trigger identities that must survive
// reconciliation because the workflow's active deployment still depends on
// them. The set comes from the latest ACTIVE deployment's immutable trigger
// snapshot and is advisory-read-only: the reconciler consults it but never
// mutates it.
func ProtectedIdentities(ctx context.Context, deployments persistence.DeploymentRepository, workflowID string) (map[string]bool, error) {
	deployment, err := deployments.LatestActive(ctx, workflowID)
	if persistence.IsDeploymentNotFound(err) {
		return map[string]bool{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve protected trigger set: %w", err)
	}

	protected := make(map[string]bool, len(deployment.TriggerDefinitions))
	for _, definition := range deployment.TriggerDefinitions {
		protected[definition.Identity()] = true
	}

	return protected, nil
}

// identityOf reconstructs a persisted trigger's identity key from its
// owning provider.
func identityOf(provider *models.Provider, trigger *models.Trigger) string {
	return models.TriggerIdentity(provider.Type, provider.Alias, trigger.TriggerType, trigger.Input)
}
