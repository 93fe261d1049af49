package models

import "time"

// DeploymentStatus represents the lifecycle state of a workflow deployment.
type DeploymentStatus string

const (
	DeploymentStatusActive   DeploymentStatus = "ACTIVE"
	DeploymentStatusInactive DeploymentStatus = "INACTIVE"
	DeploymentStatusFailed   DeploymentStatus = "FAILED"
)

// ProviderRef references a provider by (type, alias) inside a deployment
// snapshot, independent of the provider row's database ID.
type ProviderRef struct {
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// TriggerDefinition is one entry of a deployment's immutable trigger
// snapshot.
type TriggerDefinition struct {
	Provider    ProviderRef    `json:"provider"`
	TriggerType string         `json:"trigger_type"`
	Input       map[string]any `json:"input"`
}

// Identity returns the canonical identity key of the snapshot entry.
func (d TriggerDefinition) Identity() string {
	return TriggerIdentity(d.Provider.Type, d.Provider.Alias, d.TriggerType, d.Input)
}

// WorkflowDeployment is an immutable snapshot of the trigger set a
// deployment was built against. Only the most recently deployed ACTIVE
// record per workflow is consulted during reconciliation: its trigger
// identities form the protected set that dev-mode syncs must not remove.
type WorkflowDeployment struct {
	ID                 string              `json:"id"`
	WorkflowID         string              `json:"workflow_id" validate:"required"`
	Status             DeploymentStatus    `json:"status"      validate:"required"`
	DeployedAt         time.Time           `json:"deployed_at"`
	TriggerDefinitions []TriggerDefinition `json:"trigger_definitions"`
}
