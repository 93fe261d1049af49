package web

import "github.com/flowhook/flowhook/pkg/models"

// SyncTriggersRequest is the desired trigger set for a workflow sync.
type SyncTriggersRequest struct {
	NamespaceID string                   `json:"namespace_id" validate:"required"`
	Triggers    []models.TriggerMetadata `json:"triggers"     validate:"dive"`
}

// DeployWorkflowRequest snapshots a trigger set as the workflow's active
// deployment and reconciles against it.
type DeployWorkflowRequest struct {
	NamespaceID string                   `json:"namespace_id" validate:"required"`
	Triggers    []models.TriggerMetadata `json:"triggers"     validate:"dive"`
}

// CreateProviderRequest configures a provider credential within a
// namespace.
type CreateProviderRequest struct {
	NamespaceID string            `json:"namespace_id" validate:"required"`
	Type        string            `json:"type"         validate:"required"`
	Alias       string            `json:"alias"        validate:"required"`
	Config      map[string]string `json:"config"`
}
