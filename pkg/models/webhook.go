package models

import (
	"net/http"

	"github.com/google/uuid"
)

const webhookPathPrefix = "/webhook/"

// IncomingWebhook maps a routable path to the trigger that owns it.
// One-to-one with a webhook-style trigger.
type IncomingWebhook struct {
	ID        string `json:"id"`
	TriggerID string `json:"trigger_id" validate:"required"`
	Path      string `json:"path"       validate:"required"`
	Method    string `json:"method"     validate:"required"`
}

// NewWebhookPath generates a fresh globally unique webhook path. Uniqueness
// comes from the random UUID segment, so no collision check is needed before
// persisting.
func NewWebhookPath() string {
	return webhookPathPrefix + uuid.NewString()
}

// NewIncomingWebhook creates a webhook row for a trigger with a generated
// path. Inbound delivery is POST-only.
func NewIncomingWebhook(triggerID string) *IncomingWebhook {
	return &IncomingWebhook{
		ID:        uuid.NewString(),
		TriggerID: triggerID,
		Path:      NewWebhookPath(),
		Method:    http.MethodPost,
	}
}

// RecurringTask marks a schedule-style trigger as registered with the
// scheduler. The cron expression lives in the trigger's input.
type RecurringTask struct {
	ID        string `json:"id"`
	TriggerID string `json:"trigger_id" validate:"required"`
}

// WebhookInfo is the reconciliation result entry describing one live webhook
// endpoint of a workflow.
type WebhookInfo struct {
	WebhookID     string `json:"webhook_id"`
	TriggerID     string `json:"trigger_id"`
	Path          string `json:"path"`
	Method        string `json:"method"`
	ProviderType  string `json:"provider_type"`
	ProviderAlias string `json:"provider_alias"`
}
