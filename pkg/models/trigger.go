// Package models defines the core domain models for trigger reconciliation
// and webhook dispatch.
package models

import (
	"strings"
	"time"
)

// Trigger is a persisted binding of a workflow to one event-source
// configuration. Input is the user-declared filter configuration; State is
// opaque data returned by the provider's lifecycle create (for example an
// external subscription ID) and is only ever written by the provisioner.
type Trigger struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"  validate:"required"`
	ProviderID  string         `json:"provider_id"  validate:"required"`
	TriggerType string         `json:"trigger_type" validate:"required"`
	Input       map[string]any `json:"input"`
	State       map[string]any `json:"state,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TriggerMetadata is one entry of the desired trigger set handed to
// reconciliation. It carries the provider reference by (type, alias) because
// the provider row may not exist yet.
type TriggerMetadata struct {
	ProviderType  string         `json:"provider_type"  validate:"required"`
	ProviderAlias string         `json:"provider_alias" validate:"required"`
	TriggerType   string         `json:"trigger_type"   validate:"required"`
	Input         map[string]any `json:"input"`
}

// Identity returns the canonical identity key for this metadata entry.
func (m TriggerMetadata) Identity() string {
	return TriggerIdentity(m.ProviderType, m.ProviderAlias, m.TriggerType, m.Input)
}

// Schedule-style trigger types. Cadence lives in the trigger input.
const (
	TriggerTypeCron       = "cron"
	TriggerTypeOnCron     = "onCron"
	TriggerTypeOnSchedule = "onSchedule"
)

// Webhook-style trigger types.
const (
	TriggerTypeWebhook   = "webhook"
	TriggerTypeOnWebhook = "onWebhook"
)

// eventTriggerPrefix marks provider event triggers (onMessage, onIssue, ...).
const eventTriggerPrefix = "on"

// IsScheduleTrigger reports whether triggers of this type are backed by a
// RecurringTask row instead of an IncomingWebhook row.
func IsScheduleTrigger(triggerType string) bool {
	switch triggerType {
	case TriggerTypeCron, TriggerTypeOnCron, TriggerTypeOnSchedule:
		return true
	default:
		return false
	}
}

// IsWebhookTrigger reports whether triggers of this type need an
// IncomingWebhook row. Provider event triggers ("on..." types) are
// webhook-backed, except for the builtin provider whose plain webhook
// triggers are matched by the explicit type names instead.
func IsWebhookTrigger(providerType, triggerType string) bool {
	if IsScheduleTrigger(triggerType) {
		return false
	}

	switch triggerType {
	case TriggerTypeWebhook, TriggerTypeOnWebhook:
		return true
	}

	return strings.HasPrefix(triggerType, eventTriggerPrefix) && providerType != ProviderTypeBuiltin
}
