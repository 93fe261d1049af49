// Package protocol defines the interfaces between the reconciliation core
// and provider integrations.
package protocol

import "context"

// LifecycleRequest carries everything a provider lifecycle hook needs to
// manage the external resource backing one trigger.
type LifecycleRequest struct {
	TriggerID   string
	ProviderID  string
	TriggerType string
	// WebhookURL is the public delivery URL for webhook-backed triggers,
	// empty otherwise.
	WebhookURL string
	Input      map[string]any
	// State is the opaque data a previous Create returned; nil on Create.
	State map[string]any
	// Secrets holds the decrypted provider configuration.
	Secrets map[string]string
}

// TriggerLifecycle manages the external subscription corresponding to a
// trigger. Create and Destroy are the only calls that reach outside the
// system boundary; both must be safe to skip (no lifecycle registered) and
// Destroy must be safe to fail.
type TriggerLifecycle interface {
	// Create stands up the external resource and returns opaque state to
	// persist on the trigger. Errors propagate to the caller.
	Create(ctx context.Context, req LifecycleRequest) (map[string]any, error)

	// Destroy tears down the external resource. Callers treat failures as
	// best-effort: they are logged and counted, never fatal.
	Destroy(ctx context.Context, req LifecycleRequest) error

	// Refresh re-validates or renews the external subscription and returns
	// the new state. Invoked outside the reconciliation path.
	Refresh(ctx context.Context, req LifecycleRequest) (map[string]any, error)
}
