package protocol

import (
	"net/http"

	"github.com/flowhook/flowhook/pkg/models"
)

// Provider is a provider integration plugin: it declares which trigger
// types it supports and supplies the lifecycle hooks and event matchers for
// them. Providers are registered on an explicit registry instead of a
// module-level singleton so the core stays testable with fakes.
type Provider interface {
	// ID returns the provider type, e.g. "slack".
	ID() string

	// TriggerTypes lists the trigger types this provider supports.
	TriggerTypes() []string

	// Lifecycle returns the lifecycle hooks for a trigger type. A false
	// return means triggers of this type need no external resource and the
	// provisioner skips them entirely.
	Lifecycle(triggerType string) (TriggerLifecycle, bool)

	// Matcher returns the event matcher for a trigger type.
	Matcher(triggerType string) (EventMatcher, bool)

	// Schema returns the JSON schema constraining trigger input for a
	// trigger type, or nil when the input is unconstrained.
	Schema(triggerType string) map[string]any
}

// EventMatcher filters inbound events against trigger configurations.
type EventMatcher interface {
	// Allow is the provider-level noise filter, applied once per event
	// before any per-trigger matching (e.g. dropping the platform's own bot
	// messages). Independent of any trigger's filter fields.
	Allow(event map[string]any) bool

	// Match evaluates the trigger's declared filter fields against the
	// event. Filters with empty declared values match anything. On success
	// it returns the normalized payload handed to workflow execution.
	Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool)
}

// HandshakeResponder is implemented by providers whose platform performs a
// subscription handshake against the webhook endpoint (Slack URL
// verification, GitHub ping). A handled handshake is answered immediately
// and never reaches the matcher.
type HandshakeResponder interface {
	Handshake(headers http.Header, event map[string]any) (status int, body []byte, handled bool)
}
