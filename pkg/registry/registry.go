// Package registry holds the provider integrations available to the
// reconciliation core and webhook dispatch.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/flowhook/flowhook/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger    *slog.Logger
	providers map[string]protocol.Provider
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		providers: make(map[string]protocol.Provider),
	}
}

func (r *Registry) RegisterProvider(provider protocol.Provider) {
	r.providers[provider.ID()] = provider
	r.logger.Info("Registered provider", "provider_type", provider.ID(), "trigger_types", provider.TriggerTypes())
}

// Provider returns the integration for a provider type.
func (r *Registry) Provider(providerType string) (protocol.Provider, bool) {
	provider, ok := r.providers[providerType]

	return provider, ok
}

// Lifecycle looks up the lifecycle hooks for (providerType, triggerType).
// A false return is not an error: many triggers need no external call.
func (r *Registry) Lifecycle(providerType, triggerType string) (protocol.TriggerLifecycle, bool) {
	provider, ok := r.providers[providerType]
	if !ok {
		return nil, false
	}

	return provider.Lifecycle(triggerType)
}

// Matcher looks up the event matcher for (providerType, triggerType).
func (r *Registry) Matcher(providerType, triggerType string) (protocol.EventMatcher, bool) {
	provider, ok := r.providers[providerType]
	if !ok {
		return nil, false
	}

	return provider.Matcher(triggerType)
}

// Handshake returns the provider's handshake responder when it has one.
func (r *Registry) Handshake(providerType string) (protocol.HandshakeResponder, bool) {
	provider, ok := r.providers[providerType]
	if !ok {
		return nil, false
	}

	responder, ok := provider.(protocol.HandshakeResponder)

	return responder, ok
}

// ValidateInput checks trigger input against the provider's declared JSON
// schema for the trigger type. Providers without a schema accept anything.
func (r *Registry) ValidateInput(providerType, triggerType string, input map[string]any) error {
	provider, ok := r.providers[providerType]
	if !ok {
		return nil
	}

	schema := provider.Schema(triggerType)
	if schema == nil {
		return nil
	}

	if input == nil {
		input = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return fmt.Errorf("failed to validate trigger input: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid trigger input: %s", errs[0].String())
		}

		return fmt.Errorf("invalid trigger input for %s/%s", providerType, triggerType)
	}

	return nil
}
