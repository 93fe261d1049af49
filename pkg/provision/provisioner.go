// Package provision bridges the reconciler to provider-specific external
// resource lifecycle hooks.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/otelhelper"
	"github.com/flowhook/flowhook/pkg/protocol"
	"github.com/flowhook/flowhook/pkg/registry"
	"github.com/flowhook/flowhook/pkg/secrets"
)

// Provisioner executes provider lifecycle hooks to stand up or tear down
// external subscriptions backing triggers. It is the only component that
// reaches outside the system boundary.
type Provisioner struct {
	logger        *slog.Logger
	registry      *registry.Registry
	codec         secrets.Codec
	publicBaseURL string
	orphanCounter metric.Int64Counter
}

func NewProvisioner(logger *slog.Logger, reg *registry.Registry, codec secrets.Codec, publicBaseURL string) *Provisioner {
	counter, err := otelhelper.OrphanedResourceCounter()
	if err != nil {
		logger.Warn("Orphaned resource counter unavailable", "error", err)
	}

	return &Provisioner{
		logger:        logger.With("module", "provisioner"),
		registry:      reg,
		codec:         codec,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		orphanCounter: counter,
	}
}

// WebhookURL builds the public delivery URL for a webhook path.
func (p *Provisioner) WebhookURL(path string) string {
	if path == "" {
		return ""
	}

	return p.publicBaseURL + path
}

// Create runs the provider's lifecycle create hook and returns the external
// state to persist on the trigger. Triggers without a registered lifecycle
// need no external call; Create returns empty state for them. Hook errors
// propagate: the reconciler treats them as non-fatal per-trigger failures.
func (p *Provisioner) Create(ctx context.Context, provider *models.Provider, trigger *models.Trigger, webhookPath string) (map[string]any, error) {
	lifecycle, ok := p.registry.Lifecycle(provider.Type, trigger.TriggerType)
	if !ok {
		return map[string]any{}, nil
	}

	req, err := p.lifecycleRequest(provider, trigger, webhookPath)
	if err != nil {
		return nil, err
	}

	state, err := lifecycle.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lifecycle create failed for %s/%s: %w", provider.Type, trigger.TriggerType, err)
	}

	p.logger.Info("Provisioned external resource",
		"provider_type", provider.Type,
		"trigger_type", trigger.TriggerType,
		"trigger_id", trigger.ID)

	return state, nil
}

// Destroy runs the provider's lifecycle destroy hook best-effort. Failures
// are logged and counted but never propagated: cleanup must not block
// trigger deletion.
func (p *Provisioner) Destroy(ctx context.Context, provider *models.Provider, trigger *models.Trigger) {
	lifecycle, ok := p.registry.Lifecycle(provider.Type, trigger.TriggerType)
	if !ok {
		return
	}

	req, err := p.lifecycleRequest(provider, trigger, "")
	if err != nil {
		p.logger.Error("Failed to prepare lifecycle destroy, external resource may be orphaned",
			"provider_type", provider.Type,
			"trigger_type", trigger.TriggerType,
			"trigger_id", trigger.ID,
			"error", err)
		otelhelper.CountOrphan(ctx, p.orphanCounter, provider.Type, trigger.TriggerType)

		return
	}

	if err := lifecycle.Destroy(ctx, req); err != nil {
		p.logger.Error("Lifecycle destroy failed, external resource may be orphaned",
			"provider_type", provider.Type,
			"trigger_type", trigger.TriggerType,
			"trigger_id", trigger.ID,
			"error", err)
		otelhelper.CountOrphan(ctx, p.orphanCounter, provider.Type, trigger.TriggerType)
	}
}

// Refresh re-validates or renews the trigger's external subscription and
// returns the renewed state. Not part of the reconciliation path.
func (p *Provisioner) Refresh(ctx context.Context, provider *models.Provider, trigger *models.Trigger) (map[string]any, error) {
	lifecycle, ok := p.registry.Lifecycle(provider.Type, trigger.TriggerType)
	if !ok {
		return trigger.State, nil
	}

	req, err := p.lifecycleRequest(provider, trigger, "")
	if err != nil {
		return nil, err
	}

	state, err := lifecycle.Refresh(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lifecycle refresh failed for %s/%s: %w", provider.Type, trigger.TriggerType, err)
	}

	return state, nil
}

func (p *Provisioner) lifecycleRequest(provider *models.Provider, trigger *models.Trigger, webhookPath string) (protocol.LifecycleRequest, error) {
	config, err := secrets.DecryptConfig(p.codec, provider.EncryptedConfig)
	if err != nil {
		return protocol.LifecycleRequest{}, err
	}

	return protocol.LifecycleRequest{
		TriggerID:   trigger.ID,
		ProviderID:  provider.ID,
		TriggerType: trigger.TriggerType,
		WebhookURL:  p.WebhookURL(webhookPath),
		Input:       trigger.Input,
		State:       trigger.State,
		Secrets:     config,
	}, nil
}
