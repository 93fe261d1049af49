// Package builtin provides zero-setup plain webhook and cron triggers. Its
// triggers need no external resource and no provider credentials: webhook
// deliveries fire only the endpoint's owning trigger, so no matcher is
// registered either.
package builtin

import (
	"log/slog"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

type Provider struct {
	logger *slog.Logger
}

func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{logger: logger.With("provider", "builtin")}
}

func (p *Provider) ID() string {
	return models.ProviderTypeBuiltin
}

func (p *Provider) TriggerTypes() []string {
	return []string{
		models.TriggerTypeWebhook,
		models.TriggerTypeOnWebhook,
		models.TriggerTypeCron,
		models.TriggerTypeOnCron,
		models.TriggerTypeOnSchedule,
	}
}

func (p *Provider) Lifecycle(string) (protocol.TriggerLifecycle, bool) {
	return nil, false
}

func (p *Provider) Matcher(string) (protocol.EventMatcher, bool) {
	return nil, false
}

func (p *Provider) Schema(triggerType string) map[string]any {
	if !models.IsScheduleTrigger(triggerType) {
		return nil
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cron": map[string]any{"type": "string"},
		},
		"required": []any{"cron"},
	}
}
