// Package schedule provides cron-cadence triggers. No external resource
// backs them: the lifecycle only validates the expression, and the gateway
// scheduler fires them from the persisted recurring task rows.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

type Provider struct {
	logger *slog.Logger
}

func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{logger: logger.With("provider", "schedule")}
}

func (p *Provider) ID() string {
	return models.ProviderTypeSchedule
}

func (p *Provider) TriggerTypes() []string {
	return []string{models.TriggerTypeCron, models.TriggerTypeOnCron, models.TriggerTypeOnSchedule}
}

func (p *Provider) Lifecycle(triggerType string) (protocol.TriggerLifecycle, bool) {
	if !models.IsScheduleTrigger(triggerType) {
		return nil, false
	}

	return cronLifecycle{}, true
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
		"required":             []any{"cron"},
		"additionalProperties": false,
	}
}

// cronLifecycle rejects invalid expressions at sync time so a broken
// cadence surfaces as a trigger failure instead of a silently idle task.
type cronLifecycle struct{}

func (cronLifecycle) Create(_ context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	expr, _ := req.Input["cron"].(string)
	if expr == "" {
		return nil, fmt.Errorf("schedule trigger input is missing cron expression")
	}

	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return map[string]any{"cron": expr}, nil
}

func (cronLifecycle) Destroy(context.Context, protocol.LifecycleRequest) error {
	return nil
}

func (l cronLifecycle) Refresh(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	return l.Create(ctx, req)
}
