// Package dispatch routes inbound webhook deliveries and schedule ticks to
// matching triggers and hands matched firings to workflow execution.
package dispatch

import (
	"context"
	"fmt"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
)

// Route is a resolved webhook delivery target: the webhook row addressed by
// the path, the trigger that owns it and that trigger's provider.
type Route struct {
	Webhook  *models.IncomingWebhook
	Trigger  *models.Trigger
	Provider *models.Provider
}

// Router resolves webhook paths to their owning trigger and provider.
type Router struct {
	persistence persistence.Persistence
}

func NewRouter(persistence persistence.Persistence) *Router {
	return &Router{persistence: persistence}
}

// Resolve looks up the delivery target for a webhook path. It returns
// persistence.ErrWebhookNotFound when no webhook row owns the path, and
// treats a webhook whose trigger or provider row is gone as unroutable.
func (r *Router) Resolve(ctx context.Context, path string) (*Route, error) {
	webhook, err := r.persistence.WebhookRepository().GetByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	trigger, err := r.persistence.TriggerRepository().GetByID(ctx, webhook.TriggerID)
	if err != nil {
		return nil, fmt.Errorf("webhook %s points at unresolvable trigger: %w", webhook.ID, err)
	}

	provider, err := r.persistence.ProviderRepository().GetByID(ctx, trigger.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("trigger %s points at unresolvable provider: %w", trigger.ID, err)
	}

	return &Route{Webhook: webhook, Trigger: trigger, Provider: provider}, nil
}
