package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flowhook/flowhook/pkg/eventbus"
	"github.com/flowhook/flowhook/pkg/events"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/registry"
)

// Result is the HTTP answer a dispatch produced.
type Result struct {
	Status  int
	Body    map[string]any
	RawBody []byte
	// Matched counts the triggers that fired for this delivery.
	Matched int
}

// Dispatcher turns one inbound webhook delivery into zero or more trigger
// firings. An unmatched delivery is not an error: the platform keeps
// retrying failed deliveries, so anything flowhook consciously drops (noise
// events, filters that match nothing) is answered with a success status.
type Dispatcher struct {
	logger      *slog.Logger
	router      *Router
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
}

func NewDispatcher(
	logger *slog.Logger,
	router *Router,
	persistence persistence.Persistence,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
) *Dispatcher {
	return &Dispatcher{
		logger:      logger.With("module", "dispatcher"),
		router:      router,
		persistence: persistence,
		registry:    reg,
		publisher:   publisher,
	}
}

// Dispatch routes the parsed event body of a webhook delivery. Providers
// get a chance to answer platform handshakes before any matching happens;
// the provider-level Allow filter runs once per delivery, and per-trigger
// filters run against every trigger sharing the endpoint's provider and
// trigger type. At most one firing per trigger per delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, headers http.Header, event map[string]any) (*Result, error) {
	route, err := d.router.Resolve(ctx, path)
	if persistence.IsWebhookNotFound(err) {
		return &Result{Status: http.StatusNotFound, Body: map[string]any{
			"status":  "error",
			"message": "Webhook not found",
		}}, nil
	}

	if err != nil {
		return nil, err
	}

	if responder, ok := d.registry.Handshake(route.Provider.Type); ok {
		if status, body, handled := responder.Handshake(headers, event); handled {
			d.logger.Info("Answered provider handshake",
				"provider_type", route.Provider.Type,
				"webhook_id", route.Webhook.ID)

			return &Result{Status: status, RawBody: body}, nil
		}
	}

	matcher, hasMatcher := d.registry.Matcher(route.Provider.Type, route.Trigger.TriggerType)
	if !hasMatcher {
		// No matcher registered means no filtering semantics: the delivery
		// fires the owning trigger with the raw event.
		if err := d.fire(ctx, route.Provider, route.Trigger, event); err != nil {
			return nil, err
		}

		return accepted(1), nil
	}

	if !matcher.Allow(event) {
		d.logger.Debug("Delivery dropped by provider noise filter",
			"provider_type", route.Provider.Type,
			"webhook_id", route.Webhook.ID)

		return accepted(0), nil
	}

	candidates, err := d.persistence.TriggerRepository().GetByProviderAndType(ctx, route.Provider.ID, route.Trigger.TriggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate triggers: %w", err)
	}

	matched := 0

	for _, candidate := range candidates {
		payload, ok := matcher.Match(event, candidate)
		if !ok {
			continue
		}

		if err := d.fire(ctx, route.Provider, candidate, payload); err != nil {
			return nil, err
		}

		matched++
	}

	if matched == 0 {
		d.logger.Debug("Delivery matched no triggers",
			"provider_type", route.Provider.Type,
			"trigger_type", route.Trigger.TriggerType,
			"candidates", len(candidates))
	}

	return accepted(matched), nil
}

func (d *Dispatcher) fire(ctx context.Context, provider *models.Provider, trigger *models.Trigger, payload map[string]any) error {
	event := events.TriggerFired{
		BaseEvent:    events.NewBaseEvent(events.TriggerFiredEvent, trigger.WorkflowID),
		TriggerID:    trigger.ID,
		ProviderType: provider.Type,
		TriggerType:  trigger.TriggerType,
		TriggerData:  payload,
	}

	if err := d.publisher.Publish(ctx, trigger.WorkflowID, event); err != nil {
		return fmt.Errorf("failed to publish trigger firing: %w", err)
	}

	d.logger.Info("Trigger fired",
		"trigger_id", trigger.ID,
		"workflow_id", trigger.WorkflowID,
		"provider_type", provider.Type,
		"trigger_type", trigger.TriggerType)

	return nil
}

func accepted(matched int) *Result {
	return &Result{
		Status:  http.StatusOK,
		Body:    map[string]any{"status": "success", "message": "Webhook received and processed"},
		Matched: matched,
	}
}
