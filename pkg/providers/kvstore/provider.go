// Package kvstore provides change-watch triggers over the shared redis key
// value store. Writers publish change notifications to flowhook's webhook
// endpoint; the lifecycle maintains the watch registration in redis so
// writers know which keys anyone is watching.
package kvstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

const TriggerTypeOnChange = "onChange"

const watchKeyPrefix = "flowhook:kvstore:watch:"

type Provider struct {
	logger    *slog.Logger
	lifecycle watchLifecycle
}

func NewProvider(logger *slog.Logger, client *redis.Client) *Provider {
	return &Provider{
		logger:    logger.With("provider", "kvstore"),
		lifecycle: watchLifecycle{client: client},
	}
}

func (p *Provider) ID() string {
	return models.ProviderTypeKVStore
}

func (p *Provider) TriggerTypes() []string {
	return []string{TriggerTypeOnChange}
}

func (p *Provider) Lifecycle(triggerType string) (protocol.TriggerLifecycle, bool) {
	if triggerType != TriggerTypeOnChange {
		return nil, false
	}

	// Without a redis client the registration is skipped entirely and
	// matching still works from the trigger input alone.
	if p.lifecycle.client == nil {
		return nil, false
	}

	return p.lifecycle, true
}

func (p *Provider) Matcher(triggerType string) (protocol.EventMatcher, bool) {
	if triggerType != TriggerTypeOnChange {
		return nil, false
	}

	return changeMatcher{}, true
}

func (p *Provider) Schema(triggerType string) map[string]any {
	if triggerType != TriggerTypeOnChange {
		return nil
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string"},
			"op":  map[string]any{"type": "string", "enum": []any{"set", "delete"}},
		},
		"required":             []any{"key"},
		"additionalProperties": false,
	}
}

// watchLifecycle records which triggers watch which keys in a redis set per
// key, so store writers can skip notifying unwatched keys.
type watchLifecycle struct {
	client *redis.Client
}

func (l watchLifecycle) Create(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	key, _ := req.Input["key"].(string)
	if key == "" {
		return nil, fmt.Errorf("kvstore trigger input is missing key")
	}

	if err := l.client.SAdd(ctx, watchKeyPrefix+key, req.TriggerID).Err(); err != nil {
		return nil, fmt.Errorf("failed to register kvstore watch: %w", err)
	}

	return map[string]any{"key": key}, nil
}

func (l watchLifecycle) Destroy(ctx context.Context, req protocol.LifecycleRequest) error {
	key, _ := req.State["key"].(string)
	if key == "" {
		key, _ = req.Input["key"].(string)
	}

	if key == "" {
		return nil
	}

	if err := l.client.SRem(ctx, watchKeyPrefix+key, req.TriggerID).Err(); err != nil {
		return fmt.Errorf("failed to remove kvstore watch: %w", err)
	}

	return nil
}

func (l watchLifecycle) Refresh(ctx context.Context, req protocol.LifecycleRequest) (map[string]any, error) {
	return l.Create(ctx, req)
}

// changeMatcher filters change notifications by watched key and operation.
type changeMatcher struct{}

// Allow drops changes written by workflow steps themselves, marked by the
// writer with "source":"workflow". A workflow writing the key it watches
// would otherwise loop forever.
func (changeMatcher) Allow(event map[string]any) bool {
	source, _ := event["source"].(string)

	return source != "workflow"
}

func (changeMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	watched, _ := trigger.Input["key"].(string)
	changed, _ := event["key"].(string)

	if watched == "" || watched != changed {
		return nil, false
	}

	if wantOp, _ := trigger.Input["op"].(string); wantOp != "" {
		op, _ := event["op"].(string)
		if op != wantOp {
			return nil, false
		}
	}

	return event, true
}
