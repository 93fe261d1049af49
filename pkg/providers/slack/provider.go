// Package slack integrates Slack Events API subscriptions as trigger
// sources.
package slack

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/pkg/protocol"
)

const (
	TriggerTypeOnMessage  = "onMessage"
	TriggerTypeOnReaction = "onReaction"
)

type Provider struct {
	logger    *slog.Logger
	client    *http.Client
	lifecycle *subscriptionLifecycle
}

func NewProvider(logger *slog.Logger) *Provider {
	client := &http.Client{Timeout: 10 * time.Second}

	return &Provider{
		logger:    logger.With("provider", "slack"),
		client:    client,
		lifecycle: &subscriptionLifecycle{client: client, baseURL: slackAPIBaseURL},
	}
}

func (p *Provider) ID() string {
	return "slack"
}

func (p *Provider) TriggerTypes() []string {
	return []string{TriggerTypeOnMessage, TriggerTypeOnReaction}
}

func (p *Provider) Lifecycle(triggerType string) (protocol.TriggerLifecycle, bool) {
	switch triggerType {
	case TriggerTypeOnMessage, TriggerTypeOnReaction:
		return p.lifecycle, true
	default:
		return nil, false
	}
}

func (p *Provider) Matcher(triggerType string) (protocol.EventMatcher, bool) {
	switch triggerType {
	case TriggerTypeOnMessage:
		return messageMatcher{}, true
	case TriggerTypeOnReaction:
		return reactionMatcher{}, true
	default:
		return nil, false
	}
}

func (p *Provider) Schema(triggerType string) map[string]any {
	switch triggerType {
	case TriggerTypeOnMessage:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel_id":             map[string]any{"type": "string"},
				"user_id":                map[string]any{"type": "string"},
				"include_thread_replies": map[string]any{"type": "boolean"},
			},
			"additionalProperties": false,
		}
	case TriggerTypeOnReaction:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel_id": map[string]any{"type": "string"},
				"user_id":    map[string]any{"type": "string"},
				"reaction":   map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		}
	default:
		return nil
	}
}

// Handshake answers the Events API URL verification challenge Slack sends
// when a request URL is configured.
func (p *Provider) Handshake(_ http.Header, event map[string]any) (int, []byte, bool) {
	if event["type"] != "url_verification" {
		return 0, nil, false
	}

	challenge, _ := event["challenge"].(string)

	body, err := json.Marshal(map[string]string{"challenge": challenge})
	if err != nil {
		return 0, nil, false
	}

	return http.StatusOK, body, true
}
