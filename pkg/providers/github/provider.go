// Package github integrates GitHub repository webhooks as trigger sources.
package github

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/pkg/protocol"
)

const (
	TriggerTypeOnIssue       = "onIssue"
	TriggerTypeOnPullRequest = "onPullRequest"
	TriggerTypeOnPush        = "onPush"
)

type Provider struct {
	logger    *slog.Logger
	lifecycle *hookLifecycle
}

func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger.With("provider", "github"),
		lifecycle: &hookLifecycle{
			client:  &http.Client{Timeout: 15 * time.Second},
			baseURL: githubAPIBaseURL,
		},
	}
}

func (p *Provider) ID() string {
	return "github"
}

func (p *Provider) TriggerTypes() []string {
	return []string{TriggerTypeOnIssue, TriggerTypeOnPullRequest, TriggerTypeOnPush}
}

func (p *Provider) Lifecycle(triggerType string) (protocol.TriggerLifecycle, bool) {
	switch triggerType {
	case TriggerTypeOnIssue, TriggerTypeOnPullRequest, TriggerTypeOnPush:
		return p.lifecycle, true
	default:
		return nil, false
	}
}

func (p *Provider) Matcher(triggerType string) (protocol.EventMatcher, bool) {
	switch triggerType {
	case TriggerTypeOnIssue:
		return issueMatcher{}, true
	case TriggerTypeOnPullRequest:
		return pullRequestMatcher{}, true
	case TriggerTypeOnPush:
		return pushMatcher{}, true
	default:
		return nil, false
	}
}

func (p *Provider) Schema(triggerType string) map[string]any {
	base := map[string]any{
		"repository": map[string]any{"type": "string"},
	}

	switch triggerType {
	case TriggerTypeOnIssue, TriggerTypeOnPullRequest:
		base["action"] = map[string]any{"type": "string"}
	case TriggerTypeOnPush:
		base["branch"] = map[string]any{"type": "string"}
	default:
		return nil
	}

	return map[string]any{
		"type":                 "object",
		"properties":           base,
		"required":             []any{"repository"},
		"additionalProperties": false,
	}
}

// Handshake answers the ping GitHub delivers right after a hook is created.
func (p *Provider) Handshake(headers http.Header, _ map[string]any) (int, []byte, bool) {
	if headers.Get("X-GitHub-Event") != "ping" {
		return 0, nil, false
	}

	return http.StatusOK, []byte(`{"status":"pong"}`), true
}
