package github

import (
	"strings"

	"github.com/flowhook/flowhook/pkg/models"
)

// allowGitHubEvent drops deliveries produced by bot accounts, including the
// app identity flowhook itself acts as. A workflow that comments on the
// issues it watches must not retrigger itself.
func allowGitHubEvent(event map[string]any) bool {
	sender, ok := event["sender"].(map[string]any)
	if !ok {
		return true
	}

	senderType, _ := sender["type"].(string)

	return senderType != "Bot"
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)

	return value
}

func repositoryName(event map[string]any) string {
	repository, ok := event["repository"].(map[string]any)
	if !ok {
		return ""
	}

	return stringField(repository, "full_name")
}

func fieldMatches(declared, actual string) bool {
	return declared == "" || declared == actual
}

type issueMatcher struct{}

func (issueMatcher) Allow(event map[string]any) bool {
	return allowGitHubEvent(event)
}

func (issueMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	if _, ok := event["issue"]; !ok {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "repository"), repositoryName(event)) {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "action"), stringField(event, "action")) {
		return nil, false
	}

	return event, true
}

type pullRequestMatcher struct{}

func (pullRequestMatcher) Allow(event map[string]any) bool {
	return allowGitHubEvent(event)
}

func (pullRequestMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	if _, ok := event["pull_request"]; !ok {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "repository"), repositoryName(event)) {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "action"), stringField(event, "action")) {
		return nil, false
	}

	return event, true
}

type pushMatcher struct{}

func (pushMatcher) Allow(event map[string]any) bool {
	return allowGitHubEvent(event)
}

func (pushMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	ref := stringField(event, "ref")
	if ref == "" {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "repository"), repositoryName(event)) {
		return nil, false
	}

	if branch := stringField(trigger.Input, "branch"); branch != "" {
		if strings.TrimPrefix(ref, "refs/heads/") != branch {
			return nil, false
		}
	}

	return event, true
}
