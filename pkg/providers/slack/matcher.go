package slack

import "github.com/flowhook/flowhook/pkg/models"

// allowSlackEvent is the provider-level noise filter. Messages written by
// bots (including flowhook's own posting steps) and message edits or other
// subtyped events are dropped before any trigger matching, so a workflow
// that posts into the channel it watches cannot feed itself.
func allowSlackEvent(event map[string]any) bool {
	payload := innerEvent(event)

	if botID, ok := payload["bot_id"].(string); ok && botID != "" {
		return false
	}

	if subtype, ok := payload["subtype"].(string); ok && subtype != "" {
		return false
	}

	return true
}

// innerEvent unwraps the Events API envelope. Deliveries arrive as
// {"type":"event_callback","event":{...}}; matching runs on the inner
// event, falling back to the body itself for already-flat payloads.
func innerEvent(event map[string]any) map[string]any {
	if inner, ok := event["event"].(map[string]any); ok {
		return inner
	}

	return event
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)

	return value
}

// fieldMatches implements the shared filter rule: an empty declared value
// matches anything.
func fieldMatches(declared, actual string) bool {
	return declared == "" || declared == actual
}

type messageMatcher struct{}

func (messageMatcher) Allow(event map[string]any) bool {
	return allowSlackEvent(event)
}

func (messageMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	payload := innerEvent(event)

	if payload["type"] != "message" {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "channel_id"), stringField(payload, "channel")) {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "user_id"), stringField(payload, "user")) {
		return nil, false
	}

	// Thread replies are excluded unless the trigger opts in.
	if stringField(payload, "thread_ts") != "" {
		include, _ := trigger.Input["include_thread_replies"].(bool)
		if !include {
			return nil, false
		}
	}

	return payload, true
}

type reactionMatcher struct{}

func (reactionMatcher) Allow(event map[string]any) bool {
	return allowSlackEvent(event)
}

func (reactionMatcher) Match(event map[string]any, trigger *models.Trigger) (map[string]any, bool) {
	payload := innerEvent(event)

	if payload["type"] != "reaction_added" {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "reaction"), stringField(payload, "reaction")) {
		return nil, false
	}

	if !fieldMatches(stringField(trigger.Input, "user_id"), stringField(payload, "user")) {
		return nil, false
	}

	channel := ""
	if item, ok := payload["item"].(map[string]any); ok {
		channel = stringField(item, "channel")
	}

	if !fieldMatches(stringField(trigger.Input, "channel_id"), channel) {
		return nil, false
	}

	return payload, true
}
