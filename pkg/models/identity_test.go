package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerIdentity_OrderIndependence(t *testing.T) {
	a := TriggerIdentity("slack", "default", "onMessage", map[string]any{
		"channel_id": "C1",
		"user_id":    "U1",
	})
	b := TriggerIdentity("slack", "default", "onMessage", map[string]any{
		"user_id":    "U1",
		"channel_id": "C1",
	})

	assert.Equal(t, a, b)
}

func TestTriggerIdentity_NestedOrderIndependence(t *testing.T) {
	a := TriggerIdentity("github", "default", "onIssue", map[string]any{
		"filters": map[string]any{"action": "opened", "label": "bug"},
	})
	b := TriggerIdentity("github", "default", "onIssue", map[string]any{
		"filters": map[string]any{"label": "bug", "action": "opened"},
	})

	assert.Equal(t, a, b)
}

func TestTriggerIdentity_Format(t *testing.T) {
	identity := TriggerIdentity("slack", "default", "onMessage", map[string]any{
		"b": float64(2),
		"a": float64(1),
	})

	assert.Equal(t, `slack:default:onMessage:{"a":1,"b":2}`, identity)
}

func TestTriggerIdentity_EmptyInput(t *testing.T) {
	assert.Equal(t, "builtin:default:onWebhook:{}",
		TriggerIdentity("builtin", "default", "onWebhook", nil))
	assert.Equal(t, "builtin:default:onWebhook:{}",
		TriggerIdentity("builtin", "default", "onWebhook", map[string]any{}))
}

func TestTriggerIdentity_DistinguishesInput(t *testing.T) {
	a := TriggerIdentity("slack", "default", "onMessage", map[string]any{"channel_id": "C1"})
	b := TriggerIdentity("slack", "default", "onMessage", map[string]any{"channel_id": "C2"})

	assert.NotEqual(t, a, b)
}

func TestTriggerIdentity_ArraysKeepOrder(t *testing.T) {
	a := TriggerIdentity("github", "default", "onPush", map[string]any{"branches": []any{"main", "dev"}})
	b := TriggerIdentity("github", "default", "onPush", map[string]any{"branches": []any{"dev", "main"}})

	assert.NotEqual(t, a, b)
}

func TestTriggerDefinition_IdentityMatchesMetadata(t *testing.T) {
	input := map[string]any{"channel_id": "C1"}

	def := TriggerDefinition{
		Provider:    ProviderRef{Type: "slack", Alias: "default"},
		TriggerType: "onMessage",
		Input:       input,
	}
	meta := TriggerMetadata{
		ProviderType:  "slack",
		ProviderAlias: "default",
		TriggerType:   "onMessage",
		Input:         input,
	}

	assert.Equal(t, meta.Identity(), def.Identity())
}
