package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func messageEvent(fields map[string]any) map[string]any {
	inner := map[string]any{"type": "message", "channel": "C1", "user": "U1", "text": "hello"}
	for key, value := range fields {
		inner[key] = value
	}

	return map[string]any{"type": "event_callback", "event": inner}
}

func TestMessageMatcherAllowDropsBotMessages(t *testing.T) {
	matcher := messageMatcher{}

	assert.True(t, matcher.Allow(messageEvent(nil)))
	assert.False(t, matcher.Allow(messageEvent(map[string]any{"bot_id": "B1"})))
	assert.False(t, matcher.Allow(messageEvent(map[string]any{"subtype": "message_changed"})))
}

func TestMessageMatcherFilters(t *testing.T) {
	matcher := messageMatcher{}

	tests := []struct {
		name  string
		input map[string]any
		event map[string]any
		want  bool
	}{
		{"no filters match anything", nil, messageEvent(nil), true},
		{"channel filter matches", map[string]any{"channel_id": "C1"}, messageEvent(nil), true},
		{"channel filter rejects", map[string]any{"channel_id": "C2"}, messageEvent(nil), false},
		{"user filter matches", map[string]any{"user_id": "U1"}, messageEvent(nil), true},
		{"user filter rejects", map[string]any{"user_id": "U9"}, messageEvent(nil), false},
		{"empty filter value matches anything", map[string]any{"channel_id": ""}, messageEvent(nil), true},
		{"non-message events never match", nil, map[string]any{"event": map[string]any{"type": "reaction_added"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &models.Trigger{Input: tt.input}

			payload, ok := matcher.Match(tt.event, trigger)
			assert.Equal(t, tt.want, ok)

			if tt.want {
				assert.Equal(t, "hello", payload["text"])
			}
		})
	}
}

func TestMessageMatcherThreadReplies(t *testing.T) {
	matcher := messageMatcher{}
	threaded := messageEvent(map[string]any{"thread_ts": "1700000000.0001"})

	_, ok := matcher.Match(threaded, &models.Trigger{})
	assert.False(t, ok, "thread replies are excluded by default")

	_, ok = matcher.Match(threaded, &models.Trigger{Input: map[string]any{"include_thread_replies": true}})
	assert.True(t, ok)
}

func TestReactionMatcher(t *testing.T) {
	matcher := reactionMatcher{}
	event := map[string]any{"event": map[string]any{
		"type":     "reaction_added",
		"reaction": "thumbsup",
		"user":     "U1",
		"item":     map[string]any{"channel": "C1"},
	}}

	_, ok := matcher.Match(event, &models.Trigger{Input: map[string]any{"reaction": "thumbsup"}})
	assert.True(t, ok)

	_, ok = matcher.Match(event, &models.Trigger{Input: map[string]any{"reaction": "eyes"}})
	assert.False(t, ok)

	_, ok = matcher.Match(event, &models.Trigger{Input: map[string]any{"channel_id": "C1"}})
	assert.True(t, ok)

	_, ok = matcher.Match(event, &models.Trigger{Input: map[string]any{"channel_id": "C2"}})
	assert.False(t, ok)
}

func TestHandshakeAnswersURLVerification(t *testing.T) {
	provider := NewProvider(testLogger())

	status, body, handled := provider.Handshake(http.Header{}, map[string]any{
		"type":      "url_verification",
		"challenge": "ch-123",
	})
	require.True(t, handled)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"challenge":"ch-123"}`, string(body))

	_, _, handled = provider.Handshake(http.Header{}, messageEvent(nil))
	assert.False(t, handled)
}

func TestLifecycleCreateAuthenticatesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth.test", r.URL.Path)

		if r.Header.Get("Authorization") != "Bearer xoxb-valid" {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"team_id": "T1",
			"team":    "acme",
			"user_id": "UBOT",
		})
	}))
	defer server.Close()

	lifecycle := &subscriptionLifecycle{client: server.Client(), baseURL: server.URL}

	state, err := lifecycle.Create(context.Background(), protocol.LifecycleRequest{
		Secrets: map[string]string{"bot_token": "xoxb-valid"},
	})
	require.NoError(t, err)
	assert.Equal(t, "T1", state["team_id"])
	assert.Equal(t, "UBOT", state["bot_user_id"])

	_, err = lifecycle.Create(context.Background(), protocol.LifecycleRequest{
		Secrets: map[string]string{"bot_token": "xoxb-bad"},
	})
	assert.ErrorContains(t, err, "invalid_auth")

	_, err = lifecycle.Create(context.Background(), protocol.LifecycleRequest{})
	assert.ErrorIs(t, err, errMissingBotToken)
}
