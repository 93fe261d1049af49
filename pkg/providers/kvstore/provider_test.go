package kvstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

func newTestProvider(t *testing.T) (*Provider, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)), client), server
}

func TestWatchLifecycleRegistersAndRemovesWatch(t *testing.T) {
	provider, server := newTestProvider(t)

	lifecycle, ok := provider.Lifecycle(TriggerTypeOnChange)
	require.True(t, ok)

	ctx := context.Background()
	req := protocol.LifecycleRequest{
		TriggerID: "trg-1",
		Input:     map[string]any{"key": "orders"},
	}

	state, err := lifecycle.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "orders", state["key"])

	members, err := server.SMembers(watchKeyPrefix + "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"trg-1"}, members)

	req.State = state
	require.NoError(t, lifecycle.Destroy(ctx, req))

	assert.False(t, server.Exists(watchKeyPrefix+"orders"))
}

func TestWatchLifecycleRequiresKey(t *testing.T) {
	provider, _ := newTestProvider(t)

	lifecycle, ok := provider.Lifecycle(TriggerTypeOnChange)
	require.True(t, ok)

	_, err := lifecycle.Create(context.Background(), protocol.LifecycleRequest{TriggerID: "trg-1"})
	assert.ErrorContains(t, err, "missing key")
}

func TestProviderWithoutRedisSkipsLifecycle(t *testing.T) {
	provider := NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	_, ok := provider.Lifecycle(TriggerTypeOnChange)
	assert.False(t, ok)

	_, ok = provider.Matcher(TriggerTypeOnChange)
	assert.True(t, ok, "matching works without a redis client")
}

func TestChangeMatcher(t *testing.T) {
	matcher := changeMatcher{}
	trigger := &models.Trigger{Input: map[string]any{"key": "orders"}}

	_, ok := matcher.Match(map[string]any{"key": "orders", "op": "set"}, trigger)
	assert.True(t, ok)

	_, ok = matcher.Match(map[string]any{"key": "users", "op": "set"}, trigger)
	assert.False(t, ok)

	scoped := &models.Trigger{Input: map[string]any{"key": "orders", "op": "delete"}}

	_, ok = matcher.Match(map[string]any{"key": "orders", "op": "set"}, scoped)
	assert.False(t, ok)

	_, ok = matcher.Match(map[string]any{"key": "orders", "op": "delete"}, scoped)
	assert.True(t, ok)
}

func TestChangeMatcherAllowDropsWorkflowWrites(t *testing.T) {
	matcher := changeMatcher{}

	assert.True(t, matcher.Allow(map[string]any{"key": "orders"}))
	assert.False(t, matcher.Allow(map[string]any{"key": "orders", "source": "workflow"}))
}
