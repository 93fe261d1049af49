package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/protocol"
)

func TestCronLifecycleValidatesExpression(t *testing.T) {
	provider := NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))

	lifecycle, ok := provider.Lifecycle(models.TriggerTypeCron)
	require.True(t, ok)

	ctx := context.Background()

	state, err := lifecycle.Create(ctx, protocol.LifecycleRequest{
		Input: map[string]any{"cron": "*/5 * * * *"},
	})
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", state["cron"])

	_, err = lifecycle.Create(ctx, protocol.LifecycleRequest{
		Input: map[string]any{"cron": "not a cron"},
	})
	assert.ErrorContains(t, err, "invalid cron expression")

	_, err = lifecycle.Create(ctx, protocol.LifecycleRequest{})
	assert.ErrorContains(t, err, "missing cron expression")
}

func TestProviderSurface(t *testing.T) {
	provider := NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, models.ProviderTypeSchedule, provider.ID())

	_, ok := provider.Lifecycle(models.TriggerTypeWebhook)
	assert.False(t, ok)

	_, ok = provider.Matcher(models.TriggerTypeCron)
	assert.False(t, ok, "schedule triggers fire from the scheduler, not from deliveries")

	schema := provider.Schema(models.TriggerTypeOnSchedule)
	require.NotNil(t, schema)
	assert.Equal(t, []any{"cron"}, schema["required"])
}
