package otelhelper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/flowhook/flowhook"

// SetupMeterProvider installs the SDK meter provider. Without it the global
// meter is a no-op, which is fine for tests.
func SetupMeterProvider() *sdkmetric.MeterProvider {
	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)

	return provider
}

// OrphanedResourceCounter counts destroy failures that were swallowed during
// trigger teardown. Every increment is an external subscription that may
// have outlived its database record; operators reconcile those out-of-band.
func OrphanedResourceCounter() (metric.Int64Counter, error) {
	counter, err := otel.Meter(meterName).Int64Counter(
		"flowhook.provision.orphaned_resources",
		metric.WithDescription("External resources whose destroy call failed during trigger teardown"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orphaned resources counter: %w", err)
	}

	return counter, nil
}

// CountOrphan records one swallowed destroy failure.
func CountOrphan(ctx context.Context, counter metric.Int64Counter, providerType, triggerType string) {
	if counter == nil {
		return
	}

	counter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(ProviderTypeKey, providerType),
			attribute.String(TriggerTypeKey, triggerType),
		))
}
