package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/runcoach/runcoach/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "runcoach-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_Enabled(t *testing.T) {
	ctx := context.Background()

	// gRPC exporters connect lazily, so no collector is needed.
	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "runcoach-api",
		OTLPEndpoint: "127.0.0.1:4317",
		Enabled:      true,
	})
	require.NoError(t, err)
	assert.True(t, provider.Enabled())

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = provider.Shutdown(shutdownCtx)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	assert.NoError(t, (&telemetry.Provider{}).Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := map[string]struct {
		ratio float64
		want  string
	}{
		"zero means always": {ratio: 0, want: "ParentBased{root:AlwaysOnSampler"},
		"one means always":  {ratio: 1, want: "ParentBased{root:AlwaysOnSampler"},
		"fraction":          {ratio: 0.25, want: "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, telemetry.Sampler(tt.ratio).Description(), tt.want)
		})
	}
}

func TestSampler_KeepsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	result := telemetry.Sampler(0.0001).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: trace.ContextWithRemoteSpanContext(context.Background(), parent),
		TraceID:       parent.TraceID(),
		Name:          "POST /api/generate-plan",
	})

	assert.Equal(t, sdktrace.RecordAndSample, result.Decision)
}

func TestPropagator_Fields(t *testing.T) {
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, telemetry.Propagator().Fields())
}
