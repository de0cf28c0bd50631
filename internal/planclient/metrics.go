package planclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/runcoach/runcoach/internal/planclient"

// metrics holds the OpenTelemetry instruments for plan submissions.
type metrics struct {
	attemptDuration metric.Float64Histogram
	attemptTotal    metric.Int64Counter
	submitTotal     metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)

	attemptDuration, err := meter.Float64Histogram(
		"plan.client.attempt.duration",
		metric.WithDescription("Duration of individual plan request attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	attemptTotal, err := meter.Int64Counter(
		"plan.client.attempt.total",
		metric.WithDescription("Total number of plan request attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	submitTotal, err := meter.Int64Counter(
		"plan.client.submit.total",
		metric.WithDescription("Total number of plan submissions by outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		attemptDuration: attemptDuration,
		attemptTotal:    attemptTotal,
		submitTotal:     submitTotal,
	}, nil
}

func (m *metrics) recordAttempt(ctx context.Context, d time.Duration, f *Failure) {
	outcome := "success"
	if f != nil {
		outcome = f.Kind.String()
	}
	opts := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attemptDuration.Record(ctx, d.Seconds(), opts)
	m.attemptTotal.Add(ctx, 1, opts)
}

func (m *metrics) recordSubmit(ctx context.Context, outcome string, attempts int) {
	m.submitTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("attempts", attempts),
	))
}
