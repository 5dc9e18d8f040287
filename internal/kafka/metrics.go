package kafka

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Publish outcomes recorded on the event metrics.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Metrics records how domain events fare on their way to the broker.
type Metrics struct {
	publishDuration metric.Float64Histogram
	published       metric.Int64Counter
	failures        metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	publishDuration, err := meter.Float64Histogram(
		"event_publish_duration_seconds",
		metric.WithDescription("Time to hand a domain event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create event_publish_duration histogram: %w", err)
	}

	published, err := meter.Int64Counter(
		"domain_events_published_total",
		metric.WithDescription("Order and payment events handed to the event bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("create domain_events_published counter: %w", err)
	}

	failures, err := meter.Int64Counter(
		"domain_events_failed_total",
		metric.WithDescription("Events the broker did not acknowledge"),
	)
	if err != nil {
		return nil, fmt.Errorf("create domain_events_failed counter: %w", err)
	}

	return &Metrics{publishDuration: publishDuration, published: published, failures: failures}, nil
}

// Outcome classifies a publish error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

func (m *Metrics) RecordPublish(ctx context.Context, eventType string, durationSeconds float64, err error) {
	outcome := Outcome(err)
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)
	m.publishDuration.Record(ctx, durationSeconds, attrs)
	m.published.Add(ctx, 1, attrs)
	if outcome != OutcomeOK {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	}
}
