package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal     metric.Int64Counter
	paymentsInitiatedTotal metric.Int64Counter
	verificationsTotal     metric.Int64Counter
	commandDuration        metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.paymentsInitiatedTotal, err = meter.Int64Counter(
		"payments_initiated_total",
		metric.WithDescription("Total number of payment initiation attempts"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_initiated_total counter: %w", err)
	}

	m.verificationsTotal, err = meter.Int64Counter(
		"payment_verifications_total",
		metric.WithDescription("Total number of payment verifications by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_verifications_total counter: %w", err)
	}

	m.commandDuration, err = meter.Float64Histogram(
		"command_duration_seconds",
		metric.WithDescription("Duration of command handling"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create command_duration histogram: %w", err)
	}

	return m, nil
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", statusLabel(success)),
	))
}

// RecordPaymentInitiated counts an initiation attempt by error kind.
func (m *Metrics) RecordPaymentInitiated(ctx context.Context, kind string) {
	m.paymentsInitiatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", kind),
	))
}

// RecordVerification counts a verification by its redirect outcome or error code.
func (m *Metrics) RecordVerification(ctx context.Context, outcome string) {
	m.verificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordCommandDuration(ctx context.Context, command string, durationSeconds float64, kind string) {
	m.commandDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", kind),
	))
}
