package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/kafka"
	"github.com/dejobratic/coursepay/internal/orders/ports"
	"github.com/dejobratic/coursepay/internal/telemetry"
)

// ObservableEventBus traces and meters every publish of the wrapped bus.
type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{bus: bus, metrics: metrics}
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, orderID int64) error {
	return e.observe(ctx, "EventBus.PublishOrderCreated", kafka.EventOrderCreated,
		[]attribute.KeyValue{attribute.Int64("order.id", orderID)},
		func(ctx context.Context) error { return e.bus.PublishOrderCreated(ctx, orderID) },
	)
}

func (e *ObservableEventBus) PublishPaymentCompleted(ctx context.Context, event ports.PaymentEvent) error {
	return e.observe(ctx, "EventBus.PublishPaymentCompleted", kafka.EventPaymentCompleted, paymentAttributes(event),
		func(ctx context.Context) error { return e.bus.PublishPaymentCompleted(ctx, event) },
	)
}

func (e *ObservableEventBus) PublishPaymentFailed(ctx context.Context, event ports.PaymentEvent) error {
	return e.observe(ctx, "EventBus.PublishPaymentFailed", kafka.EventPaymentFailed, paymentAttributes(event),
		func(ctx context.Context) error { return e.bus.PublishPaymentFailed(ctx, event) },
	)
}

func (e *ObservableEventBus) observe(ctx context.Context, spanName, eventType string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	attrs = append(attrs, attribute.String("event.type", eventType))
	return telemetry.InSpan(ctx, spanName, attrs, func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		e.metrics.RecordPublish(ctx, eventType, time.Since(start).Seconds(), err)
		return err
	})
}

func paymentAttributes(event ports.PaymentEvent) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.id", event.OrderID),
		attribute.Int64("payment.id", event.PaymentID),
		attribute.String("payment.reference", event.Reference),
	}
}
