package kafka

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// NoopEventBus drops events after a debug log. It stands in for Kafka when no
// brokers are configured.
type NoopEventBus struct {
	dropped atomic.Int64
}

var _ ports.EventBus = (*NoopEventBus)(nil)

func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) PublishOrderCreated(ctx context.Context, orderID int64) error {
	return n.drop(ctx, EventOrderCreated, slog.Int64("order_id", orderID))
}

func (n *NoopEventBus) PublishPaymentCompleted(ctx context.Context, event ports.PaymentEvent) error {
	return n.drop(ctx, EventPaymentCompleted, slog.Int64("order_id", event.OrderID), slog.String("reference", event.Reference))
}

func (n *NoopEventBus) PublishPaymentFailed(ctx context.Context, event ports.PaymentEvent) error {
	return n.drop(ctx, EventPaymentFailed, slog.Int64("order_id", event.OrderID), slog.String("reference", event.Reference))
}

func (n *NoopEventBus) drop(ctx context.Context, eventType string, attrs ...slog.Attr) error {
	n.dropped.Add(1)
	slog.LogAttrs(ctx, slog.LevelDebug, "event dropped", append(attrs, slog.String("event_type", eventType))...)
	return nil
}

// Dropped reports how many events were discarded so far.
func (n *NoopEventBus) Dropped() int64 {
	return n.dropped.Load()
}

func (n *NoopEventBus) Close() error {
	if dropped := n.dropped.Load(); dropped > 0 {
		slog.Info("noop event bus closed", "dropped_events", dropped)
	}
	return nil
}
