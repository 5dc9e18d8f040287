package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// Event types, also used as topic suffixes.
const (
	EventOrderCreated     = "order.created"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type orderCreatedEvent struct {
	OrderID    int64     `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type paymentEvent struct {
	ports.PaymentEvent
	OccurredAt time.Time `json:"occurred_at"`
}

// EventBus publishes order and payment lifecycle events to Kafka, one topic
// per event type, keyed by order id so an order's events stay ordered.
type EventBus struct {
	writer      messageWriter
	topicPrefix string
	now         func() time.Time
}

// Events are published one at a time from request handlers.
const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// NewEventBus builds a producer for brokers. Topics are named topicPrefix + event type.
func NewEventBus(brokers []string, topicPrefix string) *EventBus {
	slog.Info("kafka producer initialized", "brokers", brokers, "topic_prefix", topicPrefix)
	return newEventBus(newWriter(brokers), topicPrefix)
}

func newWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
	}
}

func newEventBus(w messageWriter, topicPrefix string) *EventBus {
	return &EventBus{writer: w, topicPrefix: topicPrefix, now: time.Now}
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, orderID int64) error {
	return b.publish(ctx, EventOrderCreated, orderID, orderCreatedEvent{
		OrderID:    orderID,
		OccurredAt: b.now().UTC(),
	})
}

func (b *EventBus) PublishPaymentCompleted(ctx context.Context, event ports.PaymentEvent) error {
	return b.publish(ctx, EventPaymentCompleted, event.OrderID, paymentEvent{PaymentEvent: event, OccurredAt: b.now().UTC()})
}

func (b *EventBus) PublishPaymentFailed(ctx context.Context, event ports.PaymentEvent) error {
	return b.publish(ctx, EventPaymentFailed, event.OrderID, paymentEvent{PaymentEvent: event, OccurredAt: b.now().UTC()})
}

// Topic returns the topic an event type is written to.
func (b *EventBus) Topic(eventType string) string {
	return b.topicPrefix + eventType
}

func (b *EventBus) publish(ctx context.Context, eventType string, orderID int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafkago.Message{
		Topic: b.Topic(eventType),
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %d: %w", eventType, orderID, err)
	}
	return nil
}

func (b *EventBus) Close() error {
	return b.writer.Close()
}
