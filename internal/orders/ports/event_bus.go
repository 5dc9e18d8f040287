package ports

import "context"

// PaymentEvent describes a settled payment attempt.
type PaymentEvent struct {
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
}

// EventBus defines the contract for publishing order and payment lifecycle events.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, orderID int64) error
	PublishPaymentCompleted(ctx context.Context, event PaymentEvent) error
	PublishPaymentFailed(ctx context.Context, event PaymentEvent) error
}
