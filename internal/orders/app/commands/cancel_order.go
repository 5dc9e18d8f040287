package commands

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

type CancelOrderCommand struct {
	OrderID int64
}

func (c CancelOrderCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("order.id", c.OrderID)}
}

// CancelOrderCommandHandler moves a pending order to cancelled.
type CancelOrderCommandHandler struct {
	orders ports.OrderRepository
}

func NewCancelOrderCommandHandler(orders ports.OrderRepository) *CancelOrderCommandHandler {
	return &CancelOrderCommandHandler{orders: orders}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	if cmd.OrderID <= 0 {
		return nil, domain.Validationf("order_id must be positive")
	}

	if err := h.orders.UpdateStatus(ctx, cmd.OrderID, domain.OrderPending, domain.OrderCancelled); err != nil {
		return nil, err
	}

	return h.orders.GetByID(ctx, cmd.OrderID)
}

type DeleteOrderCommand struct {
	OrderID int64
}

func (c DeleteOrderCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("order.id", c.OrderID)}
}

// DeleteOrderCommandHandler removes an order with its registrations and payments.
type DeleteOrderCommandHandler struct {
	orders ports.OrderRepository
}

func NewDeleteOrderCommandHandler(orders ports.OrderRepository) *DeleteOrderCommandHandler {
	return &DeleteOrderCommandHandler{orders: orders}
}

// Handle returns a nil struct pointer so it fits the generic Handler shape.
func (h *DeleteOrderCommandHandler) Handle(ctx context.Context, cmd DeleteOrderCommand) (*struct{}, error) {
	if cmd.OrderID <= 0 {
		return nil, domain.Validationf("order_id must be positive")
	}
	return nil, h.orders.Delete(ctx, cmd.OrderID)
}
