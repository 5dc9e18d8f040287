package queries

import (
	"context"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID int64
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if q.OrderID <= 0 {
		return domain.Validationf("order_id must be positive")
	}
	return nil
}

// OrderDetails is an order with its line items and payment attempts.
type OrderDetails struct {
	Order         domain.Order          `json:"order"`
	Registrations []domain.Registration `json:"registrations"`
	Payments      []domain.Payment      `json:"payments"`
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if found.
type GetOrderQueryHandler struct {
	orders   ports.OrderRepository
	payments ports.PaymentRepository
}

func NewGetOrderQueryHandler(orders ports.OrderRepository, payments ports.PaymentRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{orders: orders, payments: payments}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*OrderDetails, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	regs, err := h.orders.ListRegistrations(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	payments, err := h.payments.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{
		Order:         *order,
		Registrations: nonNil(regs),
		Payments:      nonNil(payments),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
