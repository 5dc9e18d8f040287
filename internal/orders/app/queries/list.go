package queries

import (
	"context"
	"math"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const (
	maxPageSize = 100
	maxPage     = math.MaxInt32
)

// ListOrdersQuery pages through orders, optionally narrowed to one status.
type ListOrdersQuery struct {
	Status   string
	Page     int
	PageSize int
}

func (q ListOrdersQuery) filter() (ports.ListFilter, error) {
	if err := validatePage(q.Page, q.PageSize); err != nil {
		return ports.ListFilter{}, err
	}
	filter := ports.ListFilter{Page: ports.Page{Page: q.Page, PageSize: q.PageSize}}
	if q.Status != "" {
		status := domain.OrderStatus(q.Status)
		if !status.Valid() {
			return ports.ListFilter{}, domain.Validationf("unknown order status %q", q.Status)
		}
		filter.Status = &status
	}
	return filter, nil
}

type ListOrdersQueryHandler struct {
	orders ports.OrderRepository
}

func NewListOrdersQueryHandler(orders ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{orders: orders}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	filter, err := query.filter()
	if err != nil {
		return nil, err
	}
	orders, err := h.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return nonNil(orders), nil
}

// ListPaymentsQuery pages through all payment attempts, newest first.
type ListPaymentsQuery struct {
	Page     int
	PageSize int
}

type ListPaymentsQueryHandler struct {
	payments ports.PaymentRepository
}

func NewListPaymentsQueryHandler(payments ports.PaymentRepository) *ListPaymentsQueryHandler {
	return &ListPaymentsQueryHandler{payments: payments}
}

func (h *ListPaymentsQueryHandler) Handle(ctx context.Context, query ListPaymentsQuery) ([]domain.Payment, error) {
	if err := validatePage(query.Page, query.PageSize); err != nil {
		return nil, err
	}
	payments, err := h.payments.List(ctx, ports.Page{Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, err
	}
	return nonNil(payments), nil
}

func validatePage(page, size int) error {
	if page < 0 || page > maxPage {
		return domain.Validationf("page must be between 1 and %d, or 0 for the first page", maxPage)
	}
	if size < 0 || size > maxPageSize {
		return domain.Validationf("page_size must be between 1 and %d, or 0 for the default", maxPageSize)
	}
	return nil
}
