package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/database"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
	"github.com/dejobratic/coursepay/internal/telemetry"
)

// observe runs fn inside a span named spanName and records its duration under operation.
func observe(ctx context.Context, metrics *database.Metrics, spanName, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	attrs = append(attrs, attribute.String("db.operation", operation))
	return telemetry.InSpan(ctx, spanName, attrs, func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)
		return err
	})
}

type ObservableOrderRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableOrderRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableOrderRepository {
	return &ObservableOrderRepository{repo: repo, metrics: metrics}
}

func (r *ObservableOrderRepository) CreateWithRegistrations(ctx context.Context, order *domain.Order, regs []domain.Registration) error {
	return observe(ctx, r.metrics, "OrderRepository.CreateWithRegistrations", "create_order",
		[]attribute.KeyValue{
			attribute.Int64("user.id", order.UserID),
			attribute.Int("order.registration_count", len(regs)),
		},
		func(ctx context.Context) error {
			return r.repo.CreateWithRegistrations(ctx, order, regs)
		},
	)
}

func (r *ObservableOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order *domain.Order
	err := observe(ctx, r.metrics, "OrderRepository.GetByID", "get_order_by_id",
		[]attribute.KeyValue{attribute.Int64("order.id", id)},
		func(ctx context.Context) (err error) {
			order, err = r.repo.GetByID(ctx, id)
			return err
		},
	)
	return order, err
}

func (r *ObservableOrderRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}

	var orders []domain.Order
	err := observe(ctx, r.metrics, "OrderRepository.List", "list_orders", attrs,
		func(ctx context.Context) (err error) {
			orders, err = r.repo.List(ctx, filter)
			return err
		},
	)
	return orders, err
}

func (r *ObservableOrderRepository) ListRegistrations(ctx context.Context, orderID int64) ([]domain.Registration, error) {
	var regs []domain.Registration
	err := observe(ctx, r.metrics, "OrderRepository.ListRegistrations", "list_registrations",
		[]attribute.KeyValue{attribute.Int64("order.id", orderID)},
		func(ctx context.Context) (err error) {
			regs, err = r.repo.ListRegistrations(ctx, orderID)
			return err
		},
	)
	return regs, err
}

func (r *ObservableOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	return observe(ctx, r.metrics, "OrderRepository.UpdateStatus", "update_order_status",
		[]attribute.KeyValue{
			attribute.Int64("order.id", id),
			attribute.String("order.old_status", string(from)),
			attribute.String("order.new_status", string(to)),
		},
		func(ctx context.Context) error {
			return r.repo.UpdateStatus(ctx, id, from, to)
		},
	)
}

func (r *ObservableOrderRepository) Delete(ctx context.Context, id int64) error {
	return observe(ctx, r.metrics, "OrderRepository.Delete", "delete_order",
		[]attribute.KeyValue{attribute.Int64("order.id", id)},
		func(ctx context.Context) error {
			return r.repo.Delete(ctx, id)
		},
	)
}

type ObservablePaymentRepository struct {
	repo    ports.PaymentRepository
	metrics *database.Metrics
}

func NewObservablePaymentRepository(repo ports.PaymentRepository, metrics *database.Metrics) *ObservablePaymentRepository {
	return &ObservablePaymentRepository{repo: repo, metrics: metrics}
}

func (r *ObservablePaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return observe(ctx, r.metrics, "PaymentRepository.Create", "create_payment",
		[]attribute.KeyValue{
			attribute.Int64("order.id", payment.OrderID),
			attribute.String("payment.reference", payment.TransactionID),
		},
		func(ctx context.Context) error {
			return r.repo.Create(ctx, payment)
		},
	)
}

func (r *ObservablePaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := observe(ctx, r.metrics, "PaymentRepository.GetByReference", "get_payment_by_reference",
		[]attribute.KeyValue{attribute.String("payment.reference", reference)},
		func(ctx context.Context) (err error) {
			payment, err = r.repo.GetByReference(ctx, reference)
			return err
		},
	)
	return payment, err
}

func (r *ObservablePaymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := observe(ctx, r.metrics, "PaymentRepository.ListByOrder", "list_payments_by_order",
		[]attribute.KeyValue{attribute.Int64("order.id", orderID)},
		func(ctx context.Context) (err error) {
			payments, err = r.repo.ListByOrder(ctx, orderID)
			return err
		},
	)
	return payments, err
}

func (r *ObservablePaymentRepository) List(ctx context.Context, page ports.Page) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := observe(ctx, r.metrics, "PaymentRepository.List", "list_payments",
		[]attribute.KeyValue{
			attribute.Int("page", page.Page),
			attribute.Int("page_size", page.PageSize),
		},
		func(ctx context.Context) (err error) {
			payments, err = r.repo.List(ctx, page)
			return err
		},
	)
	return payments, err
}

func (r *ObservablePaymentRepository) Settle(ctx context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error) {
	var settlement *domain.Settlement
	err := observe(ctx, r.metrics, "PaymentRepository.Settle", "settle_payment",
		[]attribute.KeyValue{
			attribute.String("payment.reference", reference),
			attribute.String("payment.target_status", string(target)),
		},
		func(ctx context.Context) (err error) {
			settlement, err = r.repo.Settle(ctx, reference, target, at)
			return err
		},
	)
	return settlement, err
}
