package app

import (
	"context"
	"log/slog"

	"github.com/dejobratic/coursepay/internal/orders/app/commands"
	"github.com/dejobratic/coursepay/internal/orders/app/queries"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/metrics"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// Dependencies collects the ports the service is built from.
type Dependencies struct {
	Orders      ports.OrderRepository
	Payments    ports.PaymentRepository
	Catalog     ports.Catalog
	Gateway     ports.PaymentGateway
	Cache       ports.SuccessDetailCache
	Events      ports.EventBus
	Idempotency ports.IdempotencyStore
}

// PaymentSettings configures the payment use cases.
type PaymentSettings struct {
	CallbackURL    string
	ReturnPath     string
	MinAmountMinor int64
}

// Service bundles use cases for handling orders and payments via the API.
type Service struct {
	idemStore ports.IdempotencyStore

	createOrder     commands.Handler[commands.CreateOrderCommand, *commands.CreatedOrder]
	cancelOrder     commands.Handler[commands.CancelOrderCommand, *domain.Order]
	deleteOrder     commands.Handler[commands.DeleteOrderCommand, *struct{}]
	initiatePayment commands.Handler[commands.InitiatePaymentCommand, *commands.InitiatedPayment]
	verifyPayment   commands.Handler[commands.VerifyPaymentCommand, *commands.Redirect]

	getOrder       *queries.GetOrderQueryHandler
	listOrders     *queries.ListOrdersQueryHandler
	listPayments   *queries.ListPaymentsQueryHandler
	successDetails *queries.TakeSuccessDetailsQueryHandler
}

// NewService wires required dependencies.
func NewService(deps Dependencies, settings PaymentSettings, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		idemStore: deps.Idempotency,

		createOrder: commands.NewObservableHandler[commands.CreateOrderCommand, *commands.CreatedOrder]("CreateOrder",
			commands.NewCreateOrderCommandHandler(deps.Orders, deps.Catalog, deps.Events),
			logger, m,
			func(ctx context.Context, _ *commands.CreatedOrder, err error) {
				m.RecordOrderCreated(ctx, err == nil)
			},
		),
		cancelOrder: commands.NewObservableHandler[commands.CancelOrderCommand, *domain.Order]("CancelOrder",
			commands.NewCancelOrderCommandHandler(deps.Orders), logger, m, nil),
		deleteOrder: commands.NewObservableHandler[commands.DeleteOrderCommand, *struct{}]("DeleteOrder",
			commands.NewDeleteOrderCommandHandler(deps.Orders), logger, m, nil),
		initiatePayment: commands.NewObservableHandler[commands.InitiatePaymentCommand, *commands.InitiatedPayment]("InitiatePayment",
			commands.NewInitiatePaymentCommandHandler(deps.Orders, deps.Payments, deps.Gateway, settings.CallbackURL, settings.MinAmountMinor),
			logger, m,
			func(ctx context.Context, _ *commands.InitiatedPayment, err error) {
				m.RecordPaymentInitiated(ctx, domain.Kind(err))
			},
		),
		verifyPayment: commands.NewObservableHandler[commands.VerifyPaymentCommand, *commands.Redirect]("VerifyPayment",
			commands.NewVerifyPaymentCommandHandler(deps.Orders, deps.Payments, deps.Gateway, deps.Cache, deps.Events, settings.ReturnPath),
			logger, m,
			func(ctx context.Context, r *commands.Redirect, _ error) {
				if r != nil {
					m.RecordVerification(ctx, r.Label())
				}
			},
		),

		getOrder:       queries.NewGetOrderQueryHandler(deps.Orders, deps.Payments),
		listOrders:     queries.NewListOrdersQueryHandler(deps.Orders),
		listPayments:   queries.NewListPaymentsQueryHandler(deps.Payments),
		successDetails: queries.NewTakeSuccessDetailsQueryHandler(deps.Cache),
	}
}

// CreateOrderInput captures payload for creating an order.
type CreateOrderInput struct {
	UserID    int64   `json:"user_id"`
	FullName  string  `json:"full_name"`
	Phone     string  `json:"phone"`
	CourseIDs []int64 `json:"course_ids"`
}

// CreateOrder prices the requested courses and stores a pending order.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*commands.CreatedOrder, error) {
	return s.createOrder.Handle(ctx, commands.CreateOrderCommand{
		UserID:    input.UserID,
		FullName:  input.FullName,
		Phone:     input.Phone,
		CourseIDs: input.CourseIDs,
	})
}

// InitiatePaymentInput captures payload for starting a payment attempt.
type InitiatePaymentInput struct {
	OrderID int64  `json:"order_id"`
	Email   string `json:"email"`
}

// InitiatePayment records a pending payment and returns the checkout URL.
func (s *Service) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*commands.InitiatedPayment, error) {
	return s.initiatePayment.Handle(ctx, commands.InitiatePaymentCommand{
		OrderID: input.OrderID,
		Email:   input.Email,
	})
}

// VerifyPayment reconciles a gateway redirect and tells the caller where to send the browser.
func (s *Service) VerifyPayment(ctx context.Context, reference string) *commands.Redirect {
	redirect, _ := s.verifyPayment.Handle(ctx, commands.VerifyPaymentCommand{Reference: reference})
	return redirect
}

// TakeSuccessDetails returns the success snapshot for token, at most once.
func (s *Service) TakeSuccessDetails(ctx context.Context, token string) (*domain.SuccessSnapshot, error) {
	return s.successDetails.Handle(ctx, queries.TakeSuccessDetailsQuery{Token: token})
}

// GetOrder retrieves an order with its registrations and payments.
func (s *Service) GetOrder(ctx context.Context, id int64) (*queries.OrderDetails, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, query)
}

// ListPayments returns payment attempts newest first.
func (s *Service) ListPayments(ctx context.Context, query queries.ListPaymentsQuery) ([]domain.Payment, error) {
	return s.listPayments.Handle(ctx, query)
}

// CancelOrder cancels a pending order.
func (s *Service) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.cancelOrder.Handle(ctx, commands.CancelOrderCommand{OrderID: id})
}

// DeleteOrder removes an order together with its registrations and payments.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	_, err := s.deleteOrder.Handle(ctx, commands.DeleteOrderCommand{OrderID: id})
	return err
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
