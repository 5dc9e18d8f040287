package commands

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// DefaultMinAmountMinor is the smallest charge the gateway accepts, in minor units.
const DefaultMinAmountMinor = 100

type InitiatePaymentCommand struct {
	OrderID int64
	Email   string
}

func (c InitiatePaymentCommand) Validate() error {
	if c.OrderID <= 0 {
		return domain.Validationf("order_id is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return domain.Validationf("email is required")
	}
	if !strings.Contains(email, "@") {
		return domain.Validationf("email must be valid")
	}
	return nil
}

func (c InitiatePaymentCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("order.id", c.OrderID)}
}

type InitiatedPayment struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	Message          string `json:"message"`
}

func (r *InitiatedPayment) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("payment.reference", r.Reference)}
}

type InitiatePaymentCommandHandler struct {
	orders         ports.OrderRepository
	payments       ports.PaymentRepository
	gateway        ports.PaymentGateway
	callbackURL    string
	minAmountMinor int64
	now            func() time.Time
}

func NewInitiatePaymentCommandHandler(
	orders ports.OrderRepository,
	payments ports.PaymentRepository,
	gateway ports.PaymentGateway,
	callbackURL string,
	minAmountMinor int64,
) *InitiatePaymentCommandHandler {
	if minAmountMinor <= 0 {
		minAmountMinor = DefaultMinAmountMinor
	}
	return &InitiatePaymentCommandHandler{
		orders:         orders,
		payments:       payments,
		gateway:        gateway,
		callbackURL:    callbackURL,
		minAmountMinor: minAmountMinor,
		now:            time.Now,
	}
}

// Handle records a fresh pending payment and starts the gateway transaction.
// The pending row is committed before the gateway call and is kept when the
// gateway fails.
func (h *InitiatePaymentCommandHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*InitiatedPayment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := order.Payable(); err != nil {
		return nil, err
	}

	amountMinor := domain.ToMinorUnits(order.TotalAmount)
	if amountMinor < h.minAmountMinor {
		return nil, domain.Validationf("amount %d is below the minimum chargeable %d", amountMinor, h.minAmountMinor)
	}

	regs, err := h.orders.ListRegistrations(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, domain.Validationf("order %d has no registrations", order.ID)
	}

	payment := domain.Payment{
		OrderID:       order.ID,
		TransactionID: domain.NewReference(order.ID),
		Amount:        order.TotalAmount,
		Status:        domain.PaymentPending,
		PaymentDate:   h.now().UTC(),
	}
	if err := h.payments.Create(ctx, &payment); err != nil {
		return nil, err
	}

	res, err := h.gateway.Initialize(ctx, ports.InitializeRequest{
		Email:       strings.TrimSpace(cmd.Email),
		AmountMinor: amountMinor,
		CallbackURL: h.callbackURL,
		Reference:   payment.TransactionID,
	})
	if err != nil {
		return nil, err
	}

	return &InitiatedPayment{
		AuthorizationURL: res.AuthorizationURL,
		Reference:        payment.TransactionID,
		Message:          res.Message,
	}, nil
}
