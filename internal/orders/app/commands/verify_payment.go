package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// DefaultReturnPath is where the browser lands after verification.
const DefaultReturnPath = "/registration"

// Redirect error codes.
const (
	CodeMissingReference   = "missing_reference"
	CodeGatewayRejected    = "gateway_rejected"
	CodeGatewayUnavailable = "gateway_unavailable"
	CodePaymentNotFound    = "payment_not_found"
	CodeOrderNotFound      = "order_not_found"
	CodeAmountMismatch     = "amount_mismatch"
	CodeOrderAlreadyPaid   = "order_already_paid"
	CodeDBCommitError      = "db_commit_error"
	CodeDBCommitFailed     = "db_commit_failed"
	CodeLookupFailed       = "lookup_failed"
)

// Redirect outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeError     = "error"
)

type VerifyPaymentCommand struct {
	Reference string
}

func (c VerifyPaymentCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("payment.reference", c.Reference)}
}

// Redirect tells the browser where to go once verification finished.
// ErrorCode is set only when Outcome is OutcomeError.
type Redirect struct {
	Outcome   string
	ErrorCode string
	OrderID   int64
	Token     string
	Location  string
}

func (r *Redirect) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("verification.outcome", r.Outcome),
		attribute.String("verification.error_code", r.ErrorCode),
		attribute.Int64("order.id", r.OrderID),
	}
}

// Label is the outcome, or the error code for errored verifications.
func (r *Redirect) Label() string {
	if r.Outcome == OutcomeError {
		return r.ErrorCode
	}
	return r.Outcome
}

type VerifyPaymentCommandHandler struct {
	orders     ports.OrderRepository
	payments   ports.PaymentRepository
	gateway    ports.PaymentGateway
	cache      ports.SuccessDetailCache
	events     ports.EventBus
	returnPath string
	now        func() time.Time
}

func NewVerifyPaymentCommandHandler(
	orders ports.OrderRepository,
	payments ports.PaymentRepository,
	gateway ports.PaymentGateway,
	cache ports.SuccessDetailCache,
	events ports.EventBus,
	returnPath string,
) *VerifyPaymentCommandHandler {
	if returnPath == "" {
		returnPath = DefaultReturnPath
	}
	return &VerifyPaymentCommandHandler{
		orders:     orders,
		payments:   payments,
		gateway:    gateway,
		cache:      cache,
		events:     events,
		returnPath: returnPath,
		now:        time.Now,
	}
}

// Handle re-verifies the reference with the gateway and applies the outcome.
// Every failure becomes an error redirect, so the returned error is always nil.
func (h *VerifyPaymentCommandHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*Redirect, error) {
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		return h.fail(ctx, CodeMissingReference, nil), nil
	}

	verified, err := h.gateway.Verify(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			return h.fail(ctx, CodeGatewayRejected, err, "reference", reference), nil
		}
		return h.fail(ctx, CodeGatewayUnavailable, err, "reference", reference), nil
	}

	payment, err := h.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return h.fail(ctx, CodePaymentNotFound, err, "reference", reference), nil
		}
		return h.fail(ctx, CodeLookupFailed, err, "reference", reference), nil
	}

	order, err := h.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return h.fail(ctx, CodeOrderNotFound, err, "payment_id", payment.ID), nil
		}
		return h.fail(ctx, CodeLookupFailed, err, "payment_id", payment.ID), nil
	}

	if expected := domain.ToMinorUnits(payment.Amount); verified.AmountMinor != 0 && verified.AmountMinor != expected {
		return h.fail(ctx, CodeAmountMismatch, nil,
			"reference", reference,
			"expected_minor", expected,
			"verified_minor", verified.AmountMinor,
		), nil
	}

	if verified.Status == ports.VerifiedSuccess {
		return h.complete(ctx, order, payment), nil
	}
	return h.markFailed(ctx, order, payment, verified), nil
}

func (h *VerifyPaymentCommandHandler) complete(ctx context.Context, order *domain.Order, payment *domain.Payment) *Redirect {
	settlement, err := h.payments.Settle(ctx, payment.TransactionID, domain.PaymentCompleted, h.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return h.fail(ctx, CodeOrderAlreadyPaid, err, "order_id", order.ID, "reference", payment.TransactionID)
		}
		return h.fail(ctx, CodeDBCommitError, err, "order_id", order.ID, "reference", payment.TransactionID)
	}

	regs, err := h.orders.ListRegistrations(ctx, order.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load line items for success snapshot",
			"order_id", order.ID,
			"error", err,
		)
	}

	// The payment stays completed when the snapshot cannot be stored; the
	// redirect then carries no token.
	token, err := h.cache.Put(ctx, domain.NewSuccessSnapshot(settlement.Payment, regs))
	if err != nil {
		slog.ErrorContext(ctx, "failed to store success snapshot",
			"order_id", order.ID,
			"error", err,
		)
	}

	if settlement.Applied {
		slog.InfoContext(ctx, "payment verified and order marked paid",
			"order_id", order.ID,
			"payment_id", settlement.Payment.ID,
		)
		h.publish(ctx, h.events.PublishPaymentCompleted, settlement.Payment)
	}

	q := url.Values{}
	q.Set("payment_success", "true")
	q.Set("order_id", strconv.FormatInt(order.ID, 10))
	if token != "" {
		q.Set("token", token)
	}
	return &Redirect{
		Outcome:  OutcomeSucceeded,
		OrderID:  order.ID,
		Token:    token,
		Location: h.location(q),
	}
}

func (h *VerifyPaymentCommandHandler) markFailed(ctx context.Context, order *domain.Order, payment *domain.Payment, verified *ports.VerifyResult) *Redirect {
	settlement, err := h.payments.Settle(ctx, payment.TransactionID, domain.PaymentFailed, h.now().UTC())
	if err != nil {
		return h.fail(ctx, CodeDBCommitFailed, err, "order_id", order.ID, "reference", payment.TransactionID)
	}

	slog.WarnContext(ctx, "payment not successful",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"gateway_status", verified.Status,
		"gateway_response", verified.GatewayResponse,
	)

	if settlement.Applied {
		h.publish(ctx, h.events.PublishPaymentFailed, settlement.Payment)
	}

	q := url.Values{}
	q.Set("payment_success", "false")
	q.Set("order_id", strconv.FormatInt(order.ID, 10))
	return &Redirect{
		Outcome:  OutcomeFailed,
		OrderID:  order.ID,
		Location: h.location(q),
	}
}

func (h *VerifyPaymentCommandHandler) publish(ctx context.Context, fn func(context.Context, ports.PaymentEvent) error, p domain.Payment) {
	event := ports.PaymentEvent{
		OrderID:   p.OrderID,
		PaymentID: p.ID,
		Reference: p.TransactionID,
		Amount:    p.Amount.StringFixed(2),
		Status:    string(p.Status),
	}
	if err := fn(ctx, event); err != nil {
		slog.WarnContext(ctx, "payment settled but failed to publish event",
			"order_id", p.OrderID,
			"status", p.Status,
			"error", err,
		)
	}
}

func (h *VerifyPaymentCommandHandler) fail(ctx context.Context, code string, err error, args ...any) *Redirect {
	args = append(args, "code", code)
	if err != nil {
		args = append(args, "error", err)
	}
	slog.ErrorContext(ctx, "payment verification failed", args...)

	q := url.Values{}
	q.Set("payment_error", code)
	return &Redirect{
		Outcome:   OutcomeError,
		ErrorCode: code,
		Location:  h.location(q),
	}
}

func (h *VerifyPaymentCommandHandler) location(q url.Values) string {
	sep := "?"
	if strings.Contains(h.returnPath, "?") {
		sep = "&"
	}
	return h.returnPath + sep + q.Encode()
}
