package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

type CreateOrderCommand struct {
	UserID    int64
	FullName  string
	Phone     string
	CourseIDs []int64
}

func (c CreateOrderCommand) Validate() error {
	if c.UserID <= 0 {
		return domain.Validationf("user_id is required")
	}
	if strings.TrimSpace(c.FullName) == "" {
		return domain.Validationf("full_name is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return domain.Validationf("phone is required")
	}
	if len(c.CourseIDs) == 0 {
		return domain.Validationf("course_ids must not be empty")
	}
	return nil
}

func (c CreateOrderCommand) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("user.id", c.UserID),
		attribute.Int("order.course_count", len(c.CourseIDs)),
	}
}

// CreatedOrder is the assembled order together with its line items.
type CreatedOrder struct {
	Order         domain.Order
	Registrations []domain.Registration
}

func (r *CreatedOrder) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("order.id", r.Order.ID),
		attribute.String("order.total_amount", r.Order.TotalAmount.String()),
		attribute.Int("order.registration_count", len(r.Registrations)),
	}
}

type CreateOrderCommandHandler struct {
	orders  ports.OrderRepository
	catalog ports.Catalog
	events  ports.EventBus
	now     func() time.Time
}

func NewCreateOrderCommandHandler(
	orders ports.OrderRepository,
	catalog ports.Catalog,
	events ports.EventBus,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		orders:  orders,
		catalog: catalog,
		events:  events,
		now:     time.Now,
	}
}

// Handle prices the requested courses and stores a pending order with one
// registration per resolved course. Unknown course ids are skipped.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*CreatedOrder, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	exists, err := h.catalog.UserExists(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NotFoundf("user %d", cmd.UserID)
	}

	ids := dedupe(cmd.CourseIDs)
	found, err := h.catalog.FindCourses(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Course, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	courses := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			courses = append(courses, c)
		}
	}
	if len(courses) == 0 {
		return nil, domain.Validationf("none of the selected courses exist")
	}

	now := h.now().UTC()
	order := domain.Order{
		UserID:      cmd.UserID,
		TotalAmount: domain.SumPrices(courses),
		Status:      domain.OrderPending,
		CreatedAt:   now,
	}

	regs := make([]domain.Registration, 0, len(courses))
	for _, c := range courses {
		courseID := c.ID
		regs = append(regs, domain.Registration{
			FullName:     strings.TrimSpace(cmd.FullName),
			Phone:        strings.TrimSpace(cmd.Phone),
			CourseID:     &courseID,
			CourseTitle:  c.Title,
			UnitPrice:    c.Price,
			UserID:       cmd.UserID,
			RegisteredAt: now,
			Status:       domain.RegistrationPending,
			Verification: domain.VerificationPending,
		})
	}

	if err := h.orders.CreateWithRegistrations(ctx, &order, regs); err != nil {
		return nil, err
	}

	if err := h.events.PublishOrderCreated(ctx, order.ID); err != nil {
		slog.WarnContext(ctx, "order saved but failed to publish event",
			"order_id", order.ID,
			"error", err,
		)
	}

	return &CreatedOrder{Order: order, Registrations: regs}, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
