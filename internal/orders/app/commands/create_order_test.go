package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/coursepay/internal/orders/app/commands"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

func TestCreateOrder(t *testing.T) {
	t.Run("prices courses and creates pending registrations", func(t *testing.T) {
		s := seedStore(t)
		events := &recordingEventBus{}
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, events)

		result, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID:    s.user.ID,
			FullName:  " Ada Lovelace ",
			Phone:     "08000000000",
			CourseIDs: s.courseIDs(),
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !result.Order.TotalAmount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected total 100, got %s", result.Order.TotalAmount)
		}
		if result.Order.Status != domain.OrderPending {
			t.Errorf("expected status %s, got %s", domain.OrderPending, result.Order.Status)
		}
		if len(result.Registrations) != 2 {
			t.Fatalf("expected 2 registrations, got %d", len(result.Registrations))
		}
		for _, reg := range result.Registrations {
			if reg.Status != domain.RegistrationPending || reg.Verification != domain.VerificationPending {
				t.Errorf("expected pending registration, got %+v", reg)
			}
			if reg.FullName != "Ada Lovelace" {
				t.Errorf("expected trimmed full name, got %q", reg.FullName)
			}
			if reg.OrderID == nil || *reg.OrderID != result.Order.ID {
				t.Errorf("expected registration linked to order %d", result.Order.ID)
			}
		}
		if len(events.created) != 1 || events.created[0] != result.Order.ID {
			t.Errorf("expected order.created event, got %v", events.created)
		}
	})

	t.Run("skips unknown and duplicate course ids", func(t *testing.T) {
		s := seedStore(t)
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{})

		ids := []int64{s.courses[0].ID, 9999, s.courses[0].ID}
		result, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID: s.user.ID, FullName: "Ada", Phone: "0800", CourseIDs: ids,
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(result.Registrations) != 1 {
			t.Errorf("expected 1 registration, got %d", len(result.Registrations))
		}
		if !result.Order.TotalAmount.Equal(decimal.NewFromInt(40)) {
			t.Errorf("expected total 40, got %s", result.Order.TotalAmount)
		}
	})

	t.Run("fails when no course resolves", func(t *testing.T) {
		s := seedStore(t)
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{})

		_, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID: s.user.ID, FullName: "Ada", Phone: "0800", CourseIDs: []int64{9998, 9999},
		})

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		orders, _ := s.store.Orders().List(context.Background(), ports.ListFilter{})
		if len(orders) != 0 {
			t.Errorf("expected no order to be stored, got %d", len(orders))
		}
	})

	t.Run("fails for unknown user", func(t *testing.T) {
		s := seedStore(t)
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{})

		_, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID: 4242, FullName: "Ada", Phone: "0800", CourseIDs: s.courseIDs(),
		})

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		tests := []struct {
			name string
			cmd  commands.CreateOrderCommand
		}{
			{"missing user", commands.CreateOrderCommand{FullName: "Ada", Phone: "0800", CourseIDs: []int64{1}}},
			{"blank name", commands.CreateOrderCommand{UserID: 1, FullName: "  ", Phone: "0800", CourseIDs: []int64{1}}},
			{"blank phone", commands.CreateOrderCommand{UserID: 1, FullName: "Ada", CourseIDs: []int64{1}}},
			{"no courses", commands.CreateOrderCommand{UserID: 1, FullName: "Ada", Phone: "0800"}},
		}

		s := seedStore(t)
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{})

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result, err := handler.Handle(context.Background(), tt.cmd)
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				if result != nil {
					t.Errorf("expected nil result, got %+v", result)
				}
			})
		}
	})

	t.Run("propagates persistence failure", func(t *testing.T) {
		s := seedStore(t)
		orders := &faultyOrders{
			OrderRepository: s.store.Orders(),
			createFn: func(context.Context, *domain.Order, []domain.Registration) error {
				return domain.Persistence("insert order", errors.New("connection reset"))
			},
		}
		events := &recordingEventBus{}
		handler := commands.NewCreateOrderCommandHandler(orders, s.store, events)

		_, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID: s.user.ID, FullName: "Ada", Phone: "0800", CourseIDs: s.courseIDs(),
		})

		if !errors.Is(err, domain.ErrPersistence) {
			t.Fatalf("expected persistence error, got %v", err)
		}
		if len(events.created) != 0 {
			t.Error("expected no event for a failed order")
		}
	})

	t.Run("publish failure does not fail the order", func(t *testing.T) {
		s := seedStore(t)
		handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{err: errors.New("broker down")})

		result, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			UserID: s.user.ID, FullName: "Ada", Phone: "0800", CourseIDs: s.courseIDs(),
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Order.ID == 0 {
			t.Error("expected stored order")
		}
	})
}

func TestOrderTotalSurvivesCourseChanges(t *testing.T) {
	s := seedStore(t)
	handler := commands.NewCreateOrderCommandHandler(s.store.Orders(), s.store, &recordingEventBus{})

	result, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
		UserID: s.user.ID, FullName: "Ada", Phone: "0800", CourseIDs: s.courseIDs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repriced := s.courses[0]
	repriced.Price = decimal.NewFromInt(400)
	s.store.AddCourse(repriced)
	s.store.DeleteCourse(s.courses[1].ID)

	order, _ := s.store.Orders().GetByID(context.Background(), result.Order.ID)
	regs, _ := s.store.Orders().ListRegistrations(context.Background(), result.Order.ID)

	var lineTotal decimal.Decimal
	for _, r := range regs {
		lineTotal = lineTotal.Add(r.UnitPrice)
	}
	if !order.TotalAmount.Equal(lineTotal) || !lineTotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total and line items to stay 100, got %s and %s", order.TotalAmount, lineTotal)
	}
}
