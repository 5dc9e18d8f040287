package memory_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/coursepay/internal/orders/adapters/memory"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
	"github.com/shopspring/decimal"
)

func seedOrder(t *testing.T, store *memory.Store) (domain.Order, domain.Payment) {
	t.Helper()
	ctx := context.Background()

	user := store.AddUser(domain.User{Email: "ada@example.com"})
	course := store.AddCourse(domain.Course{Title: "Robotics", Price: decimal.NewFromInt(40)})

	order := domain.Order{UserID: user.ID, TotalAmount: course.Price, Status: domain.OrderPending, CreatedAt: time.Now().UTC()}
	regs := []domain.Registration{{
		FullName:    "Ada",
		CourseID:    &course.ID,
		CourseTitle: course.Title,
		UnitPrice:   course.Price,
		UserID:      user.ID,
		Status:      domain.RegistrationPending,
	}}
	if err := store.Orders().CreateWithRegistrations(ctx, &order, regs); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	payment := domain.Payment{
		OrderID:       order.ID,
		TransactionID: domain.NewReference(order.ID),
		Amount:        order.TotalAmount,
		Status:        domain.PaymentPending,
		PaymentDate:   time.Now().UTC(),
	}
	if err := store.Payments().Create(ctx, &payment); err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}
	return order, payment
}

func TestCreateWithRegistrationsAssignsIDs(t *testing.T) {
	store := memory.NewStore()
	order, _ := seedOrder(t, store)

	if order.ID == 0 {
		t.Fatal("expected order id to be assigned")
	}

	regs, err := store.Orders().ListRegistrations(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 1 || regs[0].OrderID == nil || *regs[0].OrderID != order.ID {
		t.Fatalf("expected registration linked to order, got %+v", regs)
	}
}

func TestCreateWithRegistrationsUnknownUser(t *testing.T) {
	store := memory.NewStore()
	order := domain.Order{UserID: 99, TotalAmount: decimal.NewFromInt(1), Status: domain.OrderPending}

	err := store.Orders().CreateWithRegistrations(context.Background(), &order, nil)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	_, err := memory.NewStore().Orders().GetByID(context.Background(), 404)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	store := memory.NewStore()
	order, _ := seedOrder(t, store)
	ctx := context.Background()

	if err := store.Orders().UpdateStatus(ctx, order.ID, domain.OrderPending, domain.OrderCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := store.Orders().UpdateStatus(ctx, order.ID, domain.OrderPending, domain.OrderCancelled)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale status, got %v", err)
	}
}

func TestSettleCompleted(t *testing.T) {
	store := memory.NewStore()
	_, payment := seedOrder(t, store)
	ctx := context.Background()
	paidAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	settlement, err := store.Payments().Settle(ctx, payment.TransactionID, domain.PaymentCompleted, paidAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settlement.Applied {
		t.Error("expected first settlement to apply")
	}
	if settlement.Order.Status != domain.OrderPaid {
		t.Errorf("expected order paid, got %s", settlement.Order.Status)
	}
	if !settlement.Payment.PaymentDate.Equal(paidAt) {
		t.Errorf("expected payment date %v, got %v", paidAt, settlement.Payment.PaymentDate)
	}

	t.Run("replay is a no-op", func(t *testing.T) {
		again, err := store.Payments().Settle(ctx, payment.TransactionID, domain.PaymentCompleted, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Applied {
			t.Error("expected replay not to apply")
		}
		if !again.Payment.PaymentDate.Equal(paidAt) {
			t.Error("expected replay to keep original payment date")
		}
	})

	t.Run("completed is never downgraded", func(t *testing.T) {
		res, err := store.Payments().Settle(ctx, payment.TransactionID, domain.PaymentFailed, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied || res.Payment.Status != domain.PaymentCompleted {
			t.Errorf("expected completed payment to stay completed, got %+v", res.Payment)
		}
	})
}

func TestSettleSecondPaymentConflicts(t *testing.T) {
	store := memory.NewStore()
	order, first := seedOrder(t, store)
	ctx := context.Background()

	second := domain.Payment{
		OrderID:       order.ID,
		TransactionID: domain.NewReference(order.ID),
		Amount:        order.TotalAmount,
		Status:        domain.PaymentPending,
	}
	if err := store.Payments().Create(ctx, &second); err != nil {
		t.Fatalf("failed to create second payment: %v", err)
	}

	if _, err := store.Payments().Settle(ctx, first.TransactionID, domain.PaymentCompleted, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := store.Payments().Settle(ctx, second.TransactionID, domain.PaymentCompleted, time.Now())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreatePaymentRequiresPayableOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("paid order", func(t *testing.T) {
		store := memory.NewStore()
		order, first := seedOrder(t, store)
		if _, err := store.Payments().Settle(ctx, first.TransactionID, domain.PaymentCompleted, time.Now()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		late := domain.Payment{OrderID: order.ID, TransactionID: domain.NewReference(order.ID), Amount: order.TotalAmount, Status: domain.PaymentPending}
		if err := store.Payments().Create(ctx, &late); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		payments, _ := store.Payments().ListByOrder(ctx, order.ID)
		if len(payments) != 1 {
			t.Errorf("expected 1 payment, got %d", len(payments))
		}
	})

	t.Run("cancelled order", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrder(t, store)
		if err := store.Orders().UpdateStatus(ctx, order.ID, domain.OrderPending, domain.OrderCancelled); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		late := domain.Payment{OrderID: order.ID, TransactionID: domain.NewReference(order.ID), Amount: order.TotalAmount, Status: domain.PaymentPending}
		if err := store.Payments().Create(ctx, &late); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		store := memory.NewStore()
		orphan := domain.Payment{OrderID: 404, TransactionID: domain.NewReference(404), Status: domain.PaymentPending}
		if err := store.Payments().Create(ctx, &orphan); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestSettleConcurrentAppliesOnce(t *testing.T) {
	store := memory.NewStore()
	_, payment := seedOrder(t, store)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Payments().Settle(ctx, payment.TransactionID, domain.PaymentCompleted, time.Now())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one applied settlement, got %d", applied)
	}
}

func TestSettleUnknownReference(t *testing.T) {
	_, err := memory.NewStore().Payments().Settle(context.Background(), "TX-1-missing", domain.PaymentCompleted, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCourseKeepsRegistrationSnapshot(t *testing.T) {
	store := memory.NewStore()
	order, _ := seedOrder(t, store)

	regs, _ := store.Orders().ListRegistrations(context.Background(), order.ID)
	store.DeleteCourse(*regs[0].CourseID)

	regs, _ = store.Orders().ListRegistrations(context.Background(), order.ID)
	if regs[0].CourseID != nil {
		t.Error("expected course reference to be cleared")
	}
	if regs[0].CourseTitle != "Robotics" {
		t.Errorf("expected title snapshot to survive, got %q", regs[0].CourseTitle)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	store := memory.NewStore()
	order, payment := seedOrder(t, store)
	ctx := context.Background()

	store.DeleteUser(order.UserID)

	if _, err := store.Orders().GetByID(ctx, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected order to be removed, got %v", err)
	}
	if _, err := store.Payments().GetByReference(ctx, payment.TransactionID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected payment to be removed, got %v", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user := store.AddUser(domain.User{Email: "x@example.com"})

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		status := domain.OrderPending
		if i%2 == 0 {
			status = domain.OrderPaid
		}
		order := domain.Order{UserID: user.ID, TotalAmount: decimal.NewFromInt(10), Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Orders().CreateWithRegistrations(ctx, &order, nil); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
	}

	paid := domain.OrderPaid
	orders, err := store.Orders().List(ctx, ports.ListFilter{Status: &paid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 paid orders, got %d", len(orders))
	}
	if !orders[0].CreatedAt.After(orders[1].CreatedAt) {
		t.Error("expected newest order first")
	}

	page, err := store.Orders().List(ctx, ports.ListFilter{Page: ports.Page{Page: 2, PageSize: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 orders on page 2, got %d", len(page))
	}

	empty, _ := store.Orders().List(ctx, ports.ListFilter{Page: ports.Page{Page: 10, PageSize: 2}})
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}

	far, err := store.Payments().List(ctx, ports.Page{Page: 1 << 62, PageSize: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(far) != 0 {
		t.Errorf("expected empty page, got %d", len(far))
	}
}

func TestPageNormalizeClampsOffset(t *testing.T) {
	tests := []struct {
		name       string
		page       ports.Page
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ports.Page{}, 20, 0},
		{"third page", ports.Page{Page: 3, PageSize: 10}, 10, 20},
		{"huge page", ports.Page{Page: math.MaxInt, PageSize: 100}, 100, math.MaxInt / 100 * 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.page.Normalize()
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("expected limit=%d offset=%d, got limit=%d offset=%d", tt.wantLimit, tt.wantOffset, limit, offset)
			}
		})
	}
}
