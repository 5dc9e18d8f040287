package commands_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/coursepay/internal/orders/adapters/memory"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

type recordingEventBus struct {
	mu        sync.Mutex
	created   []int64
	completed []ports.PaymentEvent
	failed    []ports.PaymentEvent
	err       error
}

func (b *recordingEventBus) PublishOrderCreated(_ context.Context, orderID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, orderID)
	return b.err
}

func (b *recordingEventBus) PublishPaymentCompleted(_ context.Context, event ports.PaymentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed = append(b.completed, event)
	return b.err
}

func (b *recordingEventBus) PublishPaymentFailed(_ context.Context, event ports.PaymentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = append(b.failed, event)
	return b.err
}

func (b *recordingEventBus) completedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.completed)
}

// faultyPayments overrides selected PaymentRepository calls.
type faultyPayments struct {
	ports.PaymentRepository
	createFn         func(ctx context.Context, payment *domain.Payment) error
	getByReferenceFn func(ctx context.Context, reference string) (*domain.Payment, error)
	settleFn         func(ctx context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error)
}

func (f *faultyPayments) Create(ctx context.Context, payment *domain.Payment) error {
	if f.createFn != nil {
		return f.createFn(ctx, payment)
	}
	return f.PaymentRepository.Create(ctx, payment)
}

func (f *faultyPayments) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	if f.getByReferenceFn != nil {
		return f.getByReferenceFn(ctx, reference)
	}
	return f.PaymentRepository.GetByReference(ctx, reference)
}

func (f *faultyPayments) Settle(ctx context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error) {
	if f.settleFn != nil {
		return f.settleFn(ctx, reference, target, at)
	}
	return f.PaymentRepository.Settle(ctx, reference, target, at)
}

// faultyOrders overrides selected OrderRepository calls.
type faultyOrders struct {
	ports.OrderRepository
	getByIDFn func(ctx context.Context, id int64) (*domain.Order, error)
	createFn  func(ctx context.Context, order *domain.Order, regs []domain.Registration) error
}

func (f *faultyOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return f.OrderRepository.GetByID(ctx, id)
}

func (f *faultyOrders) CreateWithRegistrations(ctx context.Context, order *domain.Order, regs []domain.Registration) error {
	if f.createFn != nil {
		return f.createFn(ctx, order, regs)
	}
	return f.OrderRepository.CreateWithRegistrations(ctx, order, regs)
}

type seeded struct {
	store   *memory.Store
	user    domain.User
	courses []domain.Course
}

// seedStore creates a user and courses priced 40 and 60.
func seedStore(t *testing.T) seeded {
	t.Helper()
	store := memory.NewStore()
	return seeded{
		store: store,
		user:  store.AddUser(domain.User{Email: "ada@example.com"}),
		courses: []domain.Course{
			store.AddCourse(domain.Course{Title: "Robotics", Price: decimal.NewFromInt(40)}),
			store.AddCourse(domain.Course{Title: "Scratch", Price: decimal.NewFromInt(60)}),
		},
	}
}

func (s seeded) courseIDs() []int64 {
	ids := make([]int64, 0, len(s.courses))
	for _, c := range s.courses {
		ids = append(ids, c.ID)
	}
	return ids
}

// pendingOrder stores a pending order for both seeded courses.
func (s seeded) pendingOrder(t *testing.T) domain.Order {
	t.Helper()
	order := domain.Order{
		UserID:      s.user.ID,
		TotalAmount: domain.SumPrices(s.courses),
		Status:      domain.OrderPending,
		CreatedAt:   time.Now().UTC(),
	}
	var regs []domain.Registration
	for _, c := range s.courses {
		id := c.ID
		regs = append(regs, domain.Registration{
			FullName:    "Ada",
			Phone:       "0800",
			CourseID:    &id,
			CourseTitle: c.Title,
			UnitPrice:   c.Price,
			UserID:      s.user.ID,
			Status:      domain.RegistrationPending,
		})
	}
	if err := s.store.Orders().CreateWithRegistrations(context.Background(), &order, regs); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

// pendingPayment stores a pending payment attempt for order.
func (s seeded) pendingPayment(t *testing.T, order domain.Order) domain.Payment {
	t.Helper()
	payment := domain.Payment{
		OrderID:       order.ID,
		TransactionID: domain.NewReference(order.ID),
		Amount:        order.TotalAmount,
		Status:        domain.PaymentPending,
		PaymentDate:   time.Now().UTC(),
	}
	if err := s.store.Payments().Create(context.Background(), &payment); err != nil {
		t.Fatalf("failed to seed payment: %v", err)
	}
	return payment
}
