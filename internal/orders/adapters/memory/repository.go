package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// Store provides an in-memory entity store useful for local development and tests.
// A single lock makes every multi-record write atomic, mirroring the
// transactional guarantees of the postgres adapter.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]domain.User
	courses       map[int64]domain.Course
	orders        map[int64]domain.Order
	registrations map[int64]domain.Registration
	payments      map[int64]domain.Payment
	nextID        int64
}

// OrderRepository is the order view over a Store.
type OrderRepository struct {
	*Store
}

// PaymentRepository is the payment view over a Store.
type PaymentRepository struct {
	*Store
}

var (
	_ ports.OrderRepository   = (*OrderRepository)(nil)
	_ ports.PaymentRepository = (*PaymentRepository)(nil)
	_ ports.Catalog           = (*Store)(nil)
)

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         make(map[int64]domain.User),
		courses:       make(map[int64]domain.Course),
		orders:        make(map[int64]domain.Order),
		registrations: make(map[int64]domain.Registration),
		payments:      make(map[int64]domain.Payment),
	}
}

// Orders returns the order repository backed by s.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{Store: s}
}

// Payments returns the payment repository backed by s.
func (s *Store) Payments() *PaymentRepository {
	return &PaymentRepository{Store: s}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers a user record, assigning an id when zero.
func (s *Store) AddUser(user domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = s.id()
	}
	s.users[user.ID] = user
	return user
}

// AddCourse registers or replaces a course record, assigning an id when zero.
func (s *Store) AddCourse(course domain.Course) domain.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	if course.ID == 0 {
		course.ID = s.id()
	}
	s.courses[course.ID] = course
	return course
}

// DeleteCourse removes a course and clears it from registrations, keeping their history.
func (s *Store) DeleteCourse(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.courses, id)
	for regID, reg := range s.registrations {
		if reg.CourseID != nil && *reg.CourseID == id {
			reg.CourseID = nil
			s.registrations[regID] = reg
		}
	}
}

// DeleteUser removes a user together with their registrations, orders and payments.
func (s *Store) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for regID, reg := range s.registrations {
		if reg.UserID == id {
			delete(s.registrations, regID)
		}
	}
	for orderID, order := range s.orders {
		if order.UserID == id {
			s.deleteOrderLocked(orderID)
		}
	}
}

func (s *OrderRepository) CreateWithRegistrations(_ context.Context, order *domain.Order, regs []domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[order.UserID]; !ok {
		return domain.Persistence("insert order", fmt.Errorf("user %d does not exist", order.UserID))
	}

	order.ID = s.id()
	s.orders[order.ID] = *order

	for i := range regs {
		regs[i].ID = s.id()
		orderID := order.ID
		regs[i].OrderID = &orderID
		s.registrations[regs[i].ID] = regs[i]
	}
	return nil
}

func (s *OrderRepository) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, domain.NotFoundf("order %d", id)
	}
	return &order, nil
}

// List returns orders newest first, respecting the filter.
func (s *OrderRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Order
	for _, order := range s.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, filter.Page), nil
}

func (s *OrderRepository) ListRegistrations(_ context.Context, orderID int64) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Registration
	for _, reg := range s.registrations {
		if reg.OrderID != nil && *reg.OrderID == orderID {
			result = append(result, reg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *OrderRepository) UpdateStatus(_ context.Context, id int64, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.NotFoundf("order %d", id)
	}
	if order.Status != from {
		return domain.Conflictf("order %d is %s, not %s", id, order.Status, from)
	}
	order.Status = to
	s.orders[id] = order
	return nil
}

func (s *OrderRepository) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return domain.NotFoundf("order %d", id)
	}
	s.deleteOrderLocked(id)
	return nil
}

func (s *Store) deleteOrderLocked(id int64) {
	delete(s.orders, id)
	for regID, reg := range s.registrations {
		if reg.OrderID != nil && *reg.OrderID == id {
			delete(s.registrations, regID)
		}
	}
	for paymentID, p := range s.payments {
		if p.OrderID == id {
			delete(s.payments, paymentID)
		}
	}
}

func (s *PaymentRepository) Create(_ context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[payment.OrderID]
	if !ok {
		return domain.NotFoundf("order %d", payment.OrderID)
	}
	if err := order.Payable(); err != nil {
		return err
	}
	for _, existing := range s.payments {
		if existing.TransactionID == payment.TransactionID {
			return domain.Conflictf("insert payment: duplicate transaction id %s", payment.TransactionID)
		}
	}

	payment.ID = s.id()
	s.payments[payment.ID] = *payment
	return nil
}

func (s *PaymentRepository) GetByReference(_ context.Context, reference string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.findByReferenceLocked(reference)
	if !ok {
		return nil, domain.NotFoundf("payment %s", reference)
	}
	return &p, nil
}

func (s *Store) findByReferenceLocked(reference string) (domain.Payment, bool) {
	for _, p := range s.payments {
		if p.TransactionID == reference {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (s *PaymentRepository) ListByOrder(_ context.Context, orderID int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// List returns payments newest first.
func (s *PaymentRepository) List(_ context.Context, page ports.Page) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return paginate(result, page), nil
}

func (s *PaymentRepository) Settle(_ context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.findByReferenceLocked(reference)
	if !ok {
		return nil, domain.NotFoundf("payment %s", reference)
	}
	order, ok := s.orders[payment.OrderID]
	if !ok {
		return nil, domain.NotFoundf("order %d", payment.OrderID)
	}

	switch target {
	case domain.PaymentCompleted:
		if payment.Status == domain.PaymentCompleted {
			return &domain.Settlement{Payment: payment, Order: order}, nil
		}
		for _, other := range s.payments {
			if other.OrderID == order.ID && other.ID != payment.ID && other.Status == domain.PaymentCompleted {
				return nil, domain.Conflictf("order %d already settled by %s", order.ID, other.TransactionID)
			}
		}
		payment.Status = domain.PaymentCompleted
		payment.PaymentDate = at
		order.Status = domain.OrderPaid
		s.payments[payment.ID] = payment
		s.orders[order.ID] = order
	case domain.PaymentFailed:
		if payment.Status.IsTerminal() {
			return &domain.Settlement{Payment: payment, Order: order}, nil
		}
		payment.Status = domain.PaymentFailed
		s.payments[payment.ID] = payment
	default:
		return nil, domain.Validationf("cannot settle payment to %s", target)
	}

	return &domain.Settlement{Payment: payment, Order: order, Applied: true}, nil
}

func (s *Store) FindCourses(_ context.Context, ids []int64) ([]domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Course
	for _, id := range ids {
		if c, ok := s.courses[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func paginate[T any](items []T, page ports.Page) []T {
	limit, offset := page.Normalize()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
