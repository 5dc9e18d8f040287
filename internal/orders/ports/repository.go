package ports

import (
	"context"
	"math"
	"time"

	"github.com/dejobratic/coursepay/internal/orders/domain"
)

// OrderRepository exposes order and line-item persistence required by the application layer.
type OrderRepository interface {
	// CreateWithRegistrations stores the order and its line items in one
	// transaction, assigning identities to all of them.
	CreateWithRegistrations(ctx context.Context, order *domain.Order, regs []domain.Registration) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	ListRegistrations(ctx context.Context, orderID int64) ([]domain.Registration, error)
	// UpdateStatus moves the order from one status to another and fails with
	// domain.ErrConflict when the current status is not from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error
	Delete(ctx context.Context, id int64) error
}

// PaymentRepository exposes payment persistence and the settlement transaction.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error)
	List(ctx context.Context, page Page) ([]domain.Payment, error)
	// Settle applies a verified gateway outcome in one transaction,
	// conditioned on the payment's current status.
	Settle(ctx context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error)
}

// Catalog gives read access to collaborator-owned course and user records.
type Catalog interface {
	FindCourses(ctx context.Context, ids []int64) ([]domain.Course, error)
	UserExists(ctx context.Context, id int64) (bool, error)
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status *domain.OrderStatus
	Page
}

// Page is 1-based pagination.
type Page struct {
	Page     int
	PageSize int
}

const defaultPageSize = 20

// Normalize returns the limit and offset for the page, applying defaults.
// Pages too far out for the offset to fit an int are clamped to the last
// representable one.
func (p Page) Normalize() (limit, offset int) {
	page := p.Page
	if page <= 0 {
		page = 1
	}
	size := p.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if page-1 > math.MaxInt/size {
		page = math.MaxInt/size + 1
	}
	return size, (page - 1) * size
}
