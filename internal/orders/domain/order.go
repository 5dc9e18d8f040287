package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderUnpaid    OrderStatus = "unpaid"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderCancelled, OrderUnpaid:
		return true
	default:
		return false
	}
}

// Order is a priced bundle of course registrations owned by one user.
// TotalAmount is fixed when the order is assembled and never recomputed.
type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Payable reports whether a new payment attempt may be started for the order.
func (o Order) Payable() error {
	switch o.Status {
	case OrderPaid:
		return Conflictf("order %d is already paid", o.ID)
	case OrderCancelled:
		return Conflictf("order %d is cancelled", o.ID)
	default:
		return nil
	}
}

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationVerified Verification = "verified"
	VerificationFailed   Verification = "failed"
)

// Registration is one course line item within an order. CourseTitle and
// UnitPrice are captured when the order is priced; CourseID becomes nil when
// the course is later deleted.
type Registration struct {
	ID           int64              `json:"id"`
	FullName     string             `json:"full_name"`
	Phone        string             `json:"phone"`
	CourseID     *int64             `json:"course_id"`
	CourseTitle  string             `json:"course_title"`
	UnitPrice    decimal.Decimal    `json:"unit_price"`
	UserID       int64              `json:"user_id"`
	OrderID      *int64             `json:"order_id"`
	RegisteredAt time.Time          `json:"registered_at"`
	Status       RegistrationStatus `json:"status"`
	Verification Verification       `json:"is_verified"`
}

// Course is the subset of the catalog record needed to price an order.
type Course struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// User is the owning account of orders and registrations.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// SumPrices returns the total of the given courses.
func SumPrices(courses []Course) decimal.Decimal {
	total := decimal.Zero
	for _, c := range courses {
		total = total.Add(c.Price)
	}
	return total
}
