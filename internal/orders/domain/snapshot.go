package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaidAtLayout is the timestamp format exposed to the frontend.
const PaidAtLayout = "2006-01-02 15:04:05"

// SuccessSnapshot is the one-time view of a completed payment handed to the
// frontend after the gateway redirect.
type SuccessSnapshot struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	PaidAt  string          `json:"payment_date"`
	Courses []CourseLine    `json:"courses"`
}

type CourseLine struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// NewSuccessSnapshot builds the snapshot from a settled payment and the order's line items.
func NewSuccessSnapshot(payment Payment, regs []Registration) SuccessSnapshot {
	lines := make([]CourseLine, 0, len(regs))
	for _, r := range regs {
		lines = append(lines, CourseLine{Title: r.CourseTitle, Price: r.UnitPrice})
	}
	return SuccessSnapshot{
		OrderID: payment.OrderID,
		Amount:  payment.Amount,
		PaidAt:  FormatPaidAt(payment.PaymentDate),
		Courses: lines,
	}
}

// FormatPaidAt renders a paid-at time the way snapshots expose it.
func FormatPaidAt(t time.Time) string {
	return t.UTC().Format(PaidAtLayout)
}
