package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus captures the outcome of a single settlement attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// IsTerminal indicates whether the payment reached a final outcome.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is one attempt to settle an order's total via the gateway.
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	PaymentDate   time.Time       `json:"payment_date"`
}

// MinorUnitsMultiplier converts major currency units to the gateway's minor units.
const MinorUnitsMultiplier = 100

var minorUnits = decimal.NewFromInt(MinorUnitsMultiplier)

// ToMinorUnits converts an amount to gateway minor units, truncating fractions.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnits).IntPart()
}

// NewReference builds a gateway reference unique per payment attempt.
func NewReference(orderID int64) string {
	return fmt.Sprintf("TX-%d-%s", orderID, uuid.NewString())
}

// Settlement is the result of applying a verified outcome to a payment.
// Applied is false when the payment already held the target status.
type Settlement struct {
	Payment Payment
	Order   Order
	Applied bool
}
