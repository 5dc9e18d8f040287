package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const paymentColumns = `id, order_id, transaction_id, amount, status, payment_date`

type PaymentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.TransactionID,
		&p.Amount,
		&p.Status,
		&p.PaymentDate,
	)
	return p, err
}

// Create locks the order row and inserts the payment only while the order
// still accepts payment attempts.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, payment.OrderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("order %d", payment.OrderID)
		}
		if err != nil {
			return err
		}
		if err := order.Payable(); err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO payments (order_id, transaction_id, amount, status, payment_date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, payment.OrderID, payment.TransactionID, payment.Amount, payment.Status, payment.PaymentDate).Scan(&payment.ID)
	})
	return classify("insert payment", err)
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("payment %s", reference)
		}
		return nil, classify("select payment", err)
	}
	return &p, nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	return r.query(ctx, "query order payments", `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
}

func (r *PaymentRepository) List(ctx context.Context, page ports.Page) ([]domain.Payment, error) {
	limit, offset := page.Normalize()
	return r.query(ctx, "query payments", `
		SELECT `+paymentColumns+`
		FROM payments
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *PaymentRepository) query(ctx context.Context, op, sql string, args ...any) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return payments, nil
}

// Settle locks the order row, then the payment row, and applies target only
// when the payment's current status allows it. Completed payments are never
// downgraded and an order accepts at most one completed payment.
func (r *PaymentRepository) Settle(ctx context.Context, reference string, target domain.PaymentStatus, at time.Time) (*domain.Settlement, error) {
	if target != domain.PaymentCompleted && target != domain.PaymentFailed {
		return nil, domain.Validationf("cannot settle payment to %s", target)
	}

	var settlement *domain.Settlement
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var orderID int64
		err := tx.QueryRow(ctx, `SELECT order_id FROM payments WHERE transaction_id = $1`, reference).Scan(&orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("payment %s", reference)
		}
		if err != nil {
			return err
		}

		order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("order %d", orderID)
		}
		if err != nil {
			return err
		}

		payment, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1 FOR UPDATE`, reference))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("payment %s", reference)
		}
		if err != nil {
			return err
		}

		if payment.Status == domain.PaymentCompleted || payment.Status == target {
			settlement = &domain.Settlement{Payment: payment, Order: order}
			return nil
		}

		if target == domain.PaymentFailed {
			if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, payment.ID, domain.PaymentFailed); err != nil {
				return err
			}
			payment.Status = domain.PaymentFailed
			settlement = &domain.Settlement{Payment: payment, Order: order, Applied: true}
			return nil
		}

		var other string
		err = tx.QueryRow(ctx, `
			SELECT transaction_id FROM payments
			WHERE order_id = $1 AND status = $2 AND id <> $3
			LIMIT 1
		`, order.ID, domain.PaymentCompleted, payment.ID).Scan(&other)
		if err == nil {
			return domain.Conflictf("order %d already settled by %s", order.ID, other)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE payments SET status = $2, payment_date = $3 WHERE id = $1
		`, payment.ID, domain.PaymentCompleted, at); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, order.ID, domain.OrderPaid); err != nil {
			return err
		}

		payment.Status = domain.PaymentCompleted
		payment.PaymentDate = at
		order.Status = domain.OrderPaid
		settlement = &domain.Settlement{Payment: payment, Order: order, Applied: true}
		return nil
	})
	if err != nil {
		return nil, classify("settle payment", err)
	}
	return settlement, nil
}
