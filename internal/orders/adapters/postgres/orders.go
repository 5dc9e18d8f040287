package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const orderColumns = `id, user_id, total_amount, status, created_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ ports.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.Status,
		&order.CreatedAt,
	)
	return order, err
}

func (r *OrderRepository) CreateWithRegistrations(ctx context.Context, order *domain.Order, regs []domain.Registration) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, total_amount, status, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, order.UserID, order.TotalAmount, order.Status, order.CreatedAt).Scan(&order.ID)
		if err != nil {
			return err
		}

		if len(regs) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, reg := range regs {
			batch.Queue(`
				INSERT INTO registrations
					(full_name, phone, course_id, course_title, unit_price, user_id, order_id, registered_at, status, verification)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING id
			`, reg.FullName, reg.Phone, reg.CourseID, reg.CourseTitle, reg.UnitPrice,
				reg.UserID, order.ID, reg.RegisteredAt, reg.Status, reg.Verification)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range regs {
			if err := results.QueryRow().Scan(&regs[i].ID); err != nil {
				_ = results.Close()
				return err
			}
			orderID := order.ID
			regs[i].OrderID = &orderID
		}
		return results.Close()
	})
	return classify("insert order", err)
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("order %d", id)
		}
		return nil, classify("select order", err)
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	limit, offset := filter.Normalize()

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, statusFilter, limit, offset)
	if err != nil {
		return nil, classify("query orders", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, classify("scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate orders", err)
	}

	return orders, nil
}

func (r *OrderRepository) ListRegistrations(ctx context.Context, orderID int64) ([]domain.Registration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, phone, course_id, course_title, unit_price,
		       user_id, order_id, registered_at, status, verification
		FROM registrations
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, classify("query registrations", err)
	}
	defer rows.Close()

	regs := []domain.Registration{}
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(
			&reg.ID,
			&reg.FullName,
			&reg.Phone,
			&reg.CourseID,
			&reg.CourseTitle,
			&reg.UnitPrice,
			&reg.UserID,
			&reg.OrderID,
			&reg.RegisteredAt,
			&reg.Status,
			&reg.Verification,
		); err != nil {
			return nil, classify("scan registration", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate registrations", err)
	}

	return regs, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $3
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return classify("update order status", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return domain.Conflictf("order %d is %s, not %s", id, current.Status, from)
}

// Delete removes the order; registrations and payments go with it via cascade.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return classify("delete order", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFoundf("order %d", id)
	}
	return nil
}
