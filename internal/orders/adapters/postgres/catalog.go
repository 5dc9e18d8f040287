package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

// Catalog reads course and user records owned by the admin side of the system.
type Catalog struct {
	pool *pgxpool.Pool
}

var _ ports.Catalog = (*Catalog)(nil)

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) FindCourses(ctx context.Context, ids []int64) ([]domain.Course, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, title, price FROM courses WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, classify("query courses", err)
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		var course domain.Course
		if err := rows.Scan(&course.ID, &course.Title, &course.Price); err != nil {
			return nil, classify("scan course", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate courses", err)
	}
	return courses, nil
}

func (c *Catalog) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := c.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, classify("select user", err)
	}
	return exists, nil
}
