package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dejobratic/coursepay/internal/orders/domain"
)

const uniqueViolation = "23505"

// classify passes domain errors through and marks everything else as a
// persistence failure. Unique violations surface as conflicts.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Conflictf("%s: %s", op, pgErr.ConstraintName)
	}
	return domain.Persistence(op, err)
}
