package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const healthTimeout = 2 * time.Second

// ErrSchemaMissing reports a reachable database that has not been migrated.
var ErrSchemaMissing = errors.New("database schema not migrated")

// readinessTables must all exist before the service can accept traffic.
var readinessTables = []string{"orders", "registrations", "payments", "idempotency_keys"}

func ping(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	return pool.Ping(ctx)
}

// CheckHealth verifies connectivity and that the reconciliation tables exist.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ping(ctx, pool); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	for _, table := range readinessTables {
		var present bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&present); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !present {
			return fmt.Errorf("%w: table %s not found", ErrSchemaMissing, table)
		}
	}
	return nil
}
