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

// Store persists idempotent responses in the idempotency_keys table. Rows
// older than the retention are ignored by Get, replaced by Save and removed
// by Purge.
type Store struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

var _ ports.IdempotencyStore = (*Store)(nil)

// NewStore creates a store; a non-positive retention keeps rows forever.
func NewStore(pool *pgxpool.Pool, retention time.Duration) *Store {
	return &Store{pool: pool, retention: retention}
}

// cutoff is the oldest created_at still considered live.
func (s *Store) cutoff() time.Time {
	if s.retention <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.retention)
}

func (s *Store) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	const query = `
		SELECT request_hash, status_code, body, order_id
		FROM idempotency_keys
		WHERE key = $1 AND created_at > $2`

	var resp ports.StoredResponse
	err := s.pool.QueryRow(ctx, query, key, s.cutoff()).
		Scan(&resp.RequestHash, &resp.StatusCode, &resp.Body, &resp.OrderID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, domain.Persistence("select idempotency key", err)
	}
	return &resp, nil
}

// Save keeps the first live response for a key and overwrites an expired one.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	const query = `
		INSERT INTO idempotency_keys (key, request_hash, status_code, body, order_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			request_hash = EXCLUDED.request_hash,
			status_code  = EXCLUDED.status_code,
			body         = EXCLUDED.body,
			order_id     = EXCLUDED.order_id,
			created_at   = NOW()
		WHERE idempotency_keys.created_at <= $6`

	if _, err := s.pool.Exec(ctx, query,
		key, response.RequestHash, response.StatusCode, response.Body, response.OrderID, s.cutoff(),
	); err != nil {
		return domain.Persistence("insert idempotency key", err)
	}
	return nil
}

// Purge deletes expired rows and reports how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at <= $1`, s.cutoff())
	if err != nil {
		return 0, domain.Persistence("purge idempotency keys", err)
	}
	return tag.RowsAffected(), nil
}
