package ports

import (
	"context"

	"github.com/dejobratic/coursepay/internal/orders/domain"
)

// SuccessDetailCache holds single-use success snapshots keyed by opaque tokens.
// Take removes the entry with the read and returns domain.ErrNotFound for
// unknown, expired or already consumed tokens.
type SuccessDetailCache interface {
	Put(ctx context.Context, snapshot domain.SuccessSnapshot) (string, error)
	Take(ctx context.Context, token string) (*domain.SuccessSnapshot, error)
}
