package ports

import "context"

// StoredResponse is the first response produced for an Idempotency-Key.
// RequestHash identifies the payload the key was first used with, so a reuse
// with a different body can be refused.
type StoredResponse struct {
	RequestHash string
	StatusCode  int
	Body        []byte
	OrderID     int64
}

// IdempotencyStore backs replay of order creation.
//
// Get returns nil without error for unknown or expired keys. Save is
// first-write-wins for a live key: a concurrent or repeated Save keeps the
// response that was stored first.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, response StoredResponse) error
}
