package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/coursepay/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
}

// Store keeps idempotent responses in process memory. Entries older than the
// retention are treated as absent and may be replaced.
type Store struct {
	mu        sync.Mutex
	entries   map[string]entry
	retention time.Duration
	now       func() time.Time
}

var _ ports.IdempotencyStore = (*Store)(nil)

type Option func(*Store)

// WithClock replaces time.Now for retention checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store; a non-positive retention keeps entries forever.
func NewStore(retention time.Duration, opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]entry),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) expired(e entry) bool {
	return s.retention > 0 && s.now().Sub(e.savedAt) >= s.retention
}

func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		delete(s.entries, key)
		return nil, nil
	}
	resp := e.response
	resp.Body = append([]byte(nil), resp.Body...)
	return &resp, nil
}

func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !s.expired(e) {
		return nil
	}
	response.Body = append([]byte(nil), response.Body...)
	s.entries[key] = entry{response: response, savedAt: s.now()}
	return nil
}
