package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const (
	DefaultCapacity = 10_000
	DefaultTTL      = 15 * time.Minute
)

type entry struct {
	token     string
	snapshot  domain.SuccessSnapshot
	expiresAt time.Time
}

// Store is a bounded, expiring in-process success-detail cache.
// When full, the oldest entry is evicted; expired entries are dropped lazily.
type Store struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

var _ ports.SuccessDetailCache = (*Store)(nil)

type Option func(*Store)

func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty cache.
func NewStore(opts ...Option) *Store {
	s := &Store{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores the snapshot under a fresh random token.
func (s *Store) Put(_ context.Context, snapshot domain.SuccessSnapshot) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	for s.order.Len() >= s.capacity {
		s.removeLocked(s.order.Front())
	}

	el := s.order.PushBack(&entry{
		token:     token,
		snapshot:  snapshot,
		expiresAt: s.now().Add(s.ttl),
	})
	s.items[token] = el
	return token, nil
}

// Take returns and removes the snapshot for token.
func (s *Store) Take(_ context.Context, token string) (*domain.SuccessSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[token]
	if !ok {
		return nil, domain.NotFoundf("success details for token")
	}
	e := s.removeLocked(el)
	if !s.now().Before(e.expiresAt) {
		return nil, domain.NotFoundf("success details for token")
	}
	snapshot := e.snapshot
	return &snapshot, nil
}

// Len reports the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// evictExpiredLocked drops expired entries from the front. Entries are
// appended in expiry order since the TTL is fixed.
func (s *Store) evictExpiredLocked() {
	now := s.now()
	for el := s.order.Front(); el != nil; el = s.order.Front() {
		if now.Before(el.Value.(*entry).expiresAt) {
			return
		}
		s.removeLocked(el)
	}
}

func (s *Store) removeLocked(el *list.Element) *entry {
	e := s.order.Remove(el).(*entry)
	delete(s.items, e.token)
	return e
}
