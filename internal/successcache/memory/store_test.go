package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/successcache/memory"
)

func snapshot(orderID int64) domain.SuccessSnapshot {
	return domain.SuccessSnapshot{
		OrderID: orderID,
		Amount:  decimal.NewFromInt(100),
		PaidAt:  "2025-03-04 10:30:00",
		Courses: []domain.CourseLine{
			{Title: "Robotics", Price: decimal.NewFromInt(40)},
			{Title: "Scratch", Price: decimal.NewFromInt(60)},
		},
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTakeIsSingleUse(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	token, err := store.Put(ctx, snapshot(7))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := store.Take(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Len(t, got.Courses, 2)

	_, err = store.Take(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTakeUnknownToken(t *testing.T) {
	_, err := memory.NewStore().Take(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTokensAreDistinct(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	a, err := store.Put(ctx, snapshot(1))
	require.NoError(t, err)
	b, err := store.Put(ctx, snapshot(1))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestExpiredEntriesAreNotReturned(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithTTL(time.Minute), memory.WithClock(clock.Now))
	ctx := context.Background()

	token, err := store.Put(ctx, snapshot(1))
	require.NoError(t, err)

	clock.Advance(time.Minute)

	_, err = store.Take(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestPutEvictsExpiredAndOldest(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithCapacity(2), memory.WithTTL(time.Minute), memory.WithClock(clock.Now))
	ctx := context.Background()

	first, _ := store.Put(ctx, snapshot(1))
	second, _ := store.Put(ctx, snapshot(2))
	third, _ := store.Put(ctx, snapshot(3))

	assert.Equal(t, 2, store.Len())
	_, err := store.Take(ctx, first)
	assert.ErrorIs(t, err, domain.ErrNotFound, "oldest entry should be evicted at capacity")

	clock.Advance(2 * time.Minute)
	_, _ = store.Put(ctx, snapshot(4))
	assert.Equal(t, 1, store.Len(), "expired entries should be swept on put")

	_, err = store.Take(ctx, second)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Take(ctx, third)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentTakeReturnsOnce(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	token, err := store.Put(ctx, snapshot(1))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, token); err == nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits)
}
