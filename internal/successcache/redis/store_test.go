//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/successcache/redis"
)

func setupStore(t *testing.T, ttl time.Duration) *redis.Store {
	t.Helper()
	ctx := context.Background()

	container, err := testredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := redis.NewClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewStore(client, ttl)
}

func TestRedisStoreTakeIsSingleUse(t *testing.T) {
	store := setupStore(t, time.Minute)
	ctx := context.Background()

	snap := domain.SuccessSnapshot{
		OrderID: 3,
		Amount:  decimal.NewFromInt(100),
		PaidAt:  "2025-03-04 10:30:00",
		Courses: []domain.CourseLine{{Title: "Robotics", Price: decimal.NewFromInt(100)}},
	}

	token, err := store.Put(ctx, snap)
	require.NoError(t, err)

	got, err := store.Take(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, snap.OrderID, got.OrderID)
	assert.True(t, snap.Amount.Equal(got.Amount))
	assert.Equal(t, "Robotics", got.Courses[0].Title)

	_, err = store.Take(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStoreExpires(t *testing.T) {
	store := setupStore(t, time.Second)
	ctx := context.Background()

	token, err := store.Put(ctx, domain.SuccessSnapshot{OrderID: 1})
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = store.Take(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
