package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const keyPrefix = "payment:success:"

// Store keeps success snapshots in Redis, shared across API instances.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

var _ ports.SuccessDetailCache = (*Store)(nil)

func NewStore(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// NewClient parses url and verifies the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) key(token string) string {
	return keyPrefix + token
}

func (s *Store) Put(ctx context.Context, snapshot domain.SuccessSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode success snapshot: %w", err)
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store success snapshot: %w", err)
	}
	return token, nil
}

// Take reads and deletes the entry in one GETDEL round trip.
func (s *Store) Take(ctx context.Context, token string) (*domain.SuccessSnapshot, error) {
	data, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.NotFoundf("success details for token")
	}
	if err != nil {
		return nil, fmt.Errorf("take success snapshot: %w", err)
	}

	var snapshot domain.SuccessSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode success snapshot: %w", err)
	}
	return &snapshot, nil
}
