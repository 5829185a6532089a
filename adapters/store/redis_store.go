package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/siwa/ports"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client      redis.UniversalClient
	tokenPrefix string
	noncePrefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) ports.Store {
	return &RedisStore{
		client:      client,
		tokenPrefix: "siwa:invalidated:",
		noncePrefix: "siwa:nonce:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.tokenPrefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.tokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}

// ConsumeNonce sets the nonce key only if it does not exist yet
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.noncePrefix+nonce, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return ok, nil
}
