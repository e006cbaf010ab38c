package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

const revocationKeyPrefix = "blacklist:"

// RevocationStore is a denylist of tokens that must be rejected before they expire
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenType domain.TokenType, token string) (bool, error)
	// Revoke denylists token for ttl, truncated to whole seconds.
	// Nothing is written when ttl is under one second.
	Revoke(ctx context.Context, tokenType domain.TokenType, token string, ttl time.Duration) error
}

// RevocationClient is the subset of go-redis the store needs
type RevocationClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRevocationStore implements RevocationStore with one expiring key per token
type RedisRevocationStore struct {
	client RevocationClient
}

// NewRedisRevocationStore creates a new RedisRevocationStore
func NewRedisRevocationStore(client RevocationClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// RevocationKey returns the key under which token is denylisted
func RevocationKey(tokenType domain.TokenType, token string) string {
	return revocationKeyPrefix + string(tokenType) + ":" + token
}

// IsRevoked reports whether token is denylisted
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenType domain.TokenType, token string) (bool, error) {
	n, err := s.client.Exists(ctx, RevocationKey(tokenType, token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// Revoke denylists token
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenType domain.TokenType, token string, ttl time.Duration) error {
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, RevocationKey(tokenType, token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke %s token: %w", tokenType, err)
	}
	return nil
}
