package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records access tokens that were signed out before expiry.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedPrefix = "session:revoked:"

// RedisRevocations keeps revoked token ids until the token would expire anyway.
type RedisRevocations struct {
	cache *redis.Client
}

// NewRedisRevocations builds a Redis-backed revocation list.
func NewRedisRevocations(cache *redis.Client) *RedisRevocations {
	return &RedisRevocations{cache: cache}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.cache.Get(ctx, revokedPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevocations builds an in-memory revocation list.
func NewMemoryRevocations() Revocations {
	return &memoryRevocations{revoked: make(map[string]time.Time)}
}

func (r *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = until
	return nil
}

func (r *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
