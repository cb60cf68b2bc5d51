// Package cache provides the TTL key-value store backing the update index.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a minimal TTL key-value contract. Implementations return
// ok=false for missing or expired keys; callers treat errors as misses and
// fall back to a rebuild.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Redis implements Store over a go-redis client. Entries expire
// automatically through redis TTL semantics.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis creates a redis-backed store.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Compile-time check that Redis implements Store.
var _ Store = (*Redis)(nil)

// Get returns the raw bytes for key, ok=false on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete evicts key; absence is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
