// Package cache implements listing-cache invalidation over Redis. The
// engine holds no cache state itself; it only deletes named keys after
// mutations that change publicly cached listings.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ostrem/kasse/internal/domain"
)

// Invalidator implements domain.CacheInvalidator over a Redis client.
type Invalidator struct {
	client *redis.Client
}

// Compile-time check that Invalidator implements domain.CacheInvalidator.
var _ domain.CacheInvalidator = (*Invalidator)(nil)

// NewInvalidator creates an invalidator from a Redis URL.
func NewInvalidator(url string) (*Invalidator, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Invalidator{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity at startup.
func (i *Invalidator) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

// Close releases the client.
func (i *Invalidator) Close() error {
	return i.client.Close()
}

// Invalidate deletes the named listing keys. Missing keys are not an error.
func (i *Invalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return i.client.Del(ctx, keys...).Err()
}
