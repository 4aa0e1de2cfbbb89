package domain

import (
	"context"

	"github.com/google/uuid"
)

// Named cache keys for publicly cached listings. The engine holds no cache
// state itself; it emits invalidations for an external cache component to
// consume after any mutation that changes these listings.
const (
	CacheKeyProductListing  = "listing:products"
	CacheKeyCategoryListing = "listing:categories"
	CacheKeySpecialListing  = "listing:specials"
)

// CacheInvalidator clears named cache entries. Invalidation failures are
// logged by the caller and never abort the primary operation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Notifier dispatches outbound notifications after order creation.
// Fire-and-forget: a dispatch failure must not fail the surrounding
// operation.
type Notifier interface {
	OrderCreated(ctx context.Context, order *Order) error
	OrderStatusChanged(ctx context.Context, order *Order, previous OrderStatus) error
}

// AdminAuthorizer resolves an opaque admin credential to an actor id.
// Fails closed: any credential it cannot vouch for yields an unauthorized
// error.
type AdminAuthorizer interface {
	Authorize(ctx context.Context, token string) (uuid.UUID, error)
}
