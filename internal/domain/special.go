package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Special-related domain errors.
var (
	ErrSpecialNotFound    = &Error{Code: ENOTFOUND, Message: "Special not found"}
	ErrSpecialUnavailable = &Error{Code: ECONFLICT, Message: "Special is not available"}
)

// SpecialStatus is the publication state of a special.
type SpecialStatus string

const (
	SpecialStatusDraft     SpecialStatus = "draft"
	SpecialStatusAvailable SpecialStatus = "available"
	SpecialStatusExpired   SpecialStatus = "expired"
)

// Valid reports whether s is a known special status.
func (s SpecialStatus) Valid() bool {
	switch s {
	case SpecialStatusDraft, SpecialStatusAvailable, SpecialStatusExpired:
		return true
	}
	return false
}

// Special is a discounted product bundle. The bundle price is a fixed,
// authored value; the itemized original price is computed from the
// constituent items through the pricing resolver.
type Special struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	Status           SpecialStatus `json:"status"`
	BundlePriceCents int64         `json:"bundle_price_cents"`
	Items            []SpecialItem `json:"items"`
	CreatedAt        time.Time     `json:"created_at"`
}

// SpecialItem is one constituent of a bundle, with the same selection
// shape as a cart line. It contributes to the computed original price.
type SpecialItem struct {
	ID        uuid.UUID `json:"id"`
	SpecialID uuid.UUID `json:"special_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Selection Selection `json:"selection,omitempty"`
	SortOrder int32     `json:"sort_order"`
}

// ProductIDs returns the distinct product ids referenced by the special,
// in item order. Callers use this to pre-fetch the product map for batch
// pricing.
func (s *Special) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(s.Items))
	ids := make([]uuid.UUID, 0, len(s.Items))
	for _, it := range s.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// PricedSpecial is a special with its computed original-price baseline and
// discount percentage, as shown in listings.
type PricedSpecial struct {
	Special            Special         `json:"special"`
	OriginalPriceCents int64           `json:"original_price_cents"`
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
}

// SpecialService provides bundle listing and pricing operations.
type SpecialService interface {
	// GetSpecial retrieves a special with its items.
	GetSpecial(ctx context.Context, specialID uuid.UUID) (*Special, error)

	// ListAvailableSpecials returns available specials with their computed
	// original prices, priced in one batch pass over a single pre-loaded
	// product map. A special with any unavailable constituent is omitted
	// rather than partially priced.
	ListAvailableSpecials(ctx context.Context) ([]PricedSpecial, error)

	// UpdateSpecialStatus moves a special between draft, available, and
	// expired, recording a history entry.
	UpdateSpecialStatus(ctx context.Context, specialID uuid.UUID, status SpecialStatus, actor uuid.UUID) (*Special, error)
}
