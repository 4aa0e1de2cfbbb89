package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ostrem/kasse/internal/domain"
)

// OriginalPrice computes the itemized ("original") price baseline of a
// single special: the sum over its items of resolved unit price × quantity.
// The bundle price itself is authored, never derived; this baseline exists
// to show the discount against it.
func OriginalPrice(sp *domain.Special, products ProductMap) (int64, error) {
	const op = "pricing.special_original"

	var total int64
	for i := range sp.Items {
		item := &sp.Items[i]

		detail, ok := products[item.ProductID]
		if !ok {
			return 0, domain.NotFound(op, "product", item.ProductID.String())
		}

		unit, _, err := ResolveUnitPrice(detail, item.Selection)
		if err != nil {
			return 0, err
		}
		total += unit * int64(item.Quantity)
	}

	return total, nil
}

// OriginalPrices computes the baselines for all given specials in one pass
// against a single pre-loaded product map. Equivalent to calling
// OriginalPrice once per special; no lookups beyond the supplied map.
func OriginalPrices(specials []domain.Special, products ProductMap) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(specials))
	for i := range specials {
		price, err := OriginalPrice(&specials[i], products)
		if err != nil {
			return nil, err
		}
		out[specials[i].ID] = price
	}
	return out, nil
}

// CheckAvailability verifies that every constituent product of the special
// is still enabled and every referenced parameter still exists. A special
// with any unavailable constituent is reported unavailable rather than
// partially priced.
func CheckAvailability(sp *domain.Special, products ProductMap) error {
	const op = "pricing.special_availability"

	if sp.Status != domain.SpecialStatusAvailable {
		return domain.ErrSpecialUnavailable
	}

	for i := range sp.Items {
		item := &sp.Items[i]

		detail, ok := products[item.ProductID]
		if !ok {
			return domain.ErrSpecialUnavailable
		}
		if !detail.Product.Available {
			return domain.ErrSpecialUnavailable
		}
		if err := ValidateSelection(detail, item.Selection); err != nil {
			return domain.ErrSpecialUnavailable
		}
	}

	return nil
}

var hundred = decimal.NewFromInt(100)

// DiscountPercent returns the discount of the bundle price against the
// original baseline, rounded to two decimal places. Zero when the baseline
// is zero or the bundle is not cheaper.
func DiscountPercent(bundleCents, originalCents int64) decimal.Decimal {
	if originalCents <= 0 || bundleCents >= originalCents {
		return decimal.Zero
	}
	saved := decimal.NewFromInt(originalCents - bundleCents)
	return saved.Mul(hundred).Div(decimal.NewFromInt(originalCents)).Round(2)
}
