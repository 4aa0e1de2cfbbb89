// Package pricing implements parameter-driven unit pricing and special
// bundle pricing. Everything in this package is pure: deterministic given
// the product and special snapshots passed in, with no fetches and no side
// effects.
package pricing

import (
	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

// ResolveUnitPrice computes the unit price of a product under the given
// selection: base price plus the sum of each selected parameter's price
// delta. Every group attached to the product must resolve to exactly one
// parameter, either user-chosen or the attachment's default.
//
// Returns the price and the normalized selection with defaults filled in;
// the normalized selection is what gets snapshotted onto cart lines.
//
// Fails with an incomplete_selection error when a group without a default
// has no selection, and with an invalid_parameter error when a supplied
// parameter does not belong to its claimed group or the group is not
// attached to the product.
func ResolveUnitPrice(p *domain.ProductDetail, selection domain.Selection) (int64, domain.Selection, error) {
	const op = "pricing.resolve"

	// Reject selections for groups the product does not carry.
	for groupID := range selection {
		if p.AttachedGroup(groupID) == nil {
			return 0, nil, domain.Errorf(domain.EPARAMETER, op,
				"group %s is not attached to product %s", groupID, p.Product.ID)
		}
	}

	price := p.Product.BasePriceCents
	resolved := make(domain.Selection, len(p.Groups))

	for i := range p.Groups {
		g := &p.Groups[i]

		paramID, chosen := selection[g.Group.ID]
		if !chosen {
			if g.DefaultParameterID == nil {
				return 0, nil, domain.Errorf(domain.ESELECTION, op,
					"no selection for required group %q", g.Group.Name)
			}
			paramID = *g.DefaultParameterID
		}

		param := g.Parameter(paramID)
		if param == nil {
			return 0, nil, domain.Errorf(domain.EPARAMETER, op,
				"parameter %s does not belong to group %q", paramID, g.Group.Name)
		}

		price += param.PriceDeltaCents
		resolved[g.Group.ID] = param.ID
	}

	return price, resolved, nil
}

// ValidateSelection checks that a snapshot selection is still complete and
// consistent relative to the product's attached groups. Used by the
// availability check for specials and by checkout re-validation.
func ValidateSelection(p *domain.ProductDetail, selection domain.Selection) error {
	_, _, err := ResolveUnitPrice(p, selection)
	return err
}

// ProductMap is the pre-loaded lookup table batch operations run against.
// Callers pre-fetch all referenced products once; nothing in this package
// issues per-item fetches.
type ProductMap map[uuid.UUID]*domain.ProductDetail
