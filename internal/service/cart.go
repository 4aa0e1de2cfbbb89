package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/pricing"
	"github.com/ostrem/kasse/internal/telemetry"
)

type cartService struct {
	store   Store
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// Compile-time check that cartService implements domain.CartService.
var _ domain.CartService = (*cartService)(nil)

// NewCartService creates the cart and merge manager.
func NewCartService(store Store, metrics *telemetry.Metrics, logger zerolog.Logger) domain.CartService {
	return &cartService{
		store:   store,
		metrics: metrics,
		logger:  logger.With().Str("component", "cart").Logger(),
	}
}

// GetOrCreateCart returns the cart for the identity, creating it when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.IsUser() && !owner.IsGuest() {
		return nil, domain.ErrInvalidIdentity
	}

	cart, err := s.store.GetCartByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, err
	}

	cart, err = s.store.CreateCart(ctx, owner)
	if err != nil {
		// A concurrent request may have created the cart for this identity;
		// the unique constraint turns that into a conflict we can recover from.
		if domain.IsCode(err, domain.ECONFLICT) {
			return s.store.GetCartByOwner(ctx, owner)
		}
		return nil, err
	}

	s.metrics.RecordCartCreated()
	return cart, nil
}

// AddProductToCart upserts a product line with a freshly resolved price
// snapshot. An existing line with the same (product, selection) key has its
// quantity incremented instead of duplicating the line.
func (s *cartService) AddProductToCart(ctx context.Context, cartID uuid.UUID, productID uuid.UUID, quantity int32, selection domain.Selection) (*domain.CartSummary, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var summary *domain.CartSummary
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetCartByID(ctx, cartID); err != nil {
			return err
		}

		detail, err := tx.GetProductDetail(ctx, productID)
		if err != nil {
			return err
		}
		if !detail.Product.Available {
			return domain.ErrProductUnavailable
		}

		unitPrice, resolved, err := pricing.ResolveUnitPrice(detail, selection)
		if err != nil {
			return err
		}

		if _, err := tx.UpsertCartItem(ctx, domain.CartItem{
			CartID:         cartID,
			ProductID:      &productID,
			Quantity:       quantity,
			Selection:      resolved,
			UnitPriceCents: unitPrice,
		}); err != nil {
			return err
		}

		// Read back in the same transaction so the summary describes the
		// state this upsert produced, not a later concurrent mutation.
		summary, err = cartSummary(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCartUpsert()
	return summary, nil
}

// AddSpecialToCart upserts a special line. The unit price snapshot is the
// special's authored bundle price; availability of every constituent is
// verified before the line is added.
func (s *cartService) AddSpecialToCart(ctx context.Context, cartID uuid.UUID, specialID uuid.UUID, quantity int32) (*domain.CartSummary, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var summary *domain.CartSummary
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetCartByID(ctx, cartID); err != nil {
			return err
		}

		special, err := tx.GetSpecial(ctx, specialID)
		if err != nil {
			return err
		}

		products, err := tx.GetProductDetails(ctx, special.ProductIDs())
		if err != nil {
			return err
		}
		if err := pricing.CheckAvailability(special, products); err != nil {
			return err
		}

		if _, err := tx.UpsertCartItem(ctx, domain.CartItem{
			CartID:         cartID,
			SpecialID:      &specialID,
			Quantity:       quantity,
			UnitPriceCents: special.BundlePriceCents,
		}); err != nil {
			return err
		}

		summary, err = cartSummary(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCartUpsert()
	return summary, nil
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int32) (*domain.CartSummary, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, itemID)
	}
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var summary *domain.CartSummary
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetCartItem(ctx, cartID, itemID); err != nil {
			return err
		}
		if err := tx.UpdateCartItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}

		var err error
		summary, err = cartSummary(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RemoveItem removes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartSummary, error) {
	var summary *domain.CartSummary
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetCartItem(ctx, cartID, itemID); err != nil {
			return err
		}
		if err := tx.DeleteCartItem(ctx, itemID); err != nil {
			return err
		}

		var err error
		summary, err = cartSummary(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// GetCartSummary returns the cart with lines and the snapshot-derived
// total.
func (s *cartService) GetCartSummary(ctx context.Context, cartID uuid.UUID) (*domain.CartSummary, error) {
	return cartSummary(ctx, s.store, cartID)
}

// cartSummary builds the summary from stored lines. Prices are never
// re-resolved from current product state here; snapshots are
// authoritative for cart display.
func cartSummary(ctx context.Context, store Store, cartID uuid.UUID) (*domain.CartSummary, error) {
	cart, err := store.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	items, err := store.GetCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	var total int64
	var count int
	for i := range items {
		total += items[i].LineSubtotalCents()
		count += int(items[i].Quantity)
	}

	return &domain.CartSummary{
		Cart:       *cart,
		Items:      items,
		TotalCents: total,
		ItemCount:  count,
	}, nil
}

// MigrateGuestCartToUser moves the guest cart's lines to the user's cart.
// When the user has no cart, ownership is reassigned in place; otherwise
// every guest line is merged through the same upsert rule as AddProductToCart
// and AddSpecialToCart, and the emptied guest cart is deleted. The whole
// sequence runs in one transaction: either all lines move or none do.
func (s *cartService) MigrateGuestCartToUser(ctx context.Context, userID uuid.UUID, guestSessionID string) error {
	if userID == uuid.Nil || guestSessionID == "" {
		return domain.ErrInvalidIdentity
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		guestCart, err := tx.GetCartByOwner(ctx, domain.GuestOwner(guestSessionID))
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				// Nothing to migrate.
				return nil
			}
			return err
		}

		userCart, err := tx.GetCartByOwner(ctx, domain.UserOwner(userID))
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return tx.ReassignCartOwner(ctx, guestCart.ID, domain.UserOwner(userID))
			}
			return err
		}

		items, err := tx.GetCartItems(ctx, guestCart.ID)
		if err != nil {
			return err
		}

		for i := range items {
			line := items[i]
			line.ID = uuid.Nil
			line.CartID = userCart.ID
			if _, err := tx.UpsertCartItem(ctx, line); err != nil {
				return err
			}
		}

		return tx.DeleteCart(ctx, guestCart.ID)
	})
	if err != nil {
		s.metrics.RecordCartMerge("failed")
		return domain.WrapError(err, domain.EMERGE, "cart.migrate", "guest cart merge failed; both carts left untouched")
	}

	s.metrics.RecordCartMerge("ok")
	s.logger.Debug().
		Str("user_id", userID.String()).
		Msg("guest cart migrated to user")
	return nil
}
