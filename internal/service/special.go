package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/pricing"
	"github.com/ostrem/kasse/internal/telemetry"
)

type specialService struct {
	store   Store
	cache   domain.CacheInvalidator
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// Compile-time check that specialService implements domain.SpecialService.
var _ domain.SpecialService = (*specialService)(nil)

// NewSpecialService creates the bundle listing and pricing service.
func NewSpecialService(store Store, cache domain.CacheInvalidator, metrics *telemetry.Metrics, logger zerolog.Logger) domain.SpecialService {
	return &specialService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger.With().Str("component", "special").Logger(),
	}
}

// GetSpecial retrieves a special with its items.
func (s *specialService) GetSpecial(ctx context.Context, specialID uuid.UUID) (*domain.Special, error) {
	return s.store.GetSpecial(ctx, specialID)
}

// ListAvailableSpecials returns available specials with computed original
// prices and discount percentages. All referenced products are pre-fetched
// once; the batch pricing pass issues no per-item lookups. A special with
// any unavailable constituent is omitted rather than partially priced.
func (s *specialService) ListAvailableSpecials(ctx context.Context) ([]domain.PricedSpecial, error) {
	specials, err := s.store.ListSpecialsByStatus(ctx, domain.SpecialStatusAvailable)
	if err != nil {
		return nil, err
	}
	if len(specials) == 0 {
		return []domain.PricedSpecial{}, nil
	}

	seen := make(map[uuid.UUID]struct{})
	var productIDs []uuid.UUID
	for i := range specials {
		for _, id := range specials[i].ProductIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			productIDs = append(productIDs, id)
		}
	}

	products, err := s.store.GetProductDetails(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	priced := make([]domain.PricedSpecial, 0, len(specials))
	for i := range specials {
		sp := specials[i]

		if err := pricing.CheckAvailability(&sp, products); err != nil {
			s.logger.Debug().
				Str("special_id", sp.ID.String()).
				Msg("special omitted from listing: unavailable constituent")
			continue
		}

		original, err := pricing.OriginalPrice(&sp, products)
		if err != nil {
			return nil, err
		}

		priced = append(priced, domain.PricedSpecial{
			Special:            sp,
			OriginalPriceCents: original,
			DiscountPercent:    pricing.DiscountPercent(sp.BundlePriceCents, original),
		})
	}

	return priced, nil
}

// UpdateSpecialStatus moves a special between draft, available, and
// expired, recording a history entry and invalidating the specials listing
// cache.
func (s *specialService) UpdateSpecialStatus(ctx context.Context, specialID uuid.UUID, status domain.SpecialStatus, actor uuid.UUID) (*domain.Special, error) {
	const op = "special.update_status"

	if !status.Valid() {
		return nil, domain.Errorf(domain.EINVALID, op, "unknown special status %q", status)
	}

	var special *domain.Special

	err := s.store.InTx(ctx, func(tx Store) error {
		before, err := tx.GetSpecial(ctx, specialID)
		if err != nil {
			return err
		}
		if before.Status == status {
			special = before
			return nil
		}

		updated, err := tx.UpdateSpecialStatus(ctx, specialID, status)
		if err != nil {
			return err
		}

		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntitySpecial,
			EntityID:   specialID,
			Actor:      actor,
			Action:     domain.ActionStatusChanged,
			Before:     mustJSON(map[string]domain.SpecialStatus{"status": before.Status}),
			After:      mustJSON(map[string]domain.SpecialStatus{"status": status}),
		}); err != nil {
			return err
		}

		special = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, domain.CacheKeySpecialListing); err != nil {
			s.logger.Warn().Err(err).Msg("cache invalidation failed")
		} else {
			s.metrics.RecordCacheInvalidation(domain.CacheKeySpecialListing)
		}
	}

	return special, nil
}
