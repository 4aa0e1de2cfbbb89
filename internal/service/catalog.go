package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/telemetry"
)

type catalogService struct {
	store   Store
	cache   domain.CacheInvalidator
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// Compile-time check that catalogService implements domain.CatalogService.
var _ domain.CatalogService = (*catalogService)(nil)

// NewCatalogService creates the catalog service. The cache invalidator is
// the external collaborator notified after mutations that change publicly
// cached listings; the engine holds no cache state itself.
func NewCatalogService(store Store, cache domain.CacheInvalidator, metrics *telemetry.Metrics, logger zerolog.Logger) domain.CatalogService {
	return &catalogService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// GetProductDetail retrieves a product with its attached groups and
// parameters, ready for price resolution.
func (s *catalogService) GetProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	return s.store.GetProductDetail(ctx, productID)
}

// ListProducts returns all available products.
func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

// GetProductDetails batch-loads product details for the given ids in one
// store round trip.
func (s *catalogService) GetProductDetails(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*domain.ProductDetail, error) {
	return s.store.GetProductDetails(ctx, productIDs)
}

// SetProductAvailability soft-enables or soft-disables a product and
// records the change. Products referenced by carts or orders are never
// deleted, only disabled.
func (s *catalogService) SetProductAvailability(ctx context.Context, productID uuid.UUID, available bool, actor uuid.UUID) (*domain.Product, error) {
	var product *domain.Product

	err := s.store.InTx(ctx, func(tx Store) error {
		before, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if before.Available == available {
			product = before
			return nil
		}

		updated, err := tx.SetProductAvailability(ctx, productID, available)
		if err != nil {
			return err
		}

		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntityProduct,
			EntityID:   productID,
			Actor:      actor,
			Action:     domain.ActionAvailabilityChange,
			Before:     mustJSON(map[string]bool{"available": before.Available}),
			After:      mustJSON(map[string]bool{"available": available}),
		}); err != nil {
			return err
		}

		product = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx, domain.CacheKeyProductListing, domain.CacheKeyCategoryListing, domain.CacheKeySpecialListing)
	return product, nil
}

// CreateProduct authors a new product, initially without groups, and
// records its creation.
func (s *catalogService) CreateProduct(ctx context.Context, params domain.CreateProductParams, actor uuid.UUID) (*domain.Product, error) {
	var err error
	if strings.TrimSpace(params.Name) == "" {
		err = domain.AddFieldError(err, "name", "name is required")
	}
	if strings.TrimSpace(params.Category) == "" {
		err = domain.AddFieldError(err, "category", "category is required")
	}
	if params.BasePriceCents < 0 {
		err = domain.AddFieldError(err, "base_price_cents", "base price must not be negative")
	}
	if err != nil {
		return nil, err
	}

	var product *domain.Product
	err = s.store.InTx(ctx, func(tx Store) error {
		inserted, err := tx.InsertProduct(ctx, domain.Product{
			Category:       params.Category,
			Name:           params.Name,
			BasePriceCents: params.BasePriceCents,
			Available:      true,
		})
		if err != nil {
			return err
		}

		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntityProduct,
			EntityID:   inserted.ID,
			Actor:      actor,
			Action:     domain.ActionCreated,
			After:      mustJSON(inserted),
		}); err != nil {
			return err
		}

		product = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx, domain.CacheKeyProductListing, domain.CacheKeyCategoryListing)
	return product, nil
}

// CreateParameterGroup authors a group together with its parameters.
func (s *catalogService) CreateParameterGroup(ctx context.Context, params domain.CreateParameterGroupParams) (*domain.ParameterGroupDetail, error) {
	const op = "group.create"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.NewValidationError(op, "name", "name is required")
	}
	if len(params.Parameters) == 0 {
		return nil, domain.NewValidationError(op, "parameters", "at least one parameter is required")
	}
	for _, p := range params.Parameters {
		if strings.TrimSpace(p.Label) == "" {
			return nil, domain.NewValidationError(op, "parameters", "parameter label is required")
		}
	}

	var detail *domain.ParameterGroupDetail
	err := s.store.InTx(ctx, func(tx Store) error {
		group, err := tx.InsertParameterGroup(ctx, domain.ParameterGroup{
			Name:      params.Name,
			SortOrder: params.SortOrder,
		})
		if err != nil {
			return err
		}

		parameters := make([]domain.Parameter, 0, len(params.Parameters))
		for _, p := range params.Parameters {
			inserted, err := tx.InsertParameter(ctx, domain.Parameter{
				GroupID:         group.ID,
				Label:           p.Label,
				PriceDeltaCents: p.PriceDeltaCents,
				SortOrder:       p.SortOrder,
			})
			if err != nil {
				return err
			}
			parameters = append(parameters, *inserted)
		}

		detail = &domain.ParameterGroupDetail{Group: *group, Parameters: parameters}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// AttachParameterGroup attaches an existing group to a product. A default,
// when given, must be one of the group's own parameters.
func (s *catalogService) AttachParameterGroup(ctx context.Context, params domain.AttachGroupParams, actor uuid.UUID) (*domain.ProductDetail, error) {
	const op = "product.attach_group"

	var detail *domain.ProductDetail
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetProduct(ctx, params.ProductID); err != nil {
			return err
		}
		group, err := tx.GetParameterGroup(ctx, params.GroupID)
		if err != nil {
			return err
		}

		if params.DefaultParameterID != nil {
			found := false
			for i := range group.Parameters {
				if group.Parameters[i].ID == *params.DefaultParameterID {
					found = true
					break
				}
			}
			if !found {
				return domain.Errorf(domain.EPARAMETER, op,
					"default parameter %s does not belong to group %s", params.DefaultParameterID, params.GroupID)
			}
		}

		if err := tx.AttachParameterGroup(ctx, params.ProductID, params.GroupID, params.DefaultParameterID, params.SortOrder); err != nil {
			return err
		}

		detail, err = tx.GetProductDetail(ctx, params.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx, domain.CacheKeyProductListing)
	return detail, nil
}

// invalidateListings emits cache invalidations for the named listing keys.
// A failure is logged, never propagated: the cache is an external
// collaborator and stale entries expire on their own.
func (s *catalogService) invalidateListings(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
		return
	}
	for _, key := range keys {
		s.metrics.RecordCacheInvalidation(key)
	}
}
