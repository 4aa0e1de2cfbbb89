package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
)

// Identity headers for cart ownership. A request carries exactly one.
const (
	HeaderUserID       = "X-User-ID"
	HeaderGuestSession = "X-Guest-Session"
)

// StorefrontHandler serves the customer-facing API: catalog, specials,
// cart, and checkout.
type StorefrontHandler struct {
	catalog  domain.CatalogService
	specials domain.SpecialService
	carts    domain.CartService
	orders   domain.OrderService
	logger   zerolog.Logger
}

func NewStorefrontHandler(
	catalog domain.CatalogService,
	specials domain.SpecialService,
	carts domain.CartService,
	orders domain.OrderService,
	logger zerolog.Logger,
) *StorefrontHandler {
	return &StorefrontHandler{
		catalog:  catalog,
		specials: specials,
		carts:    carts,
		orders:   orders,
		logger:   logger.With().Str("component", "storefront").Logger(),
	}
}

// ownerFromRequest builds the cart identity from the request headers.
func ownerFromRequest(c echo.Context) (domain.CartOwner, error) {
	var userID *uuid.UUID
	if raw := c.Request().Header.Get(HeaderUserID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.CartOwner{}, domain.ErrInvalidIdentity
		}
		userID = &id
	}
	return domain.NewCartOwner(userID, c.Request().Header.Get(HeaderGuestSession))
}

// requestCart resolves (or creates) the cart for the request identity.
func (h *StorefrontHandler) requestCart(c echo.Context) (*domain.Cart, error) {
	owner, err := ownerFromRequest(c)
	if err != nil {
		return nil, err
	}
	return h.carts.GetOrCreateCart(c.Request().Context(), owner)
}

// ListProducts handles GET /api/products.
func (h *StorefrontHandler) ListProducts(c echo.Context) error {
	products, err := h.catalog.ListProducts(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// GetProduct handles GET /api/products/:id.
func (h *StorefrontHandler) GetProduct(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("product.get", "invalid product id"))
	}

	detail, err := h.catalog.GetProductDetail(c.Request().Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListSpecials handles GET /api/specials.
func (h *StorefrontHandler) ListSpecials(c echo.Context) error {
	specials, err := h.specials.ListAvailableSpecials(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, specials)
}

// GetCart handles GET /api/cart.
func (h *StorefrontHandler) GetCart(c echo.Context) error {
	cart, err := h.requestCart(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.carts.GetCartSummary(c.Request().Context(), cart.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

type addProductRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Quantity  int32            `json:"quantity" validate:"required,gt=0"`
	Selection domain.Selection `json:"selection"`
}

// AddProduct handles POST /api/cart/items.
func (h *StorefrontHandler) AddProduct(c echo.Context) error {
	var req addProductRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("cart.add_product", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	cart, err := h.requestCart(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.carts.AddProductToCart(c.Request().Context(), cart.ID, req.ProductID, req.Quantity, req.Selection)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

type addSpecialRequest struct {
	SpecialID uuid.UUID `json:"special_id" validate:"required"`
	Quantity  int32     `json:"quantity" validate:"required,gt=0"`
}

// AddSpecial handles POST /api/cart/specials.
func (h *StorefrontHandler) AddSpecial(c echo.Context) error {
	var req addSpecialRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("cart.add_special", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	cart, err := h.requestCart(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.carts.AddSpecialToCart(c.Request().Context(), cart.ID, req.SpecialID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

type updateQuantityRequest struct {
	Quantity int32 `json:"quantity" validate:"gte=0"`
}

// UpdateItemQuantity handles PATCH /api/cart/items/:id. Quantity zero
// removes the line.
func (h *StorefrontHandler) UpdateItemQuantity(c echo.Context) error {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("cart.update_item", "invalid item id"))
	}

	var req updateQuantityRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("cart.update_item", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	cart, err := h.requestCart(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.carts.UpdateItemQuantity(c.Request().Context(), cart.ID, itemID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// RemoveItem handles DELETE /api/cart/items/:id.
func (h *StorefrontHandler) RemoveItem(c echo.Context) error {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("cart.remove_item", "invalid item id"))
	}

	cart, err := h.requestCart(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.carts.RemoveItem(c.Request().Context(), cart.ID, itemID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

type mergeCartRequest struct {
	UserID       uuid.UUID `json:"user_id" validate:"required"`
	GuestSession string    `json:"guest_session" validate:"required"`
}

// MergeCart handles POST /api/cart/merge, called at the login boundary.
// A merge failure is logged and reported in the response body but never
// fails the request: login must not be blocked by a cart problem.
func (h *StorefrontHandler) MergeCart(c echo.Context) error {
	var req mergeCartRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("cart.merge", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	merged := true
	if err := h.carts.MigrateGuestCartToUser(c.Request().Context(), req.UserID, req.GuestSession); err != nil {
		merged = false
		h.logger.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Msg("guest cart merge failed; both carts left untouched")
	}

	return c.JSON(http.StatusOK, map[string]bool{"merged": merged})
}

type checkoutRequest struct {
	CustomerName   string `json:"customer_name" validate:"required"`
	Phone          string `json:"phone" validate:"required"`
	SecondaryPhone string `json:"secondary_phone"`
	Address        string `json:"address" validate:"required"`
}

// Checkout handles POST /api/checkout: it converts the identity's cart
// into an order. Safe to retry; a cart converts at most once.
func (h *StorefrontHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.create", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	owner, err := ownerFromRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	cart, err := h.carts.GetOrCreateCart(c.Request().Context(), owner)
	if err != nil {
		return respondError(c, err)
	}

	var userID *uuid.UUID
	if owner.IsUser() {
		id := owner.UserID()
		userID = &id
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), domain.CreateOrderParams{
		CartID:         cart.ID,
		UserID:         userID,
		CustomerName:   req.CustomerName,
		Phone:          req.Phone,
		SecondaryPhone: req.SecondaryPhone,
		Address:        req.Address,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}
