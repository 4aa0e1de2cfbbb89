package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
)

// actorContextKey carries the authorized admin actor id through echo.
const actorContextKey = "admin_actor"

// AdminHandler serves the back-office API: order management, product
// availability, special lifecycle, and the audit log.
type AdminHandler struct {
	orders     domain.OrderService
	catalog    domain.CatalogService
	specials   domain.SpecialService
	history    domain.HistoryService
	authorizer domain.AdminAuthorizer
	logger     zerolog.Logger
}

func NewAdminHandler(
	orders domain.OrderService,
	catalog domain.CatalogService,
	specials domain.SpecialService,
	history domain.HistoryService,
	authorizer domain.AdminAuthorizer,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		orders:     orders,
		catalog:    catalog,
		specials:   specials,
		history:    history,
		authorizer: authorizer,
		logger:     logger.With().Str("component", "admin").Logger(),
	}
}

// RequireAdmin authorizes the bearer token and stores the actor id in the
// request context. Fails closed.
func (h *AdminHandler) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")

		actor, err := h.authorizer.Authorize(c.Request().Context(), token)
		if err != nil {
			return respondError(c, err)
		}

		c.Set(actorContextKey, actor)
		return next(c)
	}
}

func actorFromContext(c echo.Context) uuid.UUID {
	if actor, ok := c.Get(actorContextKey).(uuid.UUID); ok {
		return actor
	}
	return uuid.Nil
}

// ListOrders handles GET /api/admin/orders.
func (h *AdminHandler) ListOrders(c echo.Context) error {
	orders, err := h.orders.ListOrders(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/admin/orders/:id.
func (h *AdminHandler) GetOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.get", "invalid order id"))
	}

	order, err := h.orders.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderStatus handles POST /api/admin/orders/:id/status.
func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.update_status", "invalid order id"))
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.update_status", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.UpdateOrderStatus(c.Request().Context(), orderID, domain.OrderStatus(req.Status), actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type addLineItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Quantity  int32            `json:"quantity" validate:"required,gt=0"`
	Selection domain.Selection `json:"selection"`
}

// AddOrderLineItem handles POST /api/admin/orders/:id/items.
func (h *AdminHandler) AddOrderLineItem(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.add_line_item", "invalid order id"))
	}

	var req addLineItemRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.add_line_item", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.AddOrderLineItem(c.Request().Context(), orderID, domain.NewLineItemParams{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Selection: req.Selection,
	}, actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// SetProductAvailability handles POST /api/admin/products/:id/availability.
func (h *AdminHandler) SetProductAvailability(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("product.set_availability", "invalid product id"))
	}

	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("product.set_availability", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.SetProductAvailability(c.Request().Context(), productID, *req.Available, actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

type createProductRequest struct {
	Category       string `json:"category" validate:"required"`
	Name           string `json:"name" validate:"required"`
	BasePriceCents int64  `json:"base_price_cents" validate:"gte=0"`
}

// CreateProduct handles POST /api/admin/products.
func (h *AdminHandler) CreateProduct(c echo.Context) error {
	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("product.create", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), domain.CreateProductParams{
		Category:       req.Category,
		Name:           req.Name,
		BasePriceCents: req.BasePriceCents,
	}, actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

type createGroupRequest struct {
	Name       string `json:"name" validate:"required"`
	SortOrder  int32  `json:"sort_order"`
	Parameters []struct {
		Label           string `json:"label" validate:"required"`
		PriceDeltaCents int64  `json:"price_delta_cents"`
		SortOrder       int32  `json:"sort_order"`
	} `json:"parameters" validate:"required,min=1,dive"`
}

// CreateParameterGroup handles POST /api/admin/parameter-groups.
func (h *AdminHandler) CreateParameterGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("group.create", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	params := domain.CreateParameterGroupParams{Name: req.Name, SortOrder: req.SortOrder}
	for _, p := range req.Parameters {
		params.Parameters = append(params.Parameters, domain.NewParameterParams{
			Label:           p.Label,
			PriceDeltaCents: p.PriceDeltaCents,
			SortOrder:       p.SortOrder,
		})
	}

	group, err := h.catalog.CreateParameterGroup(c.Request().Context(), params)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, group)
}

type attachGroupRequest struct {
	GroupID            uuid.UUID  `json:"group_id" validate:"required"`
	DefaultParameterID *uuid.UUID `json:"default_parameter_id"`
	SortOrder          int32      `json:"sort_order"`
}

// AttachParameterGroup handles POST /api/admin/products/:id/groups.
func (h *AdminHandler) AttachParameterGroup(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("product.attach_group", "invalid product id"))
	}

	var req attachGroupRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("product.attach_group", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	detail, err := h.catalog.AttachParameterGroup(c.Request().Context(), domain.AttachGroupParams{
		ProductID:          productID,
		GroupID:            req.GroupID,
		DefaultParameterID: req.DefaultParameterID,
		SortOrder:          req.SortOrder,
	}, actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// UpdateSpecialStatus handles POST /api/admin/specials/:id/status.
func (h *AdminHandler) UpdateSpecialStatus(c echo.Context) error {
	specialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("special.update_status", "invalid special id"))
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("special.update_status", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	special, err := h.specials.UpdateSpecialStatus(c.Request().Context(), specialID, domain.SpecialStatus(req.Status), actorFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, special)
}

// GetHistory handles GET /api/admin/history/:entity_type/:id, returning
// the audit trail for one entity, oldest first.
func (h *AdminHandler) GetHistory(c echo.Context) error {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("history.get", "invalid entity id"))
	}

	entries, err := h.history.GetHistoryForEntity(c.Request().Context(), c.Param("entity_type"), entityID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
