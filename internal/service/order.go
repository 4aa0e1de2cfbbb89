package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/pricing"
	"github.com/ostrem/kasse/internal/telemetry"
)

type orderService struct {
	store    Store
	notifier domain.Notifier
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

// Compile-time check that orderService implements domain.OrderService.
var _ domain.OrderService = (*orderService)(nil)

// NewOrderService creates the order lifecycle service. The notifier is a
// fire-and-forget collaborator: dispatch failures are logged, never
// propagated.
func NewOrderService(store Store, notifier domain.Notifier, metrics *telemetry.Metrics, logger zerolog.Logger) domain.OrderService {
	return &orderService{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With().Str("component", "order").Logger(),
	}
}

// statusPayload is the before/after shape of status-change history entries.
type statusPayload struct {
	Status domain.OrderStatus `json:"status"`
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload shapes here are plain structs; marshal cannot fail.
		return json.RawMessage(`{}`)
	}
	return b
}

func validateCreateOrderParams(params domain.CreateOrderParams) error {
	const op = "order.create"

	var err error
	if params.CartID == uuid.Nil {
		err = domain.AddFieldError(err, "cart_id", "cart id is required")
	}
	if strings.TrimSpace(params.CustomerName) == "" {
		err = domain.AddFieldError(err, "customer_name", "customer name is required")
	}
	if strings.TrimSpace(params.Phone) == "" {
		err = domain.AddFieldError(err, "phone", "phone is required")
	}
	if strings.TrimSpace(params.Address) == "" {
		err = domain.AddFieldError(err, "address", "address is required")
	}

	var ve *domain.ValidationError
	if err != nil {
		ve, _ = err.(*domain.ValidationError)
		ve.Op = op
		return ve
	}
	return nil
}

// CreateOrder converts the cart into an order. Every current cart line is
// snapshotted into an order line item with product name and a re-validated
// price copied at conversion time; the initial total is computed, status is
// set to pending, and an order_created history entry is recorded.
//
// Idempotent against retry-induced duplication: the one-to-one cart→order
// relationship is checked inside the transaction before insert, and the
// store's unique constraint on the cart id backstops concurrent requests.
// A second call returns the existing order, never a duplicate.
func (s *orderService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.Order, error) {
	if err := validateCreateOrderParams(params); err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		created bool
	)

	err := s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.GetOrderByCartID(ctx, params.CartID)
		if err == nil {
			order = existing
			return nil
		}
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return err
		}

		if _, err := tx.GetCartByID(ctx, params.CartID); err != nil {
			return err
		}

		cartItems, err := tx.GetCartItems(ctx, params.CartID)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return domain.ErrEmptyCart
		}

		lines, total, err := s.snapshotCartLines(ctx, tx, cartItems)
		if err != nil {
			return err
		}

		cartID := params.CartID
		inserted, err := tx.InsertOrder(ctx, &domain.Order{
			CartID:         &cartID,
			UserID:         params.UserID,
			CustomerName:   params.CustomerName,
			Phone:          params.Phone,
			SecondaryPhone: params.SecondaryPhone,
			Address:        params.Address,
			Status:         domain.OrderStatusPending,
			TotalCents:     total,
		})
		if err != nil {
			return err
		}

		for i := range lines {
			lines[i].OrderID = inserted.ID
			item, err := tx.InsertOrderLineItem(ctx, lines[i])
			if err != nil {
				return err
			}
			inserted.Items = append(inserted.Items, *item)
		}

		actor := uuid.Nil
		if params.UserID != nil {
			actor = *params.UserID
		}
		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntityOrder,
			EntityID:   inserted.ID,
			Actor:      actor,
			Action:     domain.ActionOrderCreated,
			After:      mustJSON(statusPayload{Status: inserted.Status}),
		}); err != nil {
			return err
		}

		order = inserted
		created = true
		return nil
	})
	if err != nil {
		// Unique constraint on the cart id: a concurrent request won the
		// race. The failed insert aborted this transaction, so the winner's
		// order is only readable after rollback, on a fresh statement.
		if domain.IsCode(err, domain.ECONFLICT) {
			if existing, readErr := s.store.GetOrderByCartID(ctx, params.CartID); readErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if created {
		s.metrics.RecordOrderCreated(order.TotalCents, len(order.Items))
		s.notifyOrderCreated(ctx, order)
	}

	return order, nil
}

// snapshotCartLines builds order line items from cart lines, re-validating
// prices against current product and special state. Pricing violations
// surface to the caller: a stale selection must never be charged silently.
func (s *orderService) snapshotCartLines(ctx context.Context, tx Store, cartItems []domain.CartItem) ([]domain.OrderLineItem, int64, error) {
	lines := make([]domain.OrderLineItem, 0, len(cartItems))
	var total int64

	for i := range cartItems {
		ci := &cartItems[i]

		var line domain.OrderLineItem
		switch {
		case ci.SpecialID != nil:
			special, err := tx.GetSpecial(ctx, *ci.SpecialID)
			if err != nil {
				return nil, 0, err
			}
			line = domain.OrderLineItem{
				SpecialID:      ci.SpecialID,
				ProductName:    special.Name,
				Quantity:       ci.Quantity,
				UnitPriceCents: special.BundlePriceCents,
			}
		case ci.ProductID != nil:
			detail, err := tx.GetProductDetail(ctx, *ci.ProductID)
			if err != nil {
				return nil, 0, err
			}
			unitPrice, resolved, err := pricing.ResolveUnitPrice(detail, ci.Selection)
			if err != nil {
				return nil, 0, err
			}
			line = domain.OrderLineItem{
				ProductID:      ci.ProductID,
				ProductName:    detail.Product.Name,
				Quantity:       ci.Quantity,
				UnitPriceCents: unitPrice,
				Selection:      resolved,
			}
		default:
			return nil, 0, domain.Invalid("order.create", "cart line references neither product nor special")
		}

		total += line.LineTotalCents()
		lines = append(lines, line)
	}

	return lines, total, nil
}

// GetOrder retrieves an order with its line items.
func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// ListOrders returns all orders, newest first.
func (s *orderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx)
}

// UpdateOrderStatus validates the transition against the state machine,
// updates the status, and appends a history entry capturing before/after
// status and the acting admin. The order total is untouched.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus, actor uuid.UUID) (*domain.Order, error) {
	var (
		order    *domain.Order
		previous domain.OrderStatus
	)

	err := s.store.InTx(ctx, func(tx Store) error {
		current, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		if err := domain.ValidateTransition(current.Status, next); err != nil {
			return err
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, next); err != nil {
			return err
		}

		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntityOrder,
			EntityID:   orderID,
			Actor:      actor,
			Action:     domain.ActionStatusChanged,
			Before:     mustJSON(statusPayload{Status: current.Status}),
			After:      mustJSON(statusPayload{Status: next}),
		}); err != nil {
			return err
		}

		previous = current.Status
		current.Status = next
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderStatusChange(string(previous), string(next))
	s.notifyStatusChanged(ctx, order, previous)

	return order, nil
}

// AddOrderLineItem appends an admin-initiated line while the order status
// permits mutation, recomputes the total from line items, and appends a
// history entry. The new line carries its own snapshot, never a live join.
func (s *orderService) AddOrderLineItem(ctx context.Context, orderID uuid.UUID, item domain.NewLineItemParams, actor uuid.UUID) (*domain.Order, error) {
	const op = "order.add_line_item"

	if item.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if item.ProductID == uuid.Nil {
		return nil, domain.NewValidationError(op, "product_id", "product id is required")
	}

	var order *domain.Order

	err := s.store.InTx(ctx, func(tx Store) error {
		current, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		if !current.Status.Mutable() {
			return domain.ErrOrderLocked
		}

		detail, err := tx.GetProductDetail(ctx, item.ProductID)
		if err != nil {
			return err
		}
		unitPrice, resolved, err := pricing.ResolveUnitPrice(detail, item.Selection)
		if err != nil {
			return err
		}

		productID := item.ProductID
		inserted, err := tx.InsertOrderLineItem(ctx, domain.OrderLineItem{
			OrderID:        orderID,
			ProductID:      &productID,
			ProductName:    detail.Product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: unitPrice,
			Selection:      resolved,
		})
		if err != nil {
			return err
		}

		// Total is derived from line items, recomputed on every mutation.
		refreshed, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		var total int64
		for i := range refreshed.Items {
			total += refreshed.Items[i].LineTotalCents()
		}
		if err := tx.UpdateOrderTotal(ctx, orderID, total); err != nil {
			return err
		}
		refreshed.TotalCents = total

		if _, err := tx.InsertHistoryEntry(ctx, domain.HistoryEntry{
			EntityType: domain.EntityOrderLineItem,
			EntityID:   inserted.ID,
			Actor:      actor,
			Action:     domain.ActionLineItemAdded,
			After:      mustJSON(inserted),
		}); err != nil {
			return err
		}

		order = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (s *orderService) notifyOrderCreated(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderCreated(ctx, order); err != nil {
		s.metrics.RecordNotifyFailure("order_created")
		s.logger.Warn().Err(err).
			Str("order_id", order.ID.String()).
			Msg("order created notification failed")
	}
}

func (s *orderService) notifyStatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderStatusChanged(ctx, order, previous); err != nil {
		s.metrics.RecordNotifyFailure("order_status_changed")
		s.logger.Warn().Err(err).
			Str("order_id", order.ID.String()).
			Msg("order status notification failed")
	}
}
