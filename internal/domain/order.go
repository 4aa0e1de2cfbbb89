package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrCartAlreadyConverted = &Error{Code: ECONFLICT, Message: "Cart already converted to order"}
	ErrEmptyCart            = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrOrderLocked          = &Error{Code: ELOCKED, Message: "Order status does not permit line-item changes"}
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions is the status state machine:
// pending → processing → shipped → completed, with cancelled reachable
// from pending or processing. Completed and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusCompleted},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits s → next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Mutable reports whether line items may still be added to an order in
// this status.
func (s OrderStatus) Mutable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// ValidateTransition returns an invalid_transition error when s → next is
// not permitted. Never silently defaulted: a rejected transition surfaces
// to the caller.
func ValidateTransition(s, next OrderStatus) error {
	if !next.Valid() {
		return Errorf(ETRANSITION, "order.status", "unknown order status %q", next)
	}
	if !s.CanTransitionTo(next) {
		return Errorf(ETRANSITION, "order.status", "cannot transition order from %s to %s", s, next)
	}
	return nil
}

// Order is the root aggregate created once per checkout. The origin cart
// is not required to survive order creation. Total is derived from line
// items and recomputed on line mutation; status changes never touch it.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	CartID         *uuid.UUID      `json:"cart_id,omitempty"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	CustomerName   string          `json:"customer_name"`
	Phone          string          `json:"phone"`
	SecondaryPhone string          `json:"secondary_phone,omitempty"`
	Address        string          `json:"address"`
	Status         OrderStatus     `json:"status"`
	TotalCents     int64           `json:"total_cents"`
	Items          []OrderLineItem `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderLineItem is a denormalized snapshot of one ordered line. Product
// name and unit price are copied at conversion time and survive later
// product edits or deletion. Lines are append-only after order creation
// except for admin-initiated additions, which are snapshotted the same way.
type OrderLineItem struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	SpecialID      *uuid.UUID `json:"special_id,omitempty"`
	ProductName    string     `json:"product_name"`
	Quantity       int32      `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Selection      Selection  `json:"selection,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// LineTotalCents is quantity × snapshot unit price.
func (i *OrderLineItem) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// CreateOrderParams carries the customer details captured at checkout.
type CreateOrderParams struct {
	CartID         uuid.UUID
	UserID         *uuid.UUID
	CustomerName   string
	Phone          string
	SecondaryPhone string
	Address        string
}

// NewLineItemParams carries an admin-initiated line addition. The snapshot
// fields are taken as given, never derived from live product state.
type NewLineItemParams struct {
	ProductID      uuid.UUID
	Quantity       int32
	Selection      Selection
}

// OrderService provides cart→order conversion and order lifecycle operations.
type OrderService interface {
	// CreateOrder converts the cart into an order: every current cart line
	// is snapshotted into an order line item with re-validated prices, the
	// initial total is computed, status is set to pending, and an
	// order_created history entry is recorded. Idempotent against retries:
	// a cart that has already been converted is never converted twice.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error)

	// GetOrder retrieves an order with its line items.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// ListOrders returns all orders, newest first.
	ListOrders(ctx context.Context) ([]Order, error)

	// UpdateOrderStatus validates the transition against the state machine,
	// updates status (total untouched), and appends a history entry with
	// before/after status and the acting admin.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next OrderStatus, actor uuid.UUID) (*Order, error)

	// AddOrderLineItem appends a snapshotted line while status permits
	// mutation, recomputes the order total, and appends a history entry.
	// Fails with an order_locked error otherwise.
	AddOrderLineItem(ctx context.Context, orderID uuid.UUID, item NewLineItemParams, actor uuid.UUID) (*Order, error)
}
