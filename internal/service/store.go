// Package service implements the business logic for carts, orders,
// specials, the catalog, and the audit log, on top of a relational Store.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

// Store is the persistence contract the services depend on. The postgres
// package provides the production implementation; tests use an in-memory
// fake.
//
// Each method is atomic on its own. Read-check-write sequences (cart merge,
// order creation, status transitions) run inside InTx so concurrent
// requests touching the same cart or order cannot interleave partial
// writes; correctness relies on the store's transaction isolation plus its
// unique constraints (one order per cart, one cart per identity).
type Store interface {
	// InTx runs fn against a transaction-bound store. A nil return commits,
	// any error rolls back. Nested calls reuse the open transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Carts
	GetCartByID(ctx context.Context, cartID uuid.UUID) (*domain.Cart, error)
	GetCartByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	CreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	ReassignCartOwner(ctx context.Context, cartID uuid.UUID, owner domain.CartOwner) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	GetCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
	GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error)
	// UpsertCartItem inserts the line or, when a line with the same
	// (cart, line key) exists, increments its quantity instead.
	UpsertCartItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int32) error
	DeleteCartItem(ctx context.Context, itemID uuid.UUID) error

	// Catalog
	GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	GetProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error)
	GetProductDetails(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*domain.ProductDetail, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SetProductAvailability(ctx context.Context, productID uuid.UUID, available bool) (*domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	InsertParameterGroup(ctx context.Context, group domain.ParameterGroup) (*domain.ParameterGroup, error)
	InsertParameter(ctx context.Context, parameter domain.Parameter) (*domain.Parameter, error)
	AttachParameterGroup(ctx context.Context, productID, groupID uuid.UUID, defaultParameterID *uuid.UUID, sortOrder int32) error
	GetParameterGroup(ctx context.Context, groupID uuid.UUID) (*domain.ParameterGroupDetail, error)

	// Specials
	GetSpecial(ctx context.Context, specialID uuid.UUID) (*domain.Special, error)
	ListSpecialsByStatus(ctx context.Context, status domain.SpecialStatus) ([]domain.Special, error)
	UpdateSpecialStatus(ctx context.Context, specialID uuid.UUID, status domain.SpecialStatus) (*domain.Special, error)

	// Orders
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderByCartID(ctx context.Context, cartID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	InsertOrderLineItem(ctx context.Context, item domain.OrderLineItem) (*domain.OrderLineItem, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error
	UpdateOrderTotal(ctx context.Context, orderID uuid.UUID, totalCents int64) error

	// History (append-only; no update or delete exists)
	InsertHistoryEntry(ctx context.Context, entry domain.HistoryEntry) (*domain.HistoryEntry, error)
	ListHistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.HistoryEntry, error)
}
