package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ostrem/kasse/internal/domain"
)

const orderColumns = `id, cart_id, user_id, customer_name, phone, secondary_phone, address, status, total_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID, &o.CartID, &o.UserID, &o.CustomerName, &o.Phone,
		&o.SecondaryPhone, &o.Address, &o.Status, &o.TotalCents,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

const orderItemColumns = `id, order_id, product_id, special_id, product_name, quantity, unit_price_cents, selection, created_at`

func scanOrderLineItem(row pgx.Row) (*domain.OrderLineItem, error) {
	var (
		item domain.OrderLineItem
		raw  []byte
	)
	if err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.SpecialID,
		&item.ProductName, &item.Quantity, &item.UnitPriceCents,
		&raw, &item.CreatedAt,
	); err != nil {
		return nil, err
	}
	selection, err := unmarshalSelection(raw)
	if err != nil {
		return nil, err
	}
	item.Selection = selection
	return &item, nil
}

// loadOrderItems attaches line items to the given orders.
func (s *Store) loadOrderItems(ctx context.Context, orders map[uuid.UUID]*domain.Order) error {
	const op = "order.items"

	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_line_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, created_at, id`,
		ids,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to load order items")
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanOrderLineItem(rows)
		if err != nil {
			return domain.Internal(err, op, "failed to scan order item")
		}
		if o, ok := orders[item.OrderID]; ok {
			o.Items = append(o.Items, *item)
		}
	}
	return rows.Err()
}

func (s *Store) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "order.get"

	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get order", domain.ErrOrderNotFound)
	}

	if err := s.loadOrderItems(ctx, map[uuid.UUID]*domain.Order{order.ID: order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) GetOrderByCartID(ctx context.Context, cartID uuid.UUID) (*domain.Order, error) {
	const op = "order.get_by_cart"

	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE cart_id = $1`, cartID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get order by cart", domain.ErrOrderNotFound)
	}

	if err := s.loadOrderItems(ctx, map[uuid.UUID]*domain.Order{order.ID: order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	const op = "order.list"

	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, domain.Internal(err, op, "failed to scan order")
		}
		orders = append(orders, *order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}
	if err := s.loadOrderItems(ctx, byID); err != nil {
		return nil, err
	}
	return orders, nil
}

// InsertOrder creates the order row. The unique constraint on cart_id
// surfaces as a conflict error when the cart has already been converted.
func (s *Store) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	const op = "order.insert"

	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (id, cart_id, user_id, customer_name, phone, secondary_phone, address, status, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns,
		uuid.New(), order.CartID, order.UserID, order.CustomerName, order.Phone,
		order.SecondaryPhone, order.Address, order.Status, order.TotalCents,
	)
	inserted, err := scanOrder(row)
	if err != nil {
		return nil, mapError(err, op, "order already exists for cart", domain.ErrOrderNotFound)
	}
	return inserted, nil
}

func (s *Store) InsertOrderLineItem(ctx context.Context, item domain.OrderLineItem) (*domain.OrderLineItem, error) {
	const op = "order.insert_item"

	selection, err := marshalSelection(item.Selection)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode selection")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO order_line_items (id, order_id, product_id, special_id, product_name, quantity, unit_price_cents, selection)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderItemColumns,
		uuid.New(), item.OrderID, item.ProductID, item.SpecialID,
		item.ProductName, item.Quantity, item.UnitPriceCents, selection,
	)
	inserted, err := scanOrderLineItem(row)
	if err != nil {
		return nil, mapError(err, op, "failed to insert order line item", domain.ErrOrderNotFound)
	}
	return inserted, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	const op = "order.update_status"

	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update order status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *Store) UpdateOrderTotal(ctx context.Context, orderID uuid.UUID, totalCents int64) error {
	const op = "order.update_total"

	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET total_cents = $2, updated_at = now() WHERE id = $1`,
		orderID, totalCents,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update order total")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
