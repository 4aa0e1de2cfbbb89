package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ostrem/kasse/internal/domain"
)

// marshalSelection encodes a selection for a jsonb column. An empty
// selection stores NULL.
func marshalSelection(s domain.Selection) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalSelection(raw []byte) (domain.Selection, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s domain.Selection
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// ownerColumns splits a CartOwner into the nullable user_id and
// guest_session_id columns.
func ownerColumns(owner domain.CartOwner) (userID *uuid.UUID, sessionID *string) {
	if owner.IsUser() {
		id := owner.UserID()
		return &id, nil
	}
	sid := owner.SessionID()
	return nil, &sid
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		cart      domain.Cart
		userID    *uuid.UUID
		sessionID *string
	)
	if err := row.Scan(&cart.ID, &userID, &sessionID, &cart.CreatedAt); err != nil {
		return nil, err
	}
	if userID != nil {
		cart.Owner = domain.UserOwner(*userID)
	} else if sessionID != nil {
		cart.Owner = domain.GuestOwner(*sessionID)
	}
	return &cart, nil
}

const cartColumns = `id, user_id, guest_session_id, created_at`

func (s *Store) GetCartByID(ctx context.Context, cartID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.get"

	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, cartID)
	cart, err := scanCart(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get cart", domain.ErrCartNotFound)
	}
	return cart, nil
}

func (s *Store) GetCartByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	const op = "cart.get_by_owner"

	var row pgx.Row
	if owner.IsUser() {
		row = s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, owner.UserID())
	} else {
		row = s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE guest_session_id = $1`, owner.SessionID())
	}

	cart, err := scanCart(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get cart by owner", domain.ErrCartNotFound)
	}
	return cart, nil
}

func (s *Store) CreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	const op = "cart.create"

	userID, sessionID := ownerColumns(owner)
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, guest_session_id)
		VALUES ($1, $2, $3)
		RETURNING `+cartColumns,
		uuid.New(), userID, sessionID,
	)
	cart, err := scanCart(row)
	if err != nil {
		return nil, mapError(err, op, "cart already exists for identity", domain.ErrCartNotFound)
	}
	return cart, nil
}

func (s *Store) ReassignCartOwner(ctx context.Context, cartID uuid.UUID, owner domain.CartOwner) error {
	const op = "cart.reassign"

	userID, sessionID := ownerColumns(owner)
	tag, err := s.db.Exec(ctx, `
		UPDATE carts SET user_id = $2, guest_session_id = $3 WHERE id = $1`,
		cartID, userID, sessionID,
	)
	if err != nil {
		return mapError(err, op, "failed to reassign cart", domain.ErrCartNotFound)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	const op = "cart.delete"

	// Lines are removed by the ON DELETE CASCADE on cart_items.cart_id.
	tag, err := s.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete cart")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

const cartItemColumns = `id, cart_id, product_id, special_id, quantity, selection, unit_price_cents, created_at`

func scanCartItem(row pgx.Row) (*domain.CartItem, error) {
	var (
		item domain.CartItem
		raw  []byte
	)
	if err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.SpecialID,
		&item.Quantity, &raw, &item.UnitPriceCents, &item.CreatedAt,
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

func (s *Store) GetCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	const op = "cart.items"

	rows, err := s.db.Query(ctx, `
		SELECT `+cartItemColumns+`
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, id`,
		cartID,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list cart items")
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan cart item")
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list cart items")
	}
	return items, nil
}

func (s *Store) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	const op = "cart.item"

	row := s.db.QueryRow(ctx, `
		SELECT `+cartItemColumns+`
		FROM cart_items
		WHERE id = $1 AND cart_id = $2`,
		itemID, cartID,
	)
	item, err := scanCartItem(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get cart item", domain.ErrCartItemNotFound)
	}
	return item, nil
}

// UpsertCartItem inserts the line or, on a (cart_id, line_key) conflict,
// accumulates quantity into the existing line.
func (s *Store) UpsertCartItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, error) {
	const op = "cart.upsert_item"

	selection, err := marshalSelection(item.Selection)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode selection")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, special_id, quantity, selection, unit_price_cents, line_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cart_id, line_key)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING `+cartItemColumns,
		uuid.New(), item.CartID, item.ProductID, item.SpecialID,
		item.Quantity, selection, item.UnitPriceCents, item.LineKey(),
	)
	upserted, err := scanCartItem(row)
	if err != nil {
		return nil, mapError(err, op, "failed to upsert cart item", domain.ErrCartNotFound)
	}
	return upserted, nil
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int32) error {
	const op = "cart.update_quantity"

	tag, err := s.db.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, itemID, quantity)
	if err != nil {
		return domain.Internal(err, op, "failed to update cart item quantity")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (s *Store) DeleteCartItem(ctx context.Context, itemID uuid.UUID) error {
	const op = "cart.delete_item"

	tag, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete cart item")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}
