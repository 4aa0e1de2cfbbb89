package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cart-related domain errors.
var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrInvalidIdentity  = &Error{Code: EIDENTITY, Message: "Exactly one of user id or guest session id must be provided"}
	ErrMergeFailed      = &Error{Code: EMERGE, Message: "Guest cart merge failed; both carts left untouched"}
)

// Selection maps a parameter group id to the selected parameter id.
// It is stored as a snapshot on cart and order lines, never live-joined.
type Selection map[uuid.UUID]uuid.UUID

// Clone returns a copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for g, p := range s {
		out[g] = p
	}
	return out
}

// Fingerprint returns a canonical string form of the selection, used as
// part of the cart line upsert key. Stable across map iteration order.
func (s Selection) Fingerprint() string {
	if len(s) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(s))
	for g, p := range s {
		pairs = append(pairs, g.String()+"="+p.String())
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// ownerKind discriminates the CartOwner variant.
type ownerKind uint8

const (
	ownerNone ownerKind = iota
	ownerUser
	ownerGuest
)

// CartOwner is the tagged identity variant of a cart: a cart belongs to
// exactly one of a registered user or a guest session, never both.
// The zero value is invalid.
type CartOwner struct {
	kind      ownerKind
	userID    uuid.UUID
	sessionID string
}

// UserOwner returns a cart owner for a registered user.
func UserOwner(userID uuid.UUID) CartOwner {
	return CartOwner{kind: ownerUser, userID: userID}
}

// GuestOwner returns a cart owner for a guest session.
func GuestOwner(sessionID string) CartOwner {
	return CartOwner{kind: ownerGuest, sessionID: sessionID}
}

// NewCartOwner builds a CartOwner from the optional identifiers supplied at
// the request boundary. Fails with ErrInvalidIdentity unless exactly one
// identifier is present.
func NewCartOwner(userID *uuid.UUID, guestSessionID string) (CartOwner, error) {
	hasUser := userID != nil && *userID != uuid.Nil
	hasGuest := guestSessionID != ""

	if hasUser == hasGuest {
		return CartOwner{}, ErrInvalidIdentity
	}
	if hasUser {
		return UserOwner(*userID), nil
	}
	return GuestOwner(guestSessionID), nil
}

// IsUser reports whether the owner is a registered user.
func (o CartOwner) IsUser() bool { return o.kind == ownerUser }

// IsGuest reports whether the owner is a guest session.
func (o CartOwner) IsGuest() bool { return o.kind == ownerGuest }

// UserID returns the user id; valid only when IsUser.
func (o CartOwner) UserID() uuid.UUID { return o.userID }

// SessionID returns the guest session id; valid only when IsGuest.
func (o CartOwner) SessionID() string { return o.sessionID }

// String renders the owner for logging.
func (o CartOwner) String() string {
	switch o.kind {
	case ownerUser:
		return "user:" + o.userID.String()
	case ownerGuest:
		return "guest:" + o.sessionID
	default:
		return "none"
	}
}

// Cart is the root aggregate for a shopping session. Items are owned by
// and cannot outlive the cart.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	Owner     CartOwner `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem is one cart line. A line references a product or a special,
// never both. Unit price and selection are snapshots taken at add-time;
// they are authoritative for cart display and re-validated only at checkout.
type CartItem struct {
	ID             uuid.UUID  `json:"id"`
	CartID         uuid.UUID  `json:"cart_id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	SpecialID      *uuid.UUID `json:"special_id,omitempty"`
	Quantity       int32      `json:"quantity"`
	Selection      Selection  `json:"selection,omitempty"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	CreatedAt      time.Time  `json:"created_at"`
}

// LineKey is the upsert identity of a cart line: same product + selection
// (or same special) accumulates quantity instead of duplicating lines.
func (i *CartItem) LineKey() string {
	if i.SpecialID != nil {
		return "s:" + i.SpecialID.String()
	}
	if i.ProductID != nil {
		return fmt.Sprintf("p:%s|%s", i.ProductID.String(), i.Selection.Fingerprint())
	}
	return ""
}

// LineSubtotalCents is quantity × snapshot unit price.
func (i *CartItem) LineSubtotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// CartSummary aggregates a cart with its lines and snapshot-derived total.
type CartSummary struct {
	Cart       Cart       `json:"cart"`
	Items      []CartItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
	ItemCount  int        `json:"item_count"`
}

// CartService provides cart identity, line upsert, and guest→user merge.
type CartService interface {
	// GetOrCreateCart returns the existing cart for the identity or creates one.
	GetOrCreateCart(ctx context.Context, owner CartOwner) (*Cart, error)

	// AddProductToCart upserts a product line: an existing line with the
	// same (product, selection) has its quantity incremented; otherwise a
	// new line is appended with a freshly resolved price snapshot.
	AddProductToCart(ctx context.Context, cartID uuid.UUID, productID uuid.UUID, quantity int32, selection Selection) (*CartSummary, error)

	// AddSpecialToCart upserts a special line keyed by special id, with the
	// special's bundle price as the unit price snapshot.
	AddSpecialToCart(ctx context.Context, cartID uuid.UUID, specialID uuid.UUID, quantity int32) (*CartSummary, error)

	// UpdateItemQuantity sets a line's quantity; zero removes the line.
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int32) (*CartSummary, error)

	// RemoveItem removes a line from the cart.
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*CartSummary, error)

	// GetCartSummary returns the cart with lines and the snapshot total;
	// prices are never re-resolved from current product state here.
	GetCartSummary(ctx context.Context, cartID uuid.UUID) (*CartSummary, error)

	// MigrateGuestCartToUser moves the guest cart to the user: ownership
	// reassignment when the user has no cart, line-by-line merge using the
	// upsert rule otherwise, then the guest cart is deleted. Transactional:
	// either all lines move or none do. Fails with a merge_failed error and
	// leaves both carts untouched on any failure.
	MigrateGuestCartToUser(ctx context.Context, userID uuid.UUID, guestSessionID string) error
}
