package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ostrem/kasse/internal/domain"
)

// seedEnclosure adds a configurable product to the store: base 10000 with a
// "Color" group (red +0 default, blue +500) and returns its ids.
func seedEnclosure(store *memStore) map[string]uuid.UUID {
	ids := map[string]uuid.UUID{
		"product": uuid.New(),
		"color":   uuid.New(),
		"red":     uuid.New(),
		"blue":    uuid.New(),
	}

	redID := ids["red"]
	store.products[ids["product"]] = &domain.ProductDetail{
		Product: domain.Product{
			ID:             ids["product"],
			Category:       "enclosures",
			Name:           "Vented Wall Enclosure",
			BasePriceCents: 10000,
			Available:      true,
		},
		Groups: []domain.AttachedGroup{
			{
				Group:              domain.ParameterGroup{ID: ids["color"], Name: "Color", SortOrder: 1},
				DefaultParameterID: &redID,
				Parameters: []domain.Parameter{
					{ID: ids["red"], GroupID: ids["color"], Label: "Red", PriceDeltaCents: 0, SortOrder: 1},
					{ID: ids["blue"], GroupID: ids["color"], Label: "Blue", PriceDeltaCents: 500, SortOrder: 2},
				},
			},
		},
	}

	return ids
}

func seedSpecial(store *memStore, ids map[string]uuid.UUID) uuid.UUID {
	specialID := uuid.New()
	store.specials[specialID] = domain.Special{
		ID:               specialID,
		Name:             "Workshop Bundle",
		Status:           domain.SpecialStatusAvailable,
		BundlePriceCents: 18000,
		Items: []domain.SpecialItem{
			{
				SpecialID: specialID,
				ProductID: ids["product"],
				Quantity:  2,
				Selection: domain.Selection{ids["color"]: ids["blue"]},
			},
		},
	}
	return specialID
}

func newTestCartService(store *memStore) domain.CartService {
	return NewCartService(store, nil, zerolog.Nop())
}

// clearedAfterCommitStore simulates a concurrent removal committing right
// after this request's transaction: line reads outside a transaction see
// an already emptied cart.
type clearedAfterCommitStore struct {
	*memStore
}

func (s *clearedAfterCommitStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.memStore.InTx(ctx, func(Store) error { return fn(s) })
}

func (s *clearedAfterCommitStore) GetCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	if !s.inTx {
		return nil, nil
	}
	return s.memStore.GetCartItems(ctx, cartID)
}

func TestAddProductToCart_SummaryReflectsOwnWrite(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := NewCartService(&clearedAfterCommitStore{memStore: store}, nil, zerolog.Nop())

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-race"))
	require.NoError(t, err)

	// The returned summary describes the state this upsert produced, even
	// though a concurrent clear lands immediately after it commits.
	summary, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, nil)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int64(10000), summary.TotalCents)
	assert.Equal(t, 1, summary.ItemCount)
}

func TestGetOrCreateCart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestCartService(store)

	t.Run("zero owner rejected", func(t *testing.T) {
		_, err := svc.GetOrCreateCart(ctx, domain.CartOwner{})
		assert.Equal(t, domain.EIDENTITY, domain.ErrorCode(err))
	})

	t.Run("creates then returns existing", func(t *testing.T) {
		owner := domain.GuestOwner("sess-123")

		first, err := svc.GetOrCreateCart(ctx, owner)
		require.NoError(t, err)

		second, err := svc.GetOrCreateCart(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("user and guest identities are distinct carts", func(t *testing.T) {
		userCart, err := svc.GetOrCreateCart(ctx, domain.UserOwner(uuid.New()))
		require.NoError(t, err)

		guestCart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-456"))
		require.NoError(t, err)
		assert.NotEqual(t, userCart.ID, guestCart.ID)
	})
}

func TestAddProductToCart_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	selection := domain.Selection{ids["color"]: ids["blue"]}

	summary, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 2, selection)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int64(10500), summary.Items[0].UnitPriceCents)

	// Same (product, selection) again: quantity accumulates, line count constant.
	summary, err = svc.AddProductToCart(ctx, cart.ID, ids["product"], 3, selection)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int32(5), summary.Items[0].Quantity)

	// Different selection: a second line is appended.
	summary, err = svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, domain.Selection{ids["color"]: ids["red"]})
	require.NoError(t, err)
	assert.Len(t, summary.Items, 2)
}

func TestAddProductToCart_DefaultedSelectionSharesLine(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	// Omitting the defaulted group and selecting the default explicitly
	// resolve to the same snapshot, so they share one line.
	_, err = svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, nil)
	require.NoError(t, err)

	summary, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, domain.Selection{ids["color"]: ids["red"]})
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int32(2), summary.Items[0].Quantity)
	assert.Equal(t, int64(10000), summary.Items[0].UnitPriceCents)
}

func TestAddProductToCart_Failures(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 0, nil)
		assert.Equal(t, domain.ErrInvalidQuantity, err)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.AddProductToCart(ctx, cart.ID, uuid.New(), 1, nil)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("disabled product", func(t *testing.T) {
		store.products[ids["product"]].Product.Available = false
		defer func() { store.products[ids["product"]].Product.Available = true }()

		_, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, nil)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	})

	t.Run("invalid parameter surfaces", func(t *testing.T) {
		_, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 1, domain.Selection{ids["color"]: uuid.New()})
		assert.Equal(t, domain.EPARAMETER, domain.ErrorCode(err))
	})
}

func TestAddSpecialToCart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	specialID := seedSpecial(store, ids)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	summary, err := svc.AddSpecialToCart(ctx, cart.ID, specialID, 1)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int64(18000), summary.Items[0].UnitPriceCents)

	// Same special id upserts into the same line.
	summary, err = svc.AddSpecialToCart(ctx, cart.ID, specialID, 1)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int32(2), summary.Items[0].Quantity)
}

func TestAddSpecialToCart_UnavailableConstituent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	specialID := seedSpecial(store, ids)
	store.products[ids["product"]].Product.Available = false
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	_, err = svc.AddSpecialToCart(ctx, cart.ID, specialID, 1)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestGetCartSummary_SnapshotsAreAuthoritative(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	_, err = svc.AddProductToCart(ctx, cart.ID, ids["product"], 2, domain.Selection{ids["color"]: ids["blue"]})
	require.NoError(t, err)

	// A later price change must not affect the cart total: display uses
	// add-time snapshots, re-validation happens only at checkout.
	store.products[ids["product"]].Product.BasePriceCents = 99999

	summary, err := svc.GetCartSummary(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2*10500), summary.TotalCents)
	assert.Equal(t, 2, summary.ItemCount)
}

func TestUpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	cart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)

	summary, err := svc.AddProductToCart(ctx, cart.ID, ids["product"], 2, nil)
	require.NoError(t, err)
	itemID := summary.Items[0].ID

	summary, err = svc.UpdateItemQuantity(ctx, cart.ID, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(5), summary.Items[0].Quantity)

	_, err = svc.UpdateItemQuantity(ctx, cart.ID, itemID, -1)
	assert.Equal(t, domain.ErrInvalidQuantity, err)

	// Zero removes the line.
	summary, err = svc.UpdateItemQuantity(ctx, cart.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestMigrateGuestCartToUser_Reassigns(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	guestCart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, guestCart.ID, ids["product"], 1, nil)
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, svc.MigrateGuestCartToUser(ctx, userID, "sess-1"))

	// The same cart row now belongs to the user; the guest identity is gone.
	userCart, err := svc.GetOrCreateCart(ctx, domain.UserOwner(userID))
	require.NoError(t, err)
	assert.Equal(t, guestCart.ID, userCart.ID)

	_, err = store.GetCartByOwner(ctx, domain.GuestOwner("sess-1"))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestMigrateGuestCartToUser_MergesLines(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	userID := uuid.New()
	blue := domain.Selection{ids["color"]: ids["blue"]}
	red := domain.Selection{ids["color"]: ids["red"]}

	userCart, err := svc.GetOrCreateCart(ctx, domain.UserOwner(userID))
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, userCart.ID, ids["product"], 1, blue)
	require.NoError(t, err)

	guestCart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, guestCart.ID, ids["product"], 2, blue)
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, guestCart.ID, ids["product"], 1, red)
	require.NoError(t, err)

	require.NoError(t, svc.MigrateGuestCartToUser(ctx, userID, "sess-1"))

	// Two guest lines into a user cart with one overlapping line: exactly
	// two lines remain, the overlap's quantity summed, guest cart deleted.
	summary, err := svc.GetCartSummary(ctx, userCart.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 2)

	byKey := map[string]int32{}
	for _, item := range summary.Items {
		byKey[item.LineKey()] = item.Quantity
	}
	productID := ids["product"]
	blueLine := domain.CartItem{ProductID: &productID, Selection: blue}
	redLine := domain.CartItem{ProductID: &productID, Selection: red}
	assert.Equal(t, int32(3), byKey[blueLine.LineKey()])
	assert.Equal(t, int32(1), byKey[redLine.LineKey()])

	_, err = store.GetCartByID(ctx, guestCart.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestMigrateGuestCartToUser_FailureLeavesBothCartsUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ids := seedEnclosure(store)
	svc := newTestCartService(store)

	userID := uuid.New()
	userCart, err := svc.GetOrCreateCart(ctx, domain.UserOwner(userID))
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, userCart.ID, ids["product"], 1, nil)
	require.NoError(t, err)

	guestCart, err := svc.GetOrCreateCart(ctx, domain.GuestOwner("sess-1"))
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, guestCart.ID, ids["product"], 2, domain.Selection{ids["color"]: ids["blue"]})
	require.NoError(t, err)

	// The final delete fails mid-transaction; the whole merge rolls back.
	store.failNext("DeleteCart", domain.Internal(nil, "cart.delete", "connection reset"))

	err = svc.MigrateGuestCartToUser(ctx, userID, "sess-1")
	require.Error(t, err)
	assert.Equal(t, domain.EMERGE, domain.ErrorCode(err))

	userSummary, err := svc.GetCartSummary(ctx, userCart.ID)
	require.NoError(t, err)
	assert.Len(t, userSummary.Items, 1)
	assert.Equal(t, int32(1), userSummary.Items[0].Quantity)

	guestSummary, err := svc.GetCartSummary(ctx, guestCart.ID)
	require.NoError(t, err)
	assert.Len(t, guestSummary.Items, 1)
	assert.Equal(t, int32(2), guestSummary.Items[0].Quantity)
}

func TestMigrateGuestCartToUser_NoGuestCartIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestCartService(store)

	assert.NoError(t, svc.MigrateGuestCartToUser(ctx, uuid.New(), "sess-unknown"))
}

func TestMigrateGuestCartToUser_InvalidIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newTestCartService(newMemStore())

	err := svc.MigrateGuestCartToUser(ctx, uuid.Nil, "sess-1")
	assert.Equal(t, domain.EIDENTITY, domain.ErrorCode(err))

	err = svc.MigrateGuestCartToUser(ctx, uuid.New(), "")
	assert.Equal(t, domain.EIDENTITY, domain.ErrorCode(err))
}
