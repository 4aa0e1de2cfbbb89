package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

// memStore is an in-memory Store used by the service tests. InTx snapshots
// state and restores it when fn fails, mirroring the all-or-nothing
// semantics of the postgres implementation.
type memStore struct {
	mu sync.Mutex

	carts      map[uuid.UUID]domain.Cart
	cartItems  map[uuid.UUID]domain.CartItem
	products   map[uuid.UUID]*domain.ProductDetail
	groups     map[uuid.UUID]domain.ParameterGroupDetail
	specials   map[uuid.UUID]domain.Special
	orders     map[uuid.UUID]domain.Order
	orderItems map[uuid.UUID][]domain.OrderLineItem
	history    []domain.HistoryEntry

	// failures maps a method name to an error returned on its next call,
	// simulating a store failure mid-transaction.
	failures map[string]error

	inTx bool
}

func newMemStore() *memStore {
	return &memStore{
		carts:      make(map[uuid.UUID]domain.Cart),
		cartItems:  make(map[uuid.UUID]domain.CartItem),
		products:   make(map[uuid.UUID]*domain.ProductDetail),
		groups:     make(map[uuid.UUID]domain.ParameterGroupDetail),
		specials:   make(map[uuid.UUID]domain.Special),
		orders:     make(map[uuid.UUID]domain.Order),
		orderItems: make(map[uuid.UUID][]domain.OrderLineItem),
		failures:   make(map[string]error),
	}
}

func (m *memStore) failNext(method string, err error) {
	m.failures[method] = err
}

func (m *memStore) fail(method string) error {
	if err, ok := m.failures[method]; ok {
		delete(m.failures, method)
		return err
	}
	return nil
}

func (m *memStore) snapshot() *memStore {
	snap := newMemStore()
	for k, v := range m.carts {
		snap.carts[k] = v
	}
	for k, v := range m.cartItems {
		snap.cartItems[k] = v
	}
	for k, v := range m.orders {
		snap.orders[k] = v
	}
	for k, v := range m.orderItems {
		items := make([]domain.OrderLineItem, len(v))
		copy(items, v)
		snap.orderItems[k] = items
	}
	for k, v := range m.specials {
		snap.specials[k] = v
	}
	for k, v := range m.products {
		detail := *v
		detail.Groups = append([]domain.AttachedGroup(nil), v.Groups...)
		snap.products[k] = &detail
	}
	for k, v := range m.groups {
		v.Parameters = append([]domain.Parameter(nil), v.Parameters...)
		snap.groups[k] = v
	}
	snap.history = append([]domain.HistoryEntry(nil), m.history...)
	return snap
}

func (m *memStore) restore(snap *memStore) {
	m.carts = snap.carts
	m.cartItems = snap.cartItems
	m.orders = snap.orders
	m.orderItems = snap.orderItems
	m.specials = snap.specials
	m.products = snap.products
	m.groups = snap.groups
	m.history = snap.history
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	m.inTx = true
	err := fn(m)
	m.inTx = false
	if err != nil {
		m.restore(snap)
	}
	return err
}

// Carts

func (m *memStore) GetCartByID(ctx context.Context, cartID uuid.UUID) (*domain.Cart, error) {
	if err := m.fail("GetCartByID"); err != nil {
		return nil, err
	}
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return &cart, nil
}

func (m *memStore) GetCartByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if err := m.fail("GetCartByOwner"); err != nil {
		return nil, err
	}
	for _, cart := range m.carts {
		if cart.Owner == owner {
			c := cart
			return &c, nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (m *memStore) CreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if err := m.fail("CreateCart"); err != nil {
		return nil, err
	}
	for _, cart := range m.carts {
		if cart.Owner == owner {
			return nil, domain.Conflict("cart.create", "cart already exists for identity")
		}
	}
	cart := domain.Cart{ID: uuid.New(), Owner: owner, CreatedAt: time.Now()}
	m.carts[cart.ID] = cart
	return &cart, nil
}

func (m *memStore) ReassignCartOwner(ctx context.Context, cartID uuid.UUID, owner domain.CartOwner) error {
	if err := m.fail("ReassignCartOwner"); err != nil {
		return err
	}
	cart, ok := m.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Owner = owner
	m.carts[cartID] = cart
	return nil
}

func (m *memStore) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := m.fail("DeleteCart"); err != nil {
		return err
	}
	if _, ok := m.carts[cartID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(m.carts, cartID)
	for id, item := range m.cartItems {
		if item.CartID == cartID {
			delete(m.cartItems, id)
		}
	}
	return nil
}

func (m *memStore) GetCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	if err := m.fail("GetCartItems"); err != nil {
		return nil, err
	}
	var items []domain.CartItem
	for _, item := range m.cartItems {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (m *memStore) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	if err := m.fail("GetCartItem"); err != nil {
		return nil, err
	}
	item, ok := m.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return nil, domain.ErrCartItemNotFound
	}
	return &item, nil
}

func (m *memStore) UpsertCartItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, error) {
	if err := m.fail("UpsertCartItem"); err != nil {
		return nil, err
	}
	key := item.LineKey()
	for id, existing := range m.cartItems {
		if existing.CartID == item.CartID && existing.LineKey() == key {
			existing.Quantity += item.Quantity
			m.cartItems[id] = existing
			return &existing, nil
		}
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	m.cartItems[item.ID] = item
	return &item, nil
}

func (m *memStore) UpdateCartItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int32) error {
	if err := m.fail("UpdateCartItemQuantity"); err != nil {
		return err
	}
	item, ok := m.cartItems[itemID]
	if !ok {
		return domain.ErrCartItemNotFound
	}
	item.Quantity = quantity
	m.cartItems[itemID] = item
	return nil
}

func (m *memStore) DeleteCartItem(ctx context.Context, itemID uuid.UUID) error {
	if err := m.fail("DeleteCartItem"); err != nil {
		return err
	}
	if _, ok := m.cartItems[itemID]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(m.cartItems, itemID)
	return nil
}

// Catalog

func (m *memStore) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	if err := m.fail("GetProduct"); err != nil {
		return nil, err
	}
	detail, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p := detail.Product
	return &p, nil
}

func (m *memStore) GetProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	if err := m.fail("GetProductDetail"); err != nil {
		return nil, err
	}
	detail, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return detail, nil
}

func (m *memStore) GetProductDetails(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*domain.ProductDetail, error) {
	if err := m.fail("GetProductDetails"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*domain.ProductDetail, len(productIDs))
	for _, id := range productIDs {
		if detail, ok := m.products[id]; ok {
			out[id] = detail
		}
	}
	return out, nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	for _, detail := range m.products {
		if detail.Product.Available {
			products = append(products, detail.Product)
		}
	}
	return products, nil
}

func (m *memStore) SetProductAvailability(ctx context.Context, productID uuid.UUID, available bool) (*domain.Product, error) {
	detail, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	detail.Product.Available = available
	p := detail.Product
	return &p, nil
}

func (m *memStore) InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := m.fail("InsertProduct"); err != nil {
		return nil, err
	}
	product.ID = uuid.New()
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.products[product.ID] = &domain.ProductDetail{Product: product}
	return &product, nil
}

func (m *memStore) InsertParameterGroup(ctx context.Context, group domain.ParameterGroup) (*domain.ParameterGroup, error) {
	if err := m.fail("InsertParameterGroup"); err != nil {
		return nil, err
	}
	group.ID = uuid.New()
	m.groups[group.ID] = domain.ParameterGroupDetail{Group: group}
	return &group, nil
}

func (m *memStore) InsertParameter(ctx context.Context, parameter domain.Parameter) (*domain.Parameter, error) {
	if err := m.fail("InsertParameter"); err != nil {
		return nil, err
	}
	detail, ok := m.groups[parameter.GroupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	parameter.ID = uuid.New()
	detail.Parameters = append(detail.Parameters, parameter)
	m.groups[parameter.GroupID] = detail
	return &parameter, nil
}

func (m *memStore) AttachParameterGroup(ctx context.Context, productID, groupID uuid.UUID, defaultParameterID *uuid.UUID, sortOrder int32) error {
	if err := m.fail("AttachParameterGroup"); err != nil {
		return err
	}
	product, ok := m.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	group, ok := m.groups[groupID]
	if !ok {
		return domain.ErrGroupNotFound
	}
	product.Groups = append(product.Groups, domain.AttachedGroup{
		Group:              group.Group,
		Parameters:         append([]domain.Parameter(nil), group.Parameters...),
		DefaultParameterID: defaultParameterID,
		SortOrder:          sortOrder,
	})
	return nil
}

func (m *memStore) GetParameterGroup(ctx context.Context, groupID uuid.UUID) (*domain.ParameterGroupDetail, error) {
	if err := m.fail("GetParameterGroup"); err != nil {
		return nil, err
	}
	detail, ok := m.groups[groupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	out := domain.ParameterGroupDetail{
		Group:      detail.Group,
		Parameters: append([]domain.Parameter(nil), detail.Parameters...),
	}
	return &out, nil
}

// Specials

func (m *memStore) GetSpecial(ctx context.Context, specialID uuid.UUID) (*domain.Special, error) {
	if err := m.fail("GetSpecial"); err != nil {
		return nil, err
	}
	sp, ok := m.specials[specialID]
	if !ok {
		return nil, domain.ErrSpecialNotFound
	}
	return &sp, nil
}

func (m *memStore) ListSpecialsByStatus(ctx context.Context, status domain.SpecialStatus) ([]domain.Special, error) {
	var out []domain.Special
	for _, sp := range m.specials {
		if sp.Status == status {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateSpecialStatus(ctx context.Context, specialID uuid.UUID, status domain.SpecialStatus) (*domain.Special, error) {
	sp, ok := m.specials[specialID]
	if !ok {
		return nil, domain.ErrSpecialNotFound
	}
	sp.Status = status
	m.specials[specialID] = sp
	return &sp, nil
}

// Orders

func (m *memStore) orderWithItems(order domain.Order) domain.Order {
	items := m.orderItems[order.ID]
	order.Items = make([]domain.OrderLineItem, len(items))
	copy(order.Items, items)
	return order
}

func (m *memStore) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if err := m.fail("GetOrderByID"); err != nil {
		return nil, err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o := m.orderWithItems(order)
	return &o, nil
}

func (m *memStore) GetOrderByCartID(ctx context.Context, cartID uuid.UUID) (*domain.Order, error) {
	if err := m.fail("GetOrderByCartID"); err != nil {
		return nil, err
	}
	for _, order := range m.orders {
		if order.CartID != nil && *order.CartID == cartID {
			o := m.orderWithItems(order)
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range m.orders {
		out = append(out, m.orderWithItems(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := m.fail("InsertOrder"); err != nil {
		return nil, err
	}
	if order.CartID != nil {
		for _, existing := range m.orders {
			if existing.CartID != nil && *existing.CartID == *order.CartID {
				return nil, domain.Conflict("order.insert", "order already exists for cart")
			}
		}
	}
	inserted := *order
	inserted.ID = uuid.New()
	inserted.CreatedAt = time.Now()
	inserted.UpdatedAt = inserted.CreatedAt
	m.orders[inserted.ID] = inserted
	return &inserted, nil
}

func (m *memStore) InsertOrderLineItem(ctx context.Context, item domain.OrderLineItem) (*domain.OrderLineItem, error) {
	if err := m.fail("InsertOrderLineItem"); err != nil {
		return nil, err
	}
	if _, ok := m.orders[item.OrderID]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	m.orderItems[item.OrderID] = append(m.orderItems[item.OrderID], item)
	return &item, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	if err := m.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	m.orders[orderID] = order
	return nil
}

func (m *memStore) UpdateOrderTotal(ctx context.Context, orderID uuid.UUID, totalCents int64) error {
	if err := m.fail("UpdateOrderTotal"); err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.TotalCents = totalCents
	order.UpdatedAt = time.Now()
	m.orders[orderID] = order
	return nil
}

// History

func (m *memStore) InsertHistoryEntry(ctx context.Context, entry domain.HistoryEntry) (*domain.HistoryEntry, error) {
	if err := m.fail("InsertHistoryEntry"); err != nil {
		return nil, err
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	m.history = append(m.history, entry)
	return &entry, nil
}

func (m *memStore) ListHistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, entry := range m.history {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

var _ Store = (*memStore)(nil)
