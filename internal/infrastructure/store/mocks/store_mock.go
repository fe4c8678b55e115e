package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// MockStore is an in-memory implementation of store.Store for testing.
// Transactions hold the store lock and stage writes, so a failing transaction
// leaves nothing behind.
type MockStore struct {
	mu       sync.Mutex
	products map[string]*product.Product
	users    map[string]*user.User
	carts    map[string]*cart.Cart
	orders   map[string]*order.Order

	// For tracking calls in tests
	AdjustCalls     []inventory.Deltas
	UpdateCartCalls []string
	TxCount         int

	// Error injection
	UpdateCartErr  error
	InsertOrderErr error
	UpdateErr      error
	GetOrderErr    error
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{
		products: make(map[string]*product.Product),
		users:    make(map[string]*user.User),
		carts:    make(map[string]*cart.Cart),
		orders:   make(map[string]*order.Order),
	}
}

var _ store.Store = (*MockStore)(nil)

// Seeding helpers

func (m *MockStore) AddProduct(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p.Clone()
}

func (m *MockStore) RemoveProduct(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

func (m *MockStore) AddUser(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
}

func (m *MockStore) SetCart(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

func (m *MockStore) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o.Clone()
}

// Stock returns the current stock of a product, or -1 if it does not exist.
func (m *MockStore) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return -1
	}
	return p.Stock
}

// OrderCount returns how many orders are stored.
func (m *MockStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// store.Store

func (m *MockStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockStore) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return cart.New(userID), nil
	}
	return c.Clone(), nil
}

func (m *MockStore) UpdateCart(ctx context.Context, userID string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCartCalls = append(m.UpdateCartCalls, userID)
	if m.UpdateCartErr != nil {
		return nil, m.UpdateCartErr
	}

	c := cart.New(userID)
	if stored, ok := m.carts[userID]; ok {
		c = stored.Clone()
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	m.carts[userID] = c.Clone()
	return c, nil
}

func (m *MockStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetOrderErr != nil {
		return nil, m.GetOrderErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *MockStore) listOrders(match func(*order.Order) bool) []*order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]*order.Order, 0)
	for _, o := range m.orders {
		if match(o) {
			orders = append(orders, o.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (m *MockStore) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return m.listOrders(func(o *order.Order) bool { return o.UserID == userID }), nil
}

func (m *MockStore) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*order.Order, error) {
	return m.listOrders(func(o *order.Order) bool {
		for _, item := range o.Items {
			if item.VendorID == vendorID {
				return true
			}
		}
		return false
	}), nil
}

func (m *MockStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return m.listOrders(func(*order.Order) bool { return true }), nil
}

func (m *MockStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCount++

	tx := &mockTx{
		m:      m,
		stock:  make(map[string]int, len(m.products)),
		orders: make(map[string]*order.Order),
	}
	for id, p := range m.products {
		tx.stock[id] = p.Stock
	}

	if err := fn(tx); err != nil {
		return err
	}

	for id, stock := range tx.stock {
		m.products[id].Stock = stock
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	m.AdjustCalls = append(m.AdjustCalls, tx.adjusted...)
	return nil
}

// mockTx runs with MockStore.mu held; it must not call locking methods.
type mockTx struct {
	m        *MockStore
	stock    map[string]int
	orders   map[string]*order.Order
	adjusted []inventory.Deltas
}

func (t *mockTx) GetProductsForUpdate(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	products := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		p, ok := t.m.products[id]
		if !ok {
			continue
		}
		c := p.Clone()
		c.Stock = t.stock[id]
		products[id] = c
	}
	return products, nil
}

func (t *mockTx) Adjust(ctx context.Context, deltas inventory.Deltas) error {
	if err := inventory.Apply(t.stock, deltas); err != nil {
		return err
	}
	t.adjusted = append(t.adjusted, deltas)
	return nil
}

func (t *mockTx) InsertOrder(ctx context.Context, o *order.Order) error {
	if t.m.InsertOrderErr != nil {
		return t.m.InsertOrderErr
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *mockTx) lookup(id string) (*order.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	o, ok := t.m.orders[id]
	return o, ok
}

func (t *mockTx) GetOrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	if t.m.GetOrderErr != nil {
		return nil, t.m.GetOrderErr
	}
	o, ok := t.lookup(id)
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (t *mockTx) UpdateOrderStatus(ctx context.Context, id string, status order.Status, updatedAt time.Time) error {
	if t.m.UpdateErr != nil {
		return t.m.UpdateErr
	}
	o, ok := t.lookup(id)
	if !ok {
		return order.ErrOrderNotFound
	}
	c := o.Clone()
	c.Status = status
	c.UpdatedAt = updatedAt
	t.orders[id] = c
	return nil
}
