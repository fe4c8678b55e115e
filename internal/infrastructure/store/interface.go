package store

import (
	"context"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
)

// Store is the persistence boundary of the order engine. Product and user
// lookups are read-only views of collaborator data.
type Store interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	GetUser(ctx context.Context, id string) (*user.User, error)

	// GetCart returns an empty cart when the user has none.
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	// UpdateCart loads the user's cart, applies fn and stores the result.
	// Updates for one user are serialised so none is lost; if fn fails nothing
	// is written.
	UpdateCart(ctx context.Context, userID string, fn func(c *cart.Cart) error) (*cart.Cart, error)

	GetOrder(ctx context.Context, id string) (*order.Order, error)
	// Listings are newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID string) ([]*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)

	// WithTx runs fn in a single transaction. Any error from fn rolls back every
	// write made through tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional write surface. It doubles as the inventory ledger so
// stock changes commit or roll back together with the order write.
type Tx interface {
	inventory.Ledger

	// GetProductsForUpdate locks and returns the products that still exist.
	// Missing ids are absent from the map.
	GetProductsForUpdate(ctx context.Context, ids []string) (map[string]*product.Product, error)
	InsertOrder(ctx context.Context, o *order.Order) error
	// GetOrderForUpdate locks the order row until the transaction ends.
	GetOrderForUpdate(ctx context.Context, id string) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status order.Status, updatedAt time.Time) error
}
