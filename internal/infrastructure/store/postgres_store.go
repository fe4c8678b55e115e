package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	productColumns = `id, name, description, price, stock, vendor_id, created_at, updated_at`
	orderColumns   = `id, user_id, total_amount, shipping_address, payment_method, status, created_at, updated_at`
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Named("store")}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates the tables used by the engine if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Products and users

func scanProduct(row interface{ Scan(...any) error }) (*product.Product, error) {
	var p product.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.VendorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// UpsertProduct writes a catalog row. The catalog service owns products; this
// exists for seeding and tests.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, vendor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			vendor_id = EXCLUDED.vendor_id,
			updated_at = now()
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.VendorID)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// UpsertUser mirrors a profile from the identity service.
func (s *PostgresStore) UpsertUser(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role
	`, u.ID, u.Name, u.Email, string(u.Role))
	return err
}

// Carts

func (s *PostgresStore) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return loadCart(ctx, s.db, userID)
}

func loadCart(ctx context.Context, q queryer, userID string) (*cart.Cart, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", userID, err)
	}
	defer rows.Close()

	c := cart.New(userID)
	for rows.Next() {
		var item cart.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, item)
	}
	return c, rows.Err()
}

// UpdateCart runs fn under a transaction-scoped advisory lock on the user id.
// An empty cart has no rows to lock, so row locks alone would not serialise
// the first two writers.
func (s *PostgresStore) UpdateCart(ctx context.Context, userID string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "cart:"+userID); err != nil {
		return nil, fmt.Errorf("lock cart %s: %w", userID, err)
	}

	c, err := loadCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear cart %s: %w", userID, err)
	}
	for i, item := range c.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity, position) VALUES ($1, $2, $3, $4)`,
			userID, item.ProductID, item.Quantity, i)
		if err != nil {
			return nil, fmt.Errorf("save cart item %s: %w", item.ProductID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return c, nil
}

// Orders

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	orders, err := loadOrders(ctx, s.db, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return orders[0], nil
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return loadOrders(ctx, s.db, `WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresStore) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*order.Order, error) {
	return loadOrders(ctx, s.db,
		`WHERE id IN (SELECT order_id FROM order_items WHERE vendor_id = $1) ORDER BY created_at DESC`, vendorID)
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return loadOrders(ctx, s.db, `ORDER BY created_at DESC`)
}

func loadOrders(ctx context.Context, q queryer, clause string, args ...any) ([]*order.Order, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*order.Order
		ids    []string
		byID   = make(map[string]*order.Order)
	)
	for rows.Next() {
		var (
			o       order.Order
			address []byte
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &address, &o.PaymentMethod, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address of order %s: %w", o.ID, err)
		}
		o.Items = []order.OrderItem{}
		orders = append(orders, &o)
		ids = append(ids, o.ID)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*order.Order{}, nil
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, vendor_id, name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID string
			item    order.OrderItem
		)
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.VendorID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return orders, itemRows.Err()
}

// Transactions

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) GetProductsForUpdate(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	products := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// Adjust applies each delta as a conditional increment. A decrement that would
// leave negative stock matches no row; the whole transaction is then rolled
// back by WithTx, undoing any product adjusted earlier in the batch.
func (t *postgresTx) Adjust(ctx context.Context, deltas inventory.Deltas) error {
	for _, id := range deltas.ProductIDs() {
		delta := deltas[id]

		var stock int
		err := t.tx.QueryRowContext(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now()
			WHERE id = $1 AND stock + $2 >= 0
			RETURNING stock`, id, delta,
		).Scan(&stock)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("adjust stock of %s: %w", id, err)
		}

		var available int
		err = t.tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", product.ErrProductNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("read stock of %s: %w", id, err)
		}
		return &inventory.InsufficientStockError{ProductID: id, Available: available, Requested: -delta}
	}
	return nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, o *order.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, shipping_address, payment_method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, o.TotalAmount, address, string(o.PaymentMethod), string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	for i, item := range o.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line, product_id, vendor_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, i, item.ProductID, item.VendorID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("insert order item %s/%d: %w", o.ID, i, err)
		}
	}
	return nil
}

func (t *postgresTx) GetOrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	orders, err := loadOrders(ctx, t.tx, `WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return orders[0], nil
}

func (t *postgresTx) UpdateOrderStatus(ctx context.Context, id string, status order.Status, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}
