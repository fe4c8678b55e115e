package store

// schema is applied by PostgresStore.Migrate. Users and products are owned by
// the identity and catalog services; the tables here mirror what the order
// engine reads. The stock CHECK backs the ledger's own non-negative guard.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	role  TEXT NOT NULL DEFAULT 'customer'
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	stock       INTEGER NOT NULL CHECK (stock >= 0),
	vendor_id   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS products_vendor_idx ON products (vendor_id);

CREATE TABLE IF NOT EXISTS cart_items (
	user_id    TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity >= 1),
	position   INTEGER NOT NULL,
	PRIMARY KEY (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	total_amount     NUMERIC(14,2) NOT NULL,
	shipping_address JSONB NOT NULL,
	payment_method   TEXT NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	order_id   TEXT NOT NULL REFERENCES orders (id),
	line       INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	vendor_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity >= 1),
	price      NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (order_id, line)
);
CREATE INDEX IF NOT EXISTS order_items_vendor_idx ON order_items (vendor_id);
`
