package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_active
    ON categories(name) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                 INTEGER PRIMARY KEY,
    name               TEXT NOT NULL,
    category_id        INTEGER NOT NULL REFERENCES categories(id),
    price              TEXT NOT NULL DEFAULT '0',
    status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    image              BLOB,
    image_mime         TEXT,
    quantity           INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    amount_distributed INTEGER NOT NULL DEFAULT 0 CHECK (amount_distributed >= 0),
    amount_sold        INTEGER NOT NULL DEFAULT 0 CHECK (amount_sold >= 0),
    total_received     INTEGER NOT NULL DEFAULT 0 CHECK (total_received >= 0),
    distribution       TEXT NOT NULL DEFAULT '' CHECK (distribution IN ('', 'dar', 'dodoma')),
    version            INTEGER NOT NULL DEFAULT 1,
    created_by         INTEGER REFERENCES users(id),
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at         DATETIME,
    CHECK (quantity + amount_distributed + amount_sold = total_received)
);

CREATE INDEX IF NOT EXISTS idx_items_distribution ON items(distribution) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS purchases (
    id                 INTEGER PRIMARY KEY,
    item_name          TEXT NOT NULL,
    category_id        INTEGER NOT NULL REFERENCES categories(id),
    quantity_purchased INTEGER NOT NULL CHECK (quantity_purchased > 0),
    price              TEXT NOT NULL DEFAULT '0',
    purchase_date      TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    item_id            INTEGER REFERENCES items(id),
    received_at        DATETIME,
    created_by         INTEGER REFERENCES users(id),
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases(purchase_date);

CREATE TABLE IF NOT EXISTS sales (
    id             INTEGER PRIMARY KEY,
    item_id        INTEGER NOT NULL REFERENCES items(id),
    quantity       INTEGER NOT NULL CHECK (quantity > 0),
    location       TEXT NOT NULL CHECK (location IN ('dar', 'dodoma')),
    total_amount   TEXT NOT NULL,
    payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'credit')),
    customer_name  TEXT NOT NULL,
    phone_number   TEXT NOT NULL,
    sold_at        TEXT NOT NULL,
    sold_by        INTEGER REFERENCES users(id),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    voided_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at) WHERE voided_at IS NULL;

CREATE TABLE IF NOT EXISTS stock_movements (
    id              INTEGER PRIMARY KEY,
    item_id         INTEGER NOT NULL REFERENCES items(id),
    kind            TEXT NOT NULL CHECK (kind IN ('intake', 'distribute', 'sale', 'sale_correction', 'sale_void')),
    quantity        INTEGER NOT NULL CHECK (kind = 'sale_correction' OR quantity >= 0),
    location        TEXT NOT NULL DEFAULT '',
    sale_id         INTEGER REFERENCES sales(id),
    purchase_id     INTEGER REFERENCES purchases(id),
    idempotency_key TEXT,
    actor_id        INTEGER REFERENCES users(id),
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id, id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_movements_idempotency
    ON stock_movements(idempotency_key) WHERE idempotency_key IS NOT NULL;
`

// EnsureSchema creates all tables and indexes if they don't already exist
// and then applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return Migrate(db)
}
