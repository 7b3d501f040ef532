package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema mirrors the subset of host tables this service reads and writes. In
// production the host owns these tables; Migrate only creates what is missing
// so the service can run against an empty development database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS generic_attribute (
		id BIGSERIAL PRIMARY KEY,
		key_group TEXT NOT NULL,
		entity_id BIGINT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		store_id INT NOT NULL DEFAULT 0,
		created_or_updated_date_utc TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (key_group, entity_id, key, store_id)
	)`,
	`CREATE TABLE IF NOT EXISTS setting (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		store_id INT NOT NULL DEFAULT 0,
		UNIQUE (name, store_id)
	)`,
	`CREATE TABLE IF NOT EXISTS customer (
		id BIGSERIAL PRIMARY KEY,
		email TEXT,
		is_guest BOOLEAN NOT NULL DEFAULT FALSE,
		last_ip_address TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS "order" (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		custom_order_number TEXT NOT NULL,
		order_sub_total_discount_excl_tax NUMERIC(18,4) NOT NULL DEFAULT 0,
		order_discount NUMERIC(18,4) NOT NULL DEFAULT 0,
		currency_rate NUMERIC(18,4) NOT NULL DEFAULT 1,
		customer_currency_code TEXT NOT NULL,
		order_status_id INT NOT NULL,
		payment_status_id INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_item (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		unit_price_incl_tax NUMERIC(18,4) NOT NULL DEFAULT 0,
		unit_price_excl_tax NUMERIC(18,4) NOT NULL DEFAULT 0,
		price_incl_tax NUMERIC(18,4) NOT NULL DEFAULT 0,
		price_excl_tax NUMERIC(18,4) NOT NULL DEFAULT 0,
		attributes_xml TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS product (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS product_attribute_combination (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL,
		attributes_xml TEXT,
		sku TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS category (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_category_mapping (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL,
		category_id BIGINT NOT NULL,
		display_order INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS discount (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		requires_coupon_code BOOLEAN NOT NULL DEFAULT FALSE,
		coupon_code TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS discount_usage_history (
		id BIGSERIAL PRIMARY KEY,
		discount_id BIGINT NOT NULL,
		order_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS return_request (
		id BIGSERIAL PRIMARY KEY,
		order_item_id BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		return_request_status_id INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_order_item_order_id ON order_item (order_id)`,
	`CREATE INDEX IF NOT EXISTS ix_return_request_order_item_id ON return_request (order_item_id)`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
