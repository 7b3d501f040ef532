package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/shopspring/decimal"
)

// PostgresStore implements AttributeStore and CommerceStore on top of the
// host database.
type PostgresStore struct {
	pool    *pgxpool.Pool
	storeID int
}

// NewPostgresStore creates a store scoped to the given host store id.
func NewPostgresStore(pool *pgxpool.Pool, storeID int) *PostgresStore {
	return &PostgresStore{pool: pool, storeID: storeID}
}

// =============================================
// ATTRIBUTES
// =============================================

func (s *PostgresStore) GetAttribute(ctx context.Context, keyGroup string, entityID int64, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM generic_attribute
		WHERE key_group = $1 AND entity_id = $2 AND key = $3 AND store_id = $4
	`, keyGroup, entityID, key, s.storeID).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get attribute %s.%s: %w", keyGroup, key, err)
	}
	return value, nil
}

func (s *PostgresStore) SaveAttribute(ctx context.Context, keyGroup string, entityID int64, key, value string) error {
	if value == "" {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM generic_attribute
			WHERE key_group = $1 AND entity_id = $2 AND key = $3 AND store_id = $4
		`, keyGroup, entityID, key, s.storeID)
		if err != nil {
			return fmt.Errorf("failed to delete attribute %s.%s: %w", keyGroup, key, err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO generic_attribute (key_group, entity_id, key, value, store_id, created_or_updated_date_utc)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (key_group, entity_id, key, store_id)
		DO UPDATE SET value = EXCLUDED.value, created_or_updated_date_utc = NOW()
	`, keyGroup, entityID, key, value, s.storeID)
	if err != nil {
		return fmt.Errorf("failed to save attribute %s.%s: %w", keyGroup, key, err)
	}
	return nil
}

// =============================================
// CUSTOMERS
// =============================================

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	var email, ip *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, email, is_guest, last_ip_address
		FROM customer WHERE id = $1
	`, id).Scan(&c.ID, &email, &c.IsGuest, &ip)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	c.Email = deref(email)
	c.LastIPAddress = deref(ip)
	return &c, nil
}

// =============================================
// ORDERS
// =============================================

func (s *PostgresStore) GetOrderByOrderItem(ctx context.Context, orderItemID int64) (*models.Order, error) {
	var o models.Order
	var subTotalDiscount, orderDiscount, rate string

	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.customer_id, o.custom_order_number,
		       o.order_sub_total_discount_excl_tax::text, o.order_discount::text, o.currency_rate::text,
		       o.customer_currency_code, o.order_status_id, o.payment_status_id
		FROM "order" o
		JOIN order_item oi ON oi.order_id = o.id
		WHERE oi.id = $1
	`, orderItemID).Scan(
		&o.ID, &o.CustomerID, &o.CustomOrderNumber,
		&subTotalDiscount, &orderDiscount, &rate,
		&o.CustomerCurrencyCode, &o.OrderStatus, &o.PaymentStatus,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by item: %w", err)
	}

	if o.SubTotalDiscountExclTax, err = decimal.NewFromString(subTotalDiscount); err != nil {
		return nil, fmt.Errorf("invalid sub total discount: %w", err)
	}
	if o.OrderDiscount, err = decimal.NewFromString(orderDiscount); err != nil {
		return nil, fmt.Errorf("invalid order discount: %w", err)
	}
	if o.CurrencyRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("invalid currency rate: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity,
		       unit_price_incl_tax::text, unit_price_excl_tax::text,
		       price_incl_tax::text, price_excl_tax::text, attributes_xml
		FROM order_item WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanOrderItem(row pgx.Row) (*models.OrderItem, error) {
	var it models.OrderItem
	var unitIncl, unitExcl, incl, excl string
	var attrs *string

	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
		&unitIncl, &unitExcl, &incl, &excl, &attrs); err != nil {
		return nil, fmt.Errorf("failed to scan order item: %w", err)
	}

	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&it.UnitPriceInclTax, unitIncl},
		{&it.UnitPriceExclTax, unitExcl},
		{&it.PriceInclTax, incl},
		{&it.PriceExclTax, excl},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.src)
		if err != nil {
			return nil, fmt.Errorf("invalid amount on order item %d: %w", it.ID, err)
		}
		*a.dst = d
	}

	it.AttributesXML = deref(attrs)
	return &it, nil
}

// =============================================
// CATALOG
// =============================================

func (s *PostgresStore) GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	res := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, sku FROM product WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	for rows.Next() {
		var p models.Product
		var sku *string
		if err := rows.Scan(&p.ID, &p.Name, &sku); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.SKU = deref(sku)
		res[p.ID] = &p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	combos, err := s.pool.Query(ctx, `
		SELECT product_id, attributes_xml, sku
		FROM product_attribute_combination
		WHERE product_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute combinations: %w", err)
	}
	defer combos.Close()

	for combos.Next() {
		productID, c, err := scanAttributeCombination(combos)
		if err != nil {
			return nil, err
		}
		if p, ok := res[productID]; ok {
			p.Combinations = append(p.Combinations, c)
		}
	}
	return res, combos.Err()
}

// scanAttributeCombination reads a combination row. Both text columns are
// nullable in the host schema.
func scanAttributeCombination(row pgx.Row) (int64, models.AttributeCombination, error) {
	var productID int64
	var c models.AttributeCombination
	var attrs, sku *string
	if err := row.Scan(&productID, &attrs, &sku); err != nil {
		return 0, c, fmt.Errorf("failed to scan attribute combination: %w", err)
	}
	c.AttributesXML = deref(attrs)
	c.SKU = deref(sku)
	return productID, c, nil
}

func (s *PostgresStore) GetFirstCategory(ctx context.Context, productID int64) (*models.Category, error) {
	var c models.Category
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.name
		FROM product_category_mapping m
		JOIN category c ON c.id = m.category_id
		WHERE m.product_id = $1
		ORDER BY m.display_order, m.id
		LIMIT 1
	`, productID).Scan(&c.ID, &c.Name)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product category: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetAppliedDiscounts(ctx context.Context, orderID int64) ([]models.Discount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, d.requires_coupon_code, d.coupon_code
		FROM discount_usage_history h
		JOIN discount d ON d.id = h.discount_id
		WHERE h.order_id = $1
		ORDER BY h.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied discounts: %w", err)
	}
	defer rows.Close()

	var res []models.Discount
	for rows.Next() {
		var d models.Discount
		var code *string
		if err := rows.Scan(&d.ID, &d.Name, &d.RequiresCouponCode, &code); err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		d.CouponCode = deref(code)
		res = append(res, d)
	}
	return res, rows.Err()
}

// =============================================
// RETURNS
// =============================================

func (s *PostgresStore) GetReturnableItems(ctx context.Context, orderID int64) ([]models.ReturnableItem, error) {
	items, err := s.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rr.order_item_id, rr.quantity, rr.return_request_status_id
		FROM return_request rr
		JOIN order_item oi ON oi.id = rr.order_item_id
		WHERE oi.order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query return requests: %w", err)
	}
	defer rows.Close()

	returned := make(map[int64]int)
	for rows.Next() {
		var itemID int64
		var qty int
		var status models.ReturnRequestStatus
		if err := rows.Scan(&itemID, &qty, &status); err != nil {
			return nil, fmt.Errorf("failed to scan return request: %w", err)
		}
		if countsTowardReturned(status) {
			returned[itemID] += qty
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res := make([]models.ReturnableItem, 0, len(items))
	for _, it := range items {
		available := it.Quantity - returned[it.ID]
		if available < 0 {
			available = 0
		}
		res = append(res, models.ReturnableItem{Item: it, AvailableQuantityForReturn: available})
	}
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
