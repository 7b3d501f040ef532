package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ===========================================
// STATUSES (host integer codes)
// ===========================================

type OrderStatus int

const (
	OrderStatusPending    OrderStatus = 10
	OrderStatusProcessing OrderStatus = 20
	OrderStatusComplete   OrderStatus = 30
	OrderStatusCancelled  OrderStatus = 40
)

type PaymentStatus int

const (
	PaymentStatusPending           PaymentStatus = 10
	PaymentStatusAuthorized        PaymentStatus = 20
	PaymentStatusPaid              PaymentStatus = 30
	PaymentStatusPartiallyRefunded PaymentStatus = 35
	PaymentStatusRefunded          PaymentStatus = 40
	PaymentStatusVoided            PaymentStatus = 50
)

type ReturnRequestStatus int

const (
	ReturnRequestStatusPending          ReturnRequestStatus = 0
	ReturnRequestStatusReceived         ReturnRequestStatus = 10
	ReturnRequestStatusReturnAuthorized ReturnRequestStatus = 20
	ReturnRequestStatusItemsRepaired    ReturnRequestStatus = 30
	ReturnRequestStatusItemsRefunded    ReturnRequestStatus = 40
	ReturnRequestStatusRequestRejected  ReturnRequestStatus = 50
	ReturnRequestStatusCancelled        ReturnRequestStatus = 60
)

// ===========================================
// CUSTOMER
// ===========================================

type Customer struct {
	ID            int64  `json:"id"`
	Email         string `json:"email,omitempty"`
	IsGuest       bool   `json:"is_guest"`
	LastIPAddress string `json:"last_ip_address,omitempty"`
}

// ===========================================
// ORDER
// ===========================================

type Order struct {
	ID                int64  `json:"id"`
	CustomerID        int64  `json:"customer_id"`
	CustomOrderNumber string `json:"custom_order_number"`

	// Amounts in the primary store currency
	SubTotalDiscountExclTax decimal.Decimal `json:"order_sub_total_discount_excl_tax"`
	OrderDiscount           decimal.Decimal `json:"order_discount"`

	// Currency the customer paid in
	CurrencyRate         decimal.Decimal `json:"currency_rate"`
	CustomerCurrencyCode string          `json:"customer_currency_code"`

	OrderStatus   OrderStatus   `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// IsPaid reports whether the order payment is fully captured.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// ConvertAmount converts an amount from the primary store currency into the
// order's currency. A zero rate is treated as 1.
func (o *Order) ConvertAmount(amount decimal.Decimal) decimal.Decimal {
	if o.CurrencyRate.IsZero() {
		return amount
	}
	return amount.Mul(o.CurrencyRate)
}

type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`

	UnitPriceInclTax decimal.Decimal `json:"unit_price_incl_tax"`
	UnitPriceExclTax decimal.Decimal `json:"unit_price_excl_tax"`
	PriceInclTax     decimal.Decimal `json:"price_incl_tax"`
	PriceExclTax     decimal.Decimal `json:"price_excl_tax"`

	AttributesXML string `json:"attributes_xml,omitempty"`
}

// ===========================================
// CATALOG
// ===========================================

// AttributeCombination is a product variant with its own SKU.
type AttributeCombination struct {
	AttributesXML string `json:"attributes_xml"`
	SKU           string `json:"sku,omitempty"`
}

type Product struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	SKU          string                 `json:"sku,omitempty"`
	Combinations []AttributeCombination `json:"combinations,omitempty"`
}

// FormatSKU resolves the SKU for a purchased variant: the matching attribute
// combination's SKU when it has one, otherwise the product SKU.
func (p *Product) FormatSKU(attributesXML string) string {
	if attributesXML != "" {
		want := normalizeAttributes(attributesXML)
		for _, c := range p.Combinations {
			if c.SKU != "" && normalizeAttributes(c.AttributesXML) == want {
				return c.SKU
			}
		}
	}
	return p.SKU
}

func normalizeAttributes(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Discount struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	RequiresCouponCode bool   `json:"requires_coupon_code"`
	CouponCode         string `json:"coupon_code,omitempty"`
}

// ===========================================
// RETURNS
// ===========================================

type ReturnRequest struct {
	ID          int64               `json:"id"`
	OrderItemID int64               `json:"order_item_id"`
	CustomerID  int64               `json:"customer_id"`
	Quantity    int                 `json:"quantity"`
	Status      ReturnRequestStatus `json:"return_request_status"`
}

// ReturnableItem is an order line together with how many units can still be
// returned.
type ReturnableItem struct {
	Item                       OrderItem `json:"order_item"`
	AvailableQuantityForReturn int       `json:"available_quantity_for_return"`
}
