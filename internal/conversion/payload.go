package conversion

import (
	"strconv"
	"strings"

	"github.com/radiusdt/impact-connector/internal/impact"
	"github.com/radiusdt/impact-connector/internal/models"
)

const noCategory = "No category"

// line is one order item resolved against the catalog.
type line struct {
	item     models.OrderItem
	product  *models.Product
	category *models.Category
}

func itemSKU(item models.OrderItem, product *models.Product) string {
	if product != nil {
		if sku := product.FormatSKU(item.AttributesXML); sku != "" {
			return sku
		}
	}
	return strconv.FormatInt(item.ProductID, 10)
}

// conversionPayload builds the Conversions body for a paid order.
func conversionPayload(s models.Settings, order models.Order, clickID string, lines []line, discounts []models.Discount, customer *models.Customer) impact.Payload {
	discount := order.ConvertAmount(order.SubTotalDiscountExclTax).
		Add(order.ConvertAmount(order.OrderDiscount))

	p := impact.Payload{
		"EventTypeId":   s.ActionTrackerID,
		"ClickId":       clickID,
		"CustomerId":    strconv.FormatInt(order.CustomerID, 10),
		"EventDate":     impact.EventDateNow,
		"CampaignId":    s.ProgramID,
		"OrderId":       order.CustomOrderNumber,
		"CurrencyCode":  order.CustomerCurrencyCode,
		"OrderDiscount": discount.StringFixed(2),
	}

	for i, l := range lines {
		n := strconv.Itoa(i + 1)
		name := ""
		if l.product != nil {
			name = l.product.Name
		}
		category := noCategory
		if l.category != nil {
			category = l.category.Name
		}

		p["ItemSku"+n] = itemSKU(l.item, l.product)
		p["ItemName"+n] = name
		p["ItemCategory"+n] = category
		p["ItemSubTotal"+n] = order.ConvertAmount(l.item.PriceExclTax).StringFixed(2)
		p["ItemQuantity"+n] = strconv.Itoa(l.item.Quantity)
	}

	if codes := couponCodes(discounts); len(codes) > 0 {
		p["OrderPromoCode"] = strings.Join(codes, ", ")
	}

	if s.StoreIPAddresses && customer != nil && customer.LastIPAddress != "" {
		p["IpAddress"] = customer.LastIPAddress
	}

	return p
}

// couponCodes keeps only discounts that require a coupon code.
func couponCodes(discounts []models.Discount) []string {
	var codes []string
	for _, d := range discounts {
		if d.RequiresCouponCode {
			codes = append(codes, d.CouponCode)
		}
	}
	return codes
}

// actionPayload builds the Actions body adjusting one order line to
// quantity.
func actionPayload(s models.Settings, order models.Order, item models.OrderItem, product *models.Product, quantity int) impact.Payload {
	return impact.Payload{
		"ActionTrackerId": s.ActionTrackerID,
		"OrderId":         order.CustomOrderNumber,
		"Reason":          impact.ReasonOrderUpdate,
		"ItemSku":         itemSKU(item, product),
		"ItemQuantity":    strconv.Itoa(quantity),
	}
}
