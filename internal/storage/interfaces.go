package storage

import (
	"context"
	"errors"

	"github.com/radiusdt/impact-connector/internal/models"
)

// ErrNotFound is returned when a requested host entity does not exist.
var ErrNotFound = errors.New("not found")

// Key groups of the host generic attribute table.
const (
	KeyGroupCustomer = "Customer"
	KeyGroupOrder    = "Order"
)

// =============================================
// ATTRIBUTE STORE
// =============================================

// AttributeStore reads and writes named string attributes attached to host
// entities. A missing attribute reads as the empty string and saving an
// empty value removes the attribute.
type AttributeStore interface {
	GetAttribute(ctx context.Context, keyGroup string, entityID int64, key string) (string, error)
	SaveAttribute(ctx context.Context, keyGroup string, entityID int64, key, value string) error
}

// =============================================
// COMMERCE STORE
// =============================================

// CommerceStore is the read-only view of host commerce data used when
// building conversion and adjustment payloads.
type CommerceStore interface {
	// Customers
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)

	// Orders
	GetOrderByOrderItem(ctx context.Context, orderItemID int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)

	// Catalog
	GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	// GetFirstCategory returns the first mapped category or nil.
	GetFirstCategory(ctx context.Context, productID int64) (*models.Category, error)

	// Discounts applied to the order through usage history
	GetAppliedDiscounts(ctx context.Context, orderID int64) ([]models.Discount, error)

	// Returns
	GetReturnableItems(ctx context.Context, orderID int64) ([]models.ReturnableItem, error)
}

// countsTowardReturned reports whether a return request reduces the quantity
// still available for return.
func countsTowardReturned(status models.ReturnRequestStatus) bool {
	return status != models.ReturnRequestStatusCancelled &&
		status != models.ReturnRequestStatusRequestRejected
}
