// Package conversion reports paid orders to Impact and adjusts them on
// cancellation, deletion and refunded returns.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/radiusdt/impact-connector/internal/impact"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/radiusdt/impact-connector/internal/storage"
	"go.uber.org/zap"
)

// Sender delivers a payload to the Impact API. Delivery failures are the
// sender's concern.
type Sender interface {
	Send(ctx context.Context, settings models.Settings, resource, method string, payload impact.Payload)
}

// Reporter builds and sends Conversions and Actions requests.
type Reporter struct {
	attrs    storage.AttributeStore
	commerce storage.CommerceStore
	sender   Sender
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewReporter(attrs storage.AttributeStore, commerce storage.CommerceStore, sender Sender, logger *zap.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		attrs:    attrs,
		commerce: commerce,
		sender:   sender,
		logger:   logger.Named("conversion"),
		metrics:  m,
	}
}

// CreateConversion reports a paid order attributed to the customer's click
// id and moves the click id from the customer to the order.
func (r *Reporter) CreateConversion(ctx context.Context, s models.Settings, order models.Order) error {
	if !s.Enabled {
		return nil
	}

	clickID, err := r.attrs.GetAttribute(ctx, storage.KeyGroupCustomer, order.CustomerID, impact.ClickIDAttribute)
	if err != nil {
		return fmt.Errorf("failed to read customer click id: %w", err)
	}
	if clickID == "" {
		r.logger.Debug("no click id on customer, skipping conversion",
			zap.Int64("order_id", order.ID),
			zap.Int64("customer_id", order.CustomerID),
		)
		r.metrics.RecordConversion("skipped")
		return nil
	}

	lines, err := r.resolveLines(ctx, order.ID)
	if err != nil {
		return err
	}

	discounts, err := r.commerce.GetAppliedDiscounts(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get applied discounts: %w", err)
	}

	customer, err := r.commerce.GetCustomer(ctx, order.CustomerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to get customer: %w", err)
	}

	payload := conversionPayload(s, order, clickID, lines, discounts, customer)
	r.sender.Send(ctx, s, impact.ResourceConversions, http.MethodPost, payload)

	if err := r.attrs.SaveAttribute(ctx, storage.KeyGroupOrder, order.ID, impact.ClickIDAttribute, clickID); err != nil {
		return fmt.Errorf("failed to save order click id: %w", err)
	}
	if err := r.attrs.SaveAttribute(ctx, storage.KeyGroupCustomer, order.CustomerID, impact.ClickIDAttribute, ""); err != nil {
		return fmt.Errorf("failed to clear customer click id: %w", err)
	}

	r.metrics.RecordConversion("sent")
	r.logger.Info("conversion reported",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.CustomOrderNumber),
		zap.Int("items", len(lines)),
	)
	return nil
}

// SendActionsForReturn reports the quantity still available for return on
// the returned order line.
func (r *Reporter) SendActionsForReturn(ctx context.Context, s models.Settings, rr models.ReturnRequest) error {
	if !s.Enabled {
		return nil
	}

	order, err := r.commerce.GetOrderByOrderItem(ctx, rr.OrderItemID)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Debug("no order for returned item", zap.Int64("order_item_id", rr.OrderItemID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get order for return request %d: %w", rr.ID, err)
	}

	returnable, err := r.commerce.GetReturnableItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get returnable items: %w", err)
	}

	for _, ri := range returnable {
		if ri.Item.ID == rr.OrderItemID {
			return r.sendItemAction(ctx, s, *order, ri.Item, ri.AvailableQuantityForReturn, "return")
		}
	}

	r.logger.Debug("returned item is not returnable", zap.Int64("order_item_id", rr.OrderItemID))
	return nil
}

// SendActionsForOrder zeroes every line of a cancelled or deleted order.
func (r *Reporter) SendActionsForOrder(ctx context.Context, s models.Settings, order models.Order) error {
	if !s.Enabled {
		return nil
	}

	items, err := r.commerce.GetOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		if err := r.sendItemAction(ctx, s, order, item, 0, "order"); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) sendItemAction(ctx context.Context, s models.Settings, order models.Order, item models.OrderItem, quantity int, trigger string) error {
	if !s.Enabled {
		return nil
	}

	clickID, err := r.attrs.GetAttribute(ctx, storage.KeyGroupOrder, order.ID, impact.ClickIDAttribute)
	if err != nil {
		return fmt.Errorf("failed to read order click id: %w", err)
	}
	if clickID == "" {
		r.metrics.RecordAction(trigger, "skipped")
		return nil
	}

	products, err := r.commerce.GetProducts(ctx, []int64{item.ProductID})
	if err != nil {
		return fmt.Errorf("failed to get product %d: %w", item.ProductID, err)
	}

	r.sender.Send(ctx, s, impact.ResourceActions, http.MethodPut,
		actionPayload(s, order, item, products[item.ProductID], quantity))

	r.metrics.RecordAction(trigger, "sent")
	r.logger.Info("adjustment reported",
		zap.Int64("order_id", order.ID),
		zap.Int64("order_item_id", item.ID),
		zap.Int("quantity", quantity),
		zap.String("trigger", trigger),
	)
	return nil
}

func (r *Reporter) resolveLines(ctx context.Context, orderID int64) ([]line, error) {
	items, err := r.commerce.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := r.commerce.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	lines := make([]line, 0, len(items))
	for _, item := range items {
		product := products[item.ProductID]
		if product == nil {
			r.logger.Warn("order item references unknown product",
				zap.Int64("order_item_id", item.ID),
				zap.Int64("product_id", item.ProductID),
			)
		}
		category, err := r.commerce.GetFirstCategory(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to get category for product %d: %w", item.ProductID, err)
		}
		lines = append(lines, line{item: item, product: product, category: category})
	}
	return lines, nil
}
