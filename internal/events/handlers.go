package events

import (
	"context"

	"github.com/radiusdt/impact-connector/internal/models"
)

// Reporter is the conversion reporting surface the handlers drive.
type Reporter interface {
	CreateConversion(ctx context.Context, s models.Settings, order models.Order) error
	SendActionsForReturn(ctx context.Context, s models.Settings, rr models.ReturnRequest) error
	SendActionsForOrder(ctx context.Context, s models.Settings, order models.Order) error
}

// handler reacts to one event kind. It reports whether it acted.
type handler func(ctx context.Context, s models.Settings, r Reporter, e Event) (bool, error)

func handleOrderPaid(ctx context.Context, s models.Settings, r Reporter, e Event) (bool, error) {
	return true, r.CreateConversion(ctx, s, *e.Order)
}

func handleReturnRequestUpdated(ctx context.Context, s models.Settings, r Reporter, e Event) (bool, error) {
	if e.ReturnRequest.Status != models.ReturnRequestStatusItemsRefunded {
		return false, nil
	}
	return true, r.SendActionsForReturn(ctx, s, *e.ReturnRequest)
}

func handleOrderStatusChanged(ctx context.Context, s models.Settings, r Reporter, e Event) (bool, error) {
	order := e.Order
	if e.PreviousOrderStatus == order.OrderStatus {
		return false, nil
	}
	if !order.IsPaid() || order.OrderStatus != models.OrderStatusCancelled {
		return false, nil
	}
	return true, r.SendActionsForOrder(ctx, s, *order)
}

func handleOrderDeleted(ctx context.Context, s models.Settings, r Reporter, e Event) (bool, error) {
	order := e.Order
	if order.OrderStatus == models.OrderStatusCancelled || !order.IsPaid() {
		return false, nil
	}
	return true, r.SendActionsForOrder(ctx, s, *order)
}
