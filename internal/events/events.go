// Package events maps host lifecycle events onto conversion reporting.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/radiusdt/impact-connector/internal/models"
)

// Kind identifies a host lifecycle event.
type Kind string

const (
	KindOrderPaid            Kind = "order_paid"
	KindReturnRequestUpdated Kind = "return_request_updated"
	KindOrderStatusChanged   Kind = "order_status_changed"
	KindOrderDeleted         Kind = "order_deleted"
)

var (
	ErrUnknownKind    = errors.New("unknown event kind")
	ErrMissingPayload = errors.New("event payload missing")
)

// Event is one host lifecycle notification. Order is set for order kinds,
// ReturnRequest for return_request_updated. PreviousOrderStatus is only
// meaningful for order_status_changed.
type Event struct {
	ID                  string                `json:"id"`
	Kind                Kind                  `json:"kind"`
	Order               *models.Order         `json:"order,omitempty"`
	ReturnRequest       *models.ReturnRequest `json:"return_request,omitempty"`
	PreviousOrderStatus models.OrderStatus    `json:"previous_order_status,omitempty"`
}

// Validate checks that the payload matching Kind is present.
func (e Event) Validate() error {
	switch e.Kind {
	case KindOrderPaid, KindOrderStatusChanged, KindOrderDeleted:
		if e.Order == nil {
			return fmt.Errorf("%w: %s requires order", ErrMissingPayload, e.Kind)
		}
	case KindReturnRequestUpdated:
		if e.ReturnRequest == nil {
			return fmt.Errorf("%w: %s requires return_request", ErrMissingPayload, e.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return nil
}

// Decode parses one JSON event and assigns an id when the host sent none.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return e, e.Validate()
}
