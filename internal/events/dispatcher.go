package events

import (
	"context"
	"fmt"

	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"go.uber.org/zap"
)

// SettingsSource supplies the settings snapshot for one dispatch.
type SettingsSource interface {
	Snapshot() models.Settings
}

// Dispatcher routes events to their handler.
type Dispatcher struct {
	settings SettingsSource
	reporter Reporter
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(settings SettingsSource, reporter Reporter, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		reporter: reporter,
		logger:   logger.Named("events"),
		metrics:  m,
	}
}

func handlerFor(kind Kind) (handler, bool) {
	switch kind {
	case KindOrderPaid:
		return handleOrderPaid, true
	case KindReturnRequestUpdated:
		return handleReturnRequestUpdated, true
	case KindOrderStatusChanged:
		return handleOrderStatusChanged, true
	case KindOrderDeleted:
		return handleOrderDeleted, true
	}
	return nil, false
}

// Dispatch handles e against a single settings snapshot.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		d.metrics.RecordEvent(string(e.Kind), "invalid")
		return err
	}
	h, _ := handlerFor(e.Kind)

	acted, err := h(ctx, d.settings.Snapshot(), d.reporter, e)
	if err != nil {
		d.metrics.RecordEvent(string(e.Kind), "error")
		return fmt.Errorf("failed to handle %s event %s: %w", e.Kind, e.ID, err)
	}

	result := "ignored"
	if acted {
		result = "handled"
	}
	d.metrics.RecordEvent(string(e.Kind), result)
	d.logger.Debug("event dispatched",
		zap.String("event_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("result", result),
	)
	return nil
}
