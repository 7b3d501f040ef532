// Package attribution captures the affiliate click id on the customer and
// renders the storefront tracking fragments.
package attribution

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/radiusdt/impact-connector/internal/impact"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/radiusdt/impact-connector/internal/storage"
	"go.uber.org/zap"
)

// Outcome describes what a capture attempt did.
type Outcome string

const (
	OutcomeDisabled   Outcome = "disabled"
	OutcomeAlreadySet Outcome = "already_set"
	OutcomeFromQuery  Outcome = "query"
	OutcomeFromCookie Outcome = "cookie"
	// OutcomeFallback means no id was found server side and the client-side
	// capture fragment must be rendered.
	OutcomeFallback Outcome = "fallback"
)

// RequestContext is the storefront request a capture runs against.
type RequestContext struct {
	Customer models.Customer
	Query    url.Values
	Cookies  []*http.Cookie
}

func (rc RequestContext) cookie(name string) string {
	for _, c := range rc.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Capturer stores click ids on customers.
type Capturer struct {
	attrs   storage.AttributeStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCapturer(attrs storage.AttributeStore, logger *zap.Logger, m *metrics.Metrics) *Capturer {
	return &Capturer{attrs: attrs, logger: logger.Named("attribution"), metrics: m}
}

// Capture runs on an eligible page render. An existing click id on the
// customer is never overwritten.
func (c *Capturer) Capture(ctx context.Context, s models.Settings, rc RequestContext) (Outcome, error) {
	outcome, err := c.capture(ctx, s, rc)
	if err != nil {
		return "", err
	}
	c.metrics.RecordCapture(string(outcome))
	return outcome, nil
}

func (c *Capturer) capture(ctx context.Context, s models.Settings, rc RequestContext) (Outcome, error) {
	if !s.Enabled {
		return OutcomeDisabled, nil
	}

	customerID := rc.Customer.ID
	existing, err := c.attrs.GetAttribute(ctx, storage.KeyGroupCustomer, customerID, impact.ClickIDAttribute)
	if err != nil {
		return "", fmt.Errorf("failed to read customer click id: %w", err)
	}
	if existing != "" {
		return OutcomeAlreadySet, nil
	}

	if clickID := rc.Query.Get(impact.ClickIDQueryParam); clickID != "" {
		if err := c.save(ctx, customerID, clickID); err != nil {
			return "", err
		}
		return OutcomeFromQuery, nil
	}

	if clickID := ParseCookieClickID(rc.cookie(impact.CookiePrefix + s.ProgramID)); clickID != "" {
		if err := c.save(ctx, customerID, clickID); err != nil {
			return "", err
		}
		return OutcomeFromCookie, nil
	}

	return OutcomeFallback, nil
}

// SetClickID stores a click id reported by the client-side fragment. It
// overwrites any existing value.
func (c *Capturer) SetClickID(ctx context.Context, s models.Settings, customer models.Customer, rawClickID string) error {
	if rawClickID == "" || !s.Enabled {
		return nil
	}

	clickID := html.EscapeString(rawClickID)

	existing, err := c.attrs.GetAttribute(ctx, storage.KeyGroupCustomer, customer.ID, impact.ClickIDAttribute)
	if err != nil {
		return fmt.Errorf("failed to read customer click id: %w", err)
	}
	if existing != "" && existing != clickID {
		c.logger.Warn("replacing customer click id from callback",
			zap.Int64("customer_id", customer.ID),
		)
	}

	if err := c.save(ctx, customer.ID, clickID); err != nil {
		return err
	}
	c.metrics.RecordCapture("callback")
	return nil
}

func (c *Capturer) save(ctx context.Context, customerID int64, clickID string) error {
	if err := c.attrs.SaveAttribute(ctx, storage.KeyGroupCustomer, customerID, impact.ClickIDAttribute, clickID); err != nil {
		return fmt.Errorf("failed to save customer click id: %w", err)
	}
	c.logger.Debug("click id captured", zap.Int64("customer_id", customerID))
	return nil
}

// ParseCookieClickID extracts the click id from an IR_<program> cookie
// value: the last '|' separated segment.
func ParseCookieClickID(value string) string {
	value = strings.Trim(value, "|")
	if value == "" {
		return ""
	}
	parts := strings.Split(value, "|")
	return parts[len(parts)-1]
}
