package impact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"go.uber.org/zap"
)

// Client sends requests to the Impact API. Failures are logged and never
// returned to the caller, and nothing is retried.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, userAgent string, logger *zap.Logger, m *metrics.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{},
		logger:     logger.Named("impact"),
		metrics:    m,
	}
}

// Send issues method to resource with payload as the JSON body, bounded by
// the settings request timeout.
func (c *Client) Send(ctx context.Context, settings models.Settings, resource, method string, payload Payload) {
	url := c.baseURL + settings.AccountSID + "/" + resource

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to encode request", zap.String("resource", resource), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, settings.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build request", zap.String("resource", resource), zap.Error(err))
		return
	}
	req.SetBasicAuth(settings.AccountSID, settings.AuthToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if settings.LogRequests {
		c.logger.Info("impact request",
			zap.String("method", method),
			zap.String("url", url),
			zap.ByteString("body", body),
		)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(resource, method, 0, time.Since(start))
		c.logger.Error("impact request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.RecordAPIRequest(resource, method, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error("failed to read impact response", zap.String("url", url), zap.Error(err))
		return
	}

	if settings.LogRequests {
		c.logger.Info("impact response", zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("impact request rejected",
			zap.String("result", fmt.Sprintf("%d: %s %s", resp.StatusCode, method, url)),
		)
	}
}
