package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/impact-connector/internal/attribution"
	"github.com/radiusdt/impact-connector/internal/config"
	"github.com/radiusdt/impact-connector/internal/conversion"
	"github.com/radiusdt/impact-connector/internal/events"
	"github.com/radiusdt/impact-connector/internal/impact"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/middleware"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/radiusdt/impact-connector/internal/settings"
	"github.com/radiusdt/impact-connector/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const apiKey = "test-key"

type nopSender struct{ calls int }

func (n *nopSender) Send(context.Context, models.Settings, string, string, impact.Payload) {
	n.calls++
}

type fakeCheck struct{ err error }

func (f fakeCheck) Health(context.Context) error { return f.err }

type testEnv struct {
	handler  http.Handler
	store    *storage.InMemoryStore
	provider *settings.Provider
	sender   *nopSender
	signer   *attribution.CallbackSigner
}

func newTestEnv(t *testing.T, enabled bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Auth.MasterKey = apiKey

	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	store := storage.NewInMemoryStore()
	store.PutCustomer(models.Customer{ID: 1, Email: "a@example.com"})
	store.PutCustomer(models.Customer{ID: 2, Email: "b@example.com"})

	settingsStore := settings.NewInMemoryStore()
	provider := settings.NewProvider(settingsStore, logger, m)
	require.NoError(t, provider.EnsureDefaults(ctx))
	if enabled {
		_, err := provider.Update(ctx, models.Settings{
			Enabled:                 true,
			AccountSID:              "IRsid",
			AuthToken:               "secret",
			ProgramID:               "1234",
			ActionTrackerID:         "5678",
			UniversalTrackingScript: "<script>ire('identify', {customerid: '', customeremail: ''});</script>",
		})
		require.NoError(t, err)
	}

	sender := &nopSender{}
	capturer := attribution.NewCapturer(store, logger, m)
	reporter := conversion.NewReporter(store, store, sender, logger, m)
	signer := attribution.NewCallbackSigner(cfg.Auth.CallbackKey(), 0)

	h := NewServer(&Dependencies{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Settings:   provider,
		Commerce:   store,
		Capturer:   capturer,
		Renderer:   attribution.NewRenderer(capturer, signer, ""),
		Dispatcher: events.NewDispatcher(provider, reporter, logger, m),
		Signer:     signer,
		Checks:     map[string]HealthChecker{"postgres": fakeCheck{}},
	})
	return &testEnv{handler: h, store: store, provider: provider, sender: sender, signer: signer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) clickID(t *testing.T, group string, id int64) string {
	t.Helper()
	v, err := e.store.GetAttribute(context.Background(), group, id, impact.ClickIDAttribute)
	require.NoError(t, err)
	return v
}

func widgetRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(middleware.AuthHeaderName, apiKey)
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestHealth_Degraded(t *testing.T) {
	cfg := config.Default()
	h := NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
		Checks: map[string]HealthChecker{"redis": fakeCheck{err: errors.New("refused")}},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"refused"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "impact_connector_settings_refreshes_total")
}

func TestWidget_CaptureFromQuery(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(widgetRequest("/widgets/checkout_confirm_bottom?customer_id=1&irclickid=abc"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "abc", env.clickID(t, storage.KeyGroupCustomer, 1))
}

func TestWidget_CaptureFromCookie(t *testing.T) {
	env := newTestEnv(t, true)

	req := widgetRequest("/widgets/op_checkout_confirm_bottom?customer_id=1")
	req.AddCookie(&http.Cookie{Name: "IR_1234", Value: "|abc|xyz|"})
	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xyz", env.clickID(t, storage.KeyGroupCustomer, 1))
}

func TestWidget_Fallback(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(widgetRequest("/widgets/checkout_confirm_bottom?customer_id=1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "generateClickId")
	assert.Contains(t, rec.Body.String(), "body.append('token'")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestWidget_Head(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(widgetRequest("/widgets/head_html_tag?customer_id=1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "customerid: '1'")
}

func TestWidget_UnknownCustomer(t *testing.T) {
	env := newTestEnv(t, true)

	for _, target := range []string{
		"/widgets/head_html_tag?customer_id=99",
		"/widgets/head_html_tag?customer_id=abc",
		"/widgets/head_html_tag",
	} {
		rec := env.do(widgetRequest(target))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Empty(t, rec.Body.String(), target)
	}
}

func TestWidget_RequiresAPIKey(t *testing.T) {
	env := newTestEnv(t, true)

	for _, target := range []string{
		"/widgets/head_html_tag?customer_id=2",
		"/widgets/checkout_confirm_bottom?customer_id=2&irclickid=stolen",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), attribution.EmailHash("b@example.com"), target)
	}
	assert.Empty(t, env.clickID(t, storage.KeyGroupCustomer, 2))
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSetClickID(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.store.SaveAttribute(context.Background(), storage.KeyGroupCustomer, 1, impact.ClickIDAttribute, "old"))
	token, err := env.signer.Sign(1)
	require.NoError(t, err)

	rec := env.do(postForm("/impact/clickid", url.Values{"clickId": {"new<1>"}, "token": {token}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new&lt;1&gt;", env.clickID(t, storage.KeyGroupCustomer, 1))

	rec = env.do(postForm("/impact/clickid", url.Values{"clickId": {""}, "token": {token}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new&lt;1&gt;", env.clickID(t, storage.KeyGroupCustomer, 1))

	unknown, err := env.signer.Sign(99)
	require.NoError(t, err)
	rec = env.do(postForm("/impact/clickid", url.Values{"clickId": {"x"}, "token": {unknown}}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetClickID_RejectsUnverifiedCustomer(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.store.SaveAttribute(context.Background(), storage.KeyGroupCustomer, 2, impact.ClickIDAttribute, "legit"))

	own, err := env.signer.Sign(1)
	require.NoError(t, err)
	foreign, err := attribution.NewCallbackSigner("not-the-key", 0).Sign(2)
	require.NoError(t, err)

	cases := map[string]url.Values{
		"no token":         {"clickId": {"attacker"}, "customer_id": {"2"}},
		"forged token":     {"clickId": {"attacker"}, "token": {foreign}},
		"garbage token":    {"clickId": {"attacker"}, "token": {"abc.def.ghi"}},
		"mismatched token": {"clickId": {"attacker"}, "token": {own}, "customer_id": {"2"}},
	}
	for name, form := range cases {
		rec := env.do(postForm("/impact/clickid", form))
		if name == "mismatched token" {
			assert.Equal(t, http.StatusOK, rec.Code, name)
		} else {
			assert.Equal(t, http.StatusForbidden, rec.Code, name)
		}
		assert.Equal(t, "legit", env.clickID(t, storage.KeyGroupCustomer, 2), name)
	}

	// The valid token only ever reaches its own customer.
	assert.Equal(t, "attacker", env.clickID(t, storage.KeyGroupCustomer, 1))
}

func adminRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/admin/impact/configure", strings.NewReader(body))
	req.Header.Set(middleware.AuthHeaderName, apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdminConfiguration(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/impact/configure", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(adminRequest(http.MethodGet, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.MaskedToken, got.AuthToken)
	assert.Equal(t, "IRsid", got.AccountSID)

	got.ProgramID = "4321"
	body, _ := json.Marshal(got)
	rec = env.do(adminRequest(http.MethodPost, string(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4321", env.provider.Snapshot().ProgramID)
	assert.Equal(t, "secret", env.provider.Snapshot().AuthToken)

	rec = env.do(adminRequest(http.MethodPost, `{"enabled":true}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var verr struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Equal(t, "is required", verr.Fields["account_sid"])

	rec = env.do(adminRequest(http.MethodPost, `{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func eventRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set(middleware.AuthHeaderName, apiKey)
	return req
}

func TestEvents_ConversionThenCancellation(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.PutOrder(models.Order{ID: 10, CustomerID: 1, CustomOrderNumber: "10"},
		models.OrderItem{ID: 1, ProductID: 5, Quantity: 1})
	require.NoError(t, env.store.SaveAttribute(context.Background(), storage.KeyGroupCustomer, 1, impact.ClickIDAttribute, "clk"))

	rec := env.do(eventRequest(`{"id":"e1","kind":"order_paid","order":{"id":10,"customer_id":1,"order_status":20,"payment_status":30}}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted","id":"e1"}`, rec.Body.String())
	assert.Equal(t, 1, env.sender.calls)
	assert.Equal(t, "clk", env.clickID(t, storage.KeyGroupOrder, 10))
	assert.Empty(t, env.clickID(t, storage.KeyGroupCustomer, 1))

	rec = env.do(eventRequest(`{"kind":"order_status_changed","previous_order_status":20,"order":{"id":10,"customer_id":1,"order_status":40,"payment_status":30}}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, env.sender.calls)
}

func TestEvents_BadRequests(t *testing.T) {
	env := newTestEnv(t, true)

	assert.Equal(t, http.StatusBadRequest, env.do(eventRequest(`nope`)).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(eventRequest(`{"kind":"order_shipped"}`)).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(eventRequest(`{"kind":"order_paid"}`)).Code)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}
