package impact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testSettings() models.Settings {
	return models.Settings{
		Enabled:     true,
		AccountSID:  "IRsid",
		AuthToken:   "secret",
		LogRequests: true,
	}
}

func TestClient_Send(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotUser   string
		gotPass   string
		gotUA     string
		gotCT     string
		gotBody   map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Status":"QUEUED"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(srv.URL+"/Advertisers/", "storefront-4.60", zap.New(core), m)

	c.Send(context.Background(), testSettings(), ResourceActions, http.MethodPut, Payload{"OrderId": "42"})

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/Advertisers/IRsid/Actions", gotPath)
	assert.Equal(t, "IRsid", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "storefront-4.60", gotUA)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, map[string]string{"OrderId": "42"}, gotBody)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "impact request", logs.All()[0].Message)
	assert.Equal(t, "impact response", logs.All()[1].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("Actions", "PUT", "200")))
}

func TestClient_Send_NoLogRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewClient(srv.URL+"/", "ua", zap.New(core), nil)

	s := testSettings()
	s.LogRequests = false
	c.Send(context.Background(), s, ResourceConversions, http.MethodPost, Payload{})

	assert.Equal(t, 0, logs.Len())
}

func TestClient_Send_RejectedIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"customer detail"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewClient(srv.URL+"/", "ua", zap.New(core), nil)

	s := testSettings()
	s.LogRequests = false
	c.Send(context.Background(), s, ResourceConversions, http.MethodPost, Payload{})

	require.Equal(t, 1, logs.Len())
	entries := logs.FilterMessage("impact request rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "400: POST "+srv.URL+"/IRsid/Conversions", fields["result"])
	assert.NotContains(t, fields, "body")
}

func TestClient_Send_RejectedBodyOnlyWithRequestLogging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"bad"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewClient(srv.URL+"/", "ua", zap.New(core), nil)

	c.Send(context.Background(), testSettings(), ResourceConversions, http.MethodPost, Payload{})

	responses := logs.FilterMessage("impact response").All()
	require.Len(t, responses, 1)
	assert.Equal(t, `{"Message":"bad"}`, responses[0].ContextMap()["body"])

	rejected := logs.FilterMessage("impact request rejected").All()
	require.Len(t, rejected, 1)
	assert.NotContains(t, rejected[0].ContextMap(), "body")
}

func TestClient_Send_TimeoutIsSwallowed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	core, logs := observer.New(zapcore.ErrorLevel)
	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(srv.URL+"/", "ua", zap.New(core), m)

	s := testSettings()
	s.RequestTimeout = new(int)
	*s.RequestTimeout = 1

	start := time.Now()
	assert.NotPanics(t, func() {
		c.Send(context.Background(), s, ResourceActions, http.MethodPut, Payload{})
	})
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, 1, logs.FilterMessage("impact request failed").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("Actions", "PUT", "error")))
}

func TestClient_Send_UnreachableHost(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := NewClient("http://127.0.0.1:1/", "ua", zap.New(core), nil)

	c.Send(context.Background(), testSettings(), ResourceActions, http.MethodPut, Payload{})
	assert.Equal(t, 1, logs.Len())
}
