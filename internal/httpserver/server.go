package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/radiusdt/impact-connector/internal/attribution"
	"github.com/radiusdt/impact-connector/internal/config"
	"github.com/radiusdt/impact-connector/internal/events"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/middleware"
	"github.com/radiusdt/impact-connector/internal/settings"
	"github.com/radiusdt/impact-connector/internal/storage"
	"go.uber.org/zap"
)

// HealthChecker is a backing service the health endpoint pings.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Settings   *settings.Provider
	Commerce   storage.CommerceStore
	Capturer   *attribution.Capturer
	Renderer   *attribution.Renderer
	Dispatcher *events.Dispatcher

	// Signer verifies click id callback tokens. A signer is created from
	// Config when nil.
	Signer *attribution.CallbackSigner

	// RateLimiter guards the public callback. A limiter is created from
	// Config when nil.
	RateLimiter *middleware.RateLimitMiddleware

	// Checks are pinged by /health, keyed by name.
	Checks map[string]HealthChecker
}

// Server wraps the HTTP handlers of the connector.
type Server struct {
	settings   *settings.Provider
	commerce   storage.CommerceStore
	capturer   *attribution.Capturer
	renderer   *attribution.Renderer
	signer     *attribution.CallbackSigner
	dispatcher *events.Dispatcher
	checks     map[string]HealthChecker
	logger     *zap.Logger
	config     *config.Config
	metrics    *metrics.Metrics
}

// NewServer constructs the router with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		settings:   deps.Settings,
		commerce:   deps.Commerce,
		capturer:   deps.Capturer,
		renderer:   deps.Renderer,
		signer:     deps.Signer,
		dispatcher: deps.Dispatcher,
		checks:     deps.Checks,
		logger:     deps.Logger,
		config:     deps.Config,
		metrics:    deps.Metrics,
	}

	if s.signer == nil {
		s.signer = attribution.NewCallbackSigner(deps.Config.Auth.CallbackKey(), 0)
	}

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimitMiddleware(deps.Config.RateLimit, deps.Logger)
	}
	auth := middleware.NewAuthMiddleware(deps.Config.Auth, deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger).Handler)

	r.Get("/health", s.handleHealth)
	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		r.Handle(deps.Config.Metrics.Path, deps.Metrics.Handler())
	}

	// Storefront browser callback
	r.With(limiter.Handler).Post(attribution.ClickIDCallbackPath, s.handleSetClickID)

	// Host and operator
	r.Group(func(r chi.Router) {
		r.Use(auth.Handler)
		r.Get("/widgets/{zone}", s.handleWidget)
		r.Get("/admin/impact/configure", s.handleGetConfiguration)
		r.Post("/admin/impact/configure", s.handleSaveConfiguration)
		if deps.Config.Events.WebhookEnabled {
			r.Post("/events", s.handleEvent)
		}
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Health(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) jsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.jsonResponse(w, code, map[string]string{"error": message})
}
