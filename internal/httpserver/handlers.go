package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/radiusdt/impact-connector/internal/attribution"
	"github.com/radiusdt/impact-connector/internal/events"
	"github.com/radiusdt/impact-connector/internal/middleware"
	"github.com/radiusdt/impact-connector/internal/models"
	"github.com/radiusdt/impact-connector/internal/settings"
	"github.com/radiusdt/impact-connector/internal/storage"
	"go.uber.org/zap"
)

const (
	customerIDParam    = "customer_id"
	callbackTokenParam = "token"
	maxEventBytes      = 1 << 20
)

var errBadCustomerID = errors.New("invalid customer_id")

func (s *Server) lookupCustomer(r *http.Request, raw string) (*models.Customer, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errBadCustomerID
	}
	return s.commerce.GetCustomer(r.Context(), id)
}

// ---- Widgets ----

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	zone := chi.URLParam(r, "zone")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	customer, err := s.lookupCustomer(r, r.URL.Query().Get(customerIDParam))
	switch {
	case errors.Is(err, errBadCustomerID), errors.Is(err, storage.ErrNotFound):
		return
	case err != nil:
		s.logger.Error("failed to load customer", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	rc := attribution.RequestContext{
		Customer: *customer,
		Query:    r.URL.Query(),
		Cookies:  r.Cookies(),
	}
	fragment, err := s.renderer.Render(r.Context(), zone, s.settings.Snapshot(), rc)
	if err != nil {
		s.logger.Error("widget render failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("zone", zone),
			zap.Error(err),
		)
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	_, _ = io.WriteString(w, fragment)
}

// ---- Click id callback ----

// handleSetClickID stores the click id on the customer named by the signed
// token rendered into the fallback fragment. Any customer_id in the form is
// ignored.
func (s *Server) handleSetClickID(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, "invalid form", http.StatusBadRequest)
		return
	}

	clickID := r.PostForm.Get("clickId")
	if clickID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	customerID, err := s.signer.Verify(r.PostForm.Get(callbackTokenParam))
	if err != nil {
		s.logger.Warn("click id callback rejected",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("client_ip", middleware.ClientIP(r)),
			zap.Error(err),
		)
		s.errorResponse(w, "invalid token", http.StatusForbidden)
		return
	}

	customer, err := s.commerce.GetCustomer(r.Context(), customerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.errorResponse(w, "customer not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed to load customer", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.capturer.SetClickID(r.Context(), s.settings.Snapshot(), *customer, clickID); err != nil {
		s.logger.Error("failed to set click id", zap.Int64("customer_id", customer.ID), zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ---- Admin configuration ----

type validationResponse struct {
	Error  string               `json:"error"`
	Fields settings.FieldErrors `json:"fields"`
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.settings.Snapshot().Masked())
}

func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var in models.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	saved, err := s.settings.Update(r.Context(), in)
	var fieldErrs settings.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		s.jsonResponse(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation failed", Fields: fieldErrs})
		return
	case err != nil:
		s.logger.Error("failed to save settings", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, http.StatusOK, saved.Masked())
}

// ---- Events webhook ----

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		s.errorResponse(w, "invalid body", http.StatusBadRequest)
		return
	}

	e, err := events.Decode(body)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), e); err != nil {
		s.logger.Error("event handling failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": e.ID})
}
