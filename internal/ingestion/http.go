package ingestion

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/backend"
)

// Refresher is the part of the backend session the ops API drives.
type Refresher interface {
	Token() (backend.Token, bool)
	Refresh(ctx context.Context) error
}

// HTTPHandler exposes health, metrics and operator endpoints.
type HTTPHandler struct {
	service  *Service
	session  Refresher
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, session Refresher, gatherer prometheus.Gatherer, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPHandler{
		service:  service,
		session:  session,
		gatherer: gatherer,
		logger:   logger,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Post("/session/refresh", h.handleRefresh)
	})

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session.Token(); !ok {
		writeError(w, http.StatusServiceUnavailable, "no backend token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"queue_depth": h.service.QueueDepth(),
	}
	if tok, ok := h.session.Token(); ok {
		payload["token_acquired_at"] = tok.AcquiredAt.UTC()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *HTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		h.logger.Warn("operator token refresh failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "token refresh failed")
		return
	}
	tok, _ := h.session.Token()
	writeJSON(w, http.StatusOK, map[string]any{
		"token_acquired_at": tok.AcquiredAt.UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
