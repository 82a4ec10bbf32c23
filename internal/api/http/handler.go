package apihttp

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"homewatch/internal/audit"
	"homewatch/internal/engine"
)

const maxBodyBytes = 1 << 20

// Handler exposes engine operations over HTTP.
type Handler struct {
	engine *engine.Engine
	logger *log.Logger
	stream http.Handler
	audit  audit.Logger
	now    func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAlertStream mounts a live alert stream at /api/v1/alerts/stream.
func WithAlertStream(stream http.Handler) HandlerOption {
	return func(h *Handler) {
		h.stream = stream
	}
}

// WithAuditLogger records operator actions.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.audit = logger
	}
}

// NewHandler constructs a Handler.
func NewHandler(e *engine.Engine, logger *log.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{engine: e, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", h.postEvent)
		r.Get("/events", h.listEvents)
		r.Get("/diagnostics", h.diagnostics)

		r.Get("/scenarios", h.listScenarios)
		r.Post("/scenarios", h.addScenario)
		r.Get("/scenarios/{index}", h.getScenario)
		r.Put("/scenarios/{index}", h.updateScenario)
		r.Delete("/scenarios/{index}", h.deleteScenario)

		r.Post("/predict", h.predict)
		r.Post("/profile/suggest", h.suggestProfile)

		r.Post("/health", h.updateHealth)
		r.Get("/health", h.listHealth)

		r.Get("/alerts", h.listAlerts)
		r.Post("/alerts/{device_id}/ack", h.acknowledge)
		if h.stream != nil {
			r.Method(http.MethodGet, "/alerts/stream", h.stream)
		}
		r.Get("/alerts/export.{format}", h.exportAlerts)

		r.Get("/users/{username}/status", h.userStatus)

		r.Get("/contacts", h.contacts)
		r.Post("/escalate", h.escalate)
	})
}

// EventIngestHandler accepts events from signed sensor hubs.
func (h *Handler) EventIngestHandler() http.Handler {
	return http.HandlerFunc(h.postEvent)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.engine == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("read body error")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseCount(r *http.Request, key string, fallback int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func (h *Handler) recordAudit(r *http.Request, action, resourceType, resourceID string, metadata any) {
	if h.audit == nil {
		return
	}
	entry := audit.FromRequest(r, action, resourceType, resourceID, metadata)
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logf("audit %s error: %v", action, err)
	}
}

func (h *Handler) logf(format string, args ...any) {
	if h != nil && h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
