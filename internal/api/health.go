package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 2 * time.Second

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the state of the server's dependencies.
type HealthHandler struct {
	*Handler
	agent Pinger
}

// NewHealthHandler creates a health handler. agent may be nil.
func NewHealthHandler(base *Handler, agent Pinger) *HealthHandler {
	return &HealthHandler{Handler: base, agent: agent}
}

// RegisterHealth registers the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health answers 503 only when the exchange log is down. An unreachable
// agent degrades the service but pages still load.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ok",
		"database": "ok",
		"agent":    "ok",
		"sessions": h.hub.Len(),
	}

	if err := h.repo.Ping(ctx); err != nil {
		slog.Warn("Health check: database unreachable", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["database"] = err.Error()
	}

	if h.agent != nil {
		if err := h.agent.Ping(ctx); err != nil {
			slog.Warn("Health check: agent unreachable", "error", err)
			body["agent"] = "unreachable"
			if status == http.StatusOK {
				body["status"] = "degraded"
			}
		}
	}

	JSON(w, status, body)
}
