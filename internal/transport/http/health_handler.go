package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"fredcli/internal/services"
	"fredcli/pkg/contracts"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health. A degraded server answers 503.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.HealthCheck(r.Context())
	if status.Status != "ok" {
		h.logger.WarnContext(r.Context(), "Health check degraded", slog.Any("services", status.Services))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
