package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"vdl-backend/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health. The database is required; Redis only degrades.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "vdl-backend",
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	for name, err := range h.container.Health(ctx) {
		if err == nil {
			response.Checks[name] = "ok"
			continue
		}
		response.Checks[name] = err.Error()
		logger.WithError(err).WithField("check", name).Warn("Health check failed")
		if name == "database" {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else if response.Status == "healthy" {
			response.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode health check response")
	}
}
