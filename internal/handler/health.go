package handler

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"f1-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. Selector names only — base URLs
// and credentials stay out of the response.
func (h *HealthHandler) Status(c echo.Context) error {
	selectors := make([]string, 0, 3)
	for name := range h.cfg.Upstreams() {
		selectors = append(selectors, name)
	}
	sort.Strings(selectors)

	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   string(h.version),
		"selectors": selectors,
	})
}
