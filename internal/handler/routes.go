package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The proxy owns the whole /proxy/* subtree, so status lives at /statusz
// to avoid shadowing a proxied path.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/statusz", health.Status)

	e.Any("/proxy", proxy.Handle)
	e.Any("/proxy/*", proxy.Handle)
}
