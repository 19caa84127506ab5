package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"f1-proxy-go/internal/cors"
	"f1-proxy-go/internal/model"
	"f1-proxy-go/internal/service"
)

// basicAuthPattern matches Basic credentials in URLs or headers embedded in
// error messages.
var basicAuthPattern = regexp.MustCompile(`(?i)(basic )[a-z0-9+/=]+`)

// ProxyHandler terminates client requests and relays the final upstream
// response. Every response it writes, errors and preflight included,
// carries the CORS header set.
type ProxyHandler struct {
	service *service.ProxyService
	policy  *cors.Policy
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, policy *cors.Policy, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		policy:  policy,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle runs the full pipeline: gatekeep origin, resolve the upstream,
// translate the request, forward with redirect resolution, relay the result.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	res := c.Response()

	h.policy.Apply(res.Header(), req.Header.Get("Origin"))

	// Preflight never reaches the upstream.
	if req.Method == http.MethodOptions {
		return c.NoContent(http.StatusNoContent)
	}

	// Responses may embed per-request state (cart contents, order status),
	// so the upstream's caching directives are always overridden.
	res.Header().Set("Cache-Control", "no-store")

	query := req.URL.Query()
	base, err := h.service.Resolve(service.SelectorValue(query))
	if err != nil {
		return h.mapError(c, err)
	}

	// Buffer the body up front (bounded by the BodyLimit middleware) so
	// 307/308 redirects can replay it.
	var body []byte
	if req.Body != nil {
		body, err = io.ReadAll(req.Body)
		if err != nil {
			// The failure is on the client connection; no upstream was
			// contacted, so this is not an upstream fetch error.
			h.logger.Error("reading request body",
				"err", sanitizeError(err),
				"path", req.URL.Path,
			)
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Failed to read request body",
			})
		}
		if len(body) == 0 {
			body = nil
		}
	}

	pr := &model.ProxyRequest{
		Method: req.Method,
		Suffix: c.Param("*"),
		Query:  query,
		Header: req.Header,
		Body:   body,
	}

	tr, err := h.service.Translate(pr, base)
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.service.Forward(req.Context(), tr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		res.Header().Set("Content-Type", ct)
	}

	res.WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. We log the error and move on.
	if _, err := io.Copy(res, resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	detail := sanitizeError(err)

	h.logger.Error("proxy error",
		"err", detail,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, service.ErrUnknownSelector) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid API selector",
		})
	}

	if errors.Is(err, service.ErrMissingCredentials) {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Server missing F1 credentials",
		})
	}

	// Everything else (connection failures, DNS errors, timeouts, hop
	// exhaustion) is an upstream fetch failure.
	return c.JSON(http.StatusBadGateway, map[string]string{
		"error":  "Upstream fetch failed",
		"detail": detail,
	})
}

// sanitizeError redacts Basic credentials from error messages that may
// contain upstream request data.
func sanitizeError(err error) string {
	return basicAuthPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
