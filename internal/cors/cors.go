// Package cors implements the origin gatekeeper: it decides the CORS
// response header set for every request, preflight included.
package cors

import (
	"fmt"
	"net/http"
)

// Fixed header values. Allowed methods and headers do not depend on the
// request; credentials are never allowed because the proxy injects its own.
const (
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Accept, Authorization"
)

// Policy holds the ordered origin allowlist. The first entry is the
// fallback Access-Control-Allow-Origin for absent or unlisted origins —
// a deliberate permissive default, not a security boundary.
type Policy struct {
	origins []string
	allowed map[string]bool
}

// NewPolicy creates a Policy from an ordered, non-empty origin list.
func NewPolicy(origins []string) (*Policy, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("cors: origin allowlist is empty")
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Policy{origins: origins, allowed: allowed}, nil
}

// AllowOrigin returns the Access-Control-Allow-Origin value for a request
// origin: the origin itself when listed, otherwise the first allowlist entry.
func (p *Policy) AllowOrigin(origin string) string {
	if origin != "" && p.allowed[origin] {
		return origin
	}
	return p.origins[0]
}

// Apply sets the CORS header set on a response for the given request origin.
// Vary: Origin is always added so shared caches never serve an allow-origin
// value computed for a different caller.
func (p *Policy) Apply(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", p.AllowOrigin(origin))
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Allow-Credentials", "false")
	h.Add("Vary", "Origin")
}
