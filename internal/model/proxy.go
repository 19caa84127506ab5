// Package model defines shared per-request value types for the proxy.
// Nothing here outlives a single request.
package model

import (
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents an inbound client request before translation.
// Body holds the raw bytes (already read, bounded by the server body limit)
// so it can be replayed on 307/308 redirects; nil means no body.
type ProxyRequest struct {
	Method string
	Suffix string // path after the /proxy/ mount prefix
	Query  url.Values
	Header http.Header
	Body   []byte
}

// TranslatedRequest is a ProxyRequest rewritten onto an upstream base URL,
// with server credentials injected and headers reduced to the allowlist.
type TranslatedRequest struct {
	URL    *url.URL
	Method string
	Header http.Header
	Body   []byte // nil for GET/HEAD
}

// ProxyResponse represents the final upstream response to be relayed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
