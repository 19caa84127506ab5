// Package service implements the core proxy engine: upstream selection,
// request translation, and redirect-following forwarding.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"f1-proxy-go/internal/client"
	"f1-proxy-go/internal/config"
	"f1-proxy-go/internal/metrics"
	"f1-proxy-go/internal/model"
)

// SelectorParam is the query parameter that picks the upstream.
const SelectorParam = "api"

// DefaultSelector is used when the selector parameter is absent.
const DefaultSelector = "flowershop"

// maxRedirectHops bounds the manual redirect loop.
const maxRedirectHops = 5

const userAgent = "f1-proxy-go/1.0"

var (
	// ErrUnknownSelector is returned for an api value outside the configured set.
	ErrUnknownSelector = errors.New("unknown API selector")

	// ErrMissingCredentials is returned when the server-side F1 key or
	// password is not configured. Requests never proceed with partial
	// credentials.
	ErrMissingCredentials = errors.New("F1 credentials not configured")

	// ErrTooManyRedirects is returned when the upstream keeps redirecting
	// past the hop limit.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// redirectStatuses are the statuses the forwarder resolves itself.
var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true, // 301
	http.StatusFound:             true, // 302
	http.StatusSeeOther:          true, // 303
	http.StatusTemporaryRedirect: true, // 307
	http.StatusPermanentRedirect: true, // 308
}

// ProxyService holds the immutable per-process state of the engine:
// the selector → base URL table and the configured credentials.
type ProxyService struct {
	client  *client.F1Client
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	bases   map[string]*url.URL
}

// NewProxyService creates a ProxyService from the configured upstream table.
// The metrics parameter is optional; pass nil to disable hop metrics.
func NewProxyService(c *client.F1Client, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	bases := make(map[string]*url.URL, 3)
	for name, raw := range cfg.Upstreams() {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %s url: %w", name, err)
		}
		bases[name] = u
	}

	return &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		bases:   bases,
	}, nil
}

// SelectorValue extracts the selector from an inbound query. The key is
// matched exactly (a mixed-case "Api" is an ordinary parameter, forwarded
// verbatim); repeated keys follow last-write-wins like the rest of the
// query remapping.
func SelectorValue(query url.Values) string {
	vals := query[SelectorParam]
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}

// Resolve maps a selector string to its upstream base URL. Matching is
// case-insensitive and exact; an empty selector means DefaultSelector.
func (s *ProxyService) Resolve(selector string) (*url.URL, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	base, ok := s.bases[strings.ToLower(selector)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, selector)
	}
	return base, nil
}

// Translate rewrites an inbound request onto the given upstream base.
// The outbound header set is an allowlist: the injected Authorization,
// Accept (inbound value or application/json), and Content-Type when the
// inbound request carried one and the method may have a body. Everything
// else the client sent, its own Authorization included, is dropped.
func (s *ProxyService) Translate(pr *model.ProxyRequest, base *url.URL) (*model.TranslatedRequest, error) {
	if s.cfg.F1.Key == "" || s.cfg.F1.Password == "" {
		return nil, ErrMissingCredentials
	}

	target := *base
	target.Path = base.Path + strings.TrimPrefix(pr.Suffix, "/")
	target.RawQuery = forwardQuery(pr.Query)

	bodyless := pr.Method == http.MethodGet || pr.Method == http.MethodHead

	header := make(http.Header)
	header.Set("Authorization", basicAuth(s.cfg.F1.Key, s.cfg.F1.Password))
	if accept := pr.Header.Get("Accept"); accept != "" {
		header.Set("Accept", accept)
	} else {
		header.Set("Accept", "application/json")
	}
	if ct := pr.Header.Get("Content-Type"); ct != "" && !bodyless {
		header.Set("Content-Type", ct)
	}
	header.Set("User-Agent", userAgent)

	body := pr.Body
	if bodyless {
		body = nil
	}

	return &model.TranslatedRequest{
		URL:    &target,
		Method: pr.Method,
		Header: header,
		Body:   body,
	}, nil
}

// hop is the mutable redirect state: where the next request goes, with
// which method, header, and body.
type hop struct {
	url    *url.URL
	method string
	header http.Header
	body   []byte
}

// Forward issues the translated request and resolves redirects itself, up
// to maxRedirectHops. The caller is responsible for closing the response
// body of a non-error return.
func (s *ProxyService) Forward(ctx context.Context, tr *model.TranslatedRequest) (*model.ProxyResponse, error) {
	cur := hop{url: tr.URL, method: tr.Method, header: tr.Header, body: tr.Body}

	for i := 0; i < maxRedirectHops; i++ {
		resp, err := s.client.Do(ctx, cur.method, cur.url.String(), cur.header, cur.body)
		if err != nil {
			return nil, fmt.Errorf("forward to upstream: %w", err)
		}

		if !redirectStatuses[resp.StatusCode] {
			return resp, nil
		}

		location := resp.Header.Get("Location")
		if location == "" {
			// Cannot resolve further; the redirect response is final.
			return resp, nil
		}

		next, err := cur.url.Parse(location)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("resolve redirect location %q: %w", location, err)
		}
		_ = resp.Body.Close()

		if s.metrics != nil {
			s.metrics.RedirectHops.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		}
		s.logger.Debug("following redirect",
			"status", resp.StatusCode,
			"hop", i+1,
			"method", cur.method,
		)

		cur = nextHop(resp.StatusCode, cur, next)
	}

	return nil, ErrTooManyRedirects
}

// nextHop applies the per-status method/body transformation rules:
//
//	303: always downgrade to GET and drop the body.
//	301/302: downgrade to GET and drop the body unless the current method
//	         is already GET or HEAD. This follows the widely adopted client
//	         convention for the ambiguous historical semantics rather than
//	         strict RFC 7231.
//	307/308: preserve method and body unchanged.
func nextHop(status int, cur hop, next *url.URL) hop {
	method := cur.method
	header := cur.header
	body := cur.body

	switch status {
	case http.StatusSeeOther:
		method = http.MethodGet
		body = nil
		header = withoutBodyHeaders(header)
	case http.StatusMovedPermanently, http.StatusFound:
		if method != http.MethodGet && method != http.MethodHead {
			method = http.MethodGet
			body = nil
			header = withoutBodyHeaders(header)
		}
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		// unchanged
	}

	return hop{url: next, method: method, header: header, body: body}
}

// withoutBodyHeaders strips Content-Type after a redirect downgrade dropped
// the body. The original header stays untouched; an empty-body POST that is
// never redirected keeps its declared Content-Type.
func withoutBodyHeaders(src http.Header) http.Header {
	h := src.Clone()
	h.Del("Content-Type")
	return h
}

// forwardQuery re-encodes the inbound query for the upstream, dropping the
// selector parameter and keeping only the last value of repeated keys. The
// selector key is matched exactly, mirroring SelectorValue.
func forwardQuery(query url.Values) string {
	q := make(url.Values, len(query))
	for key, vals := range query {
		if key == SelectorParam {
			continue
		}
		if len(vals) > 0 {
			q.Set(key, vals[len(vals)-1])
		}
	}
	return q.Encode()
}

// basicAuth computes the Basic Authorization value for the configured pair.
func basicAuth(key, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+password))
}
