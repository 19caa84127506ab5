package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should include at least Go runtime and process collectors.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	// Verify our custom metrics exist by incrementing one and gathering again.
	m.RequestsTotal.WithLabelValues("GET", "200", "/proxy").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "f1_proxy_http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected f1_proxy_http_requests_total in gathered metrics")
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"X-CUSTOM", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/proxy/products/roses", "/proxy"},
		{"/proxy/cart/items", "/proxy"},
		{"/healthz", "/healthz"},
		{"/statusz", "/statusz"},
		{"/metrics", "/metrics"},
		{"/unknown", "other"},
		{"/", "other"},
		{"/proxyfoo/bar", "other"},
		{"/proxy", "/proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizeSelector(t *testing.T) {
	tests := []struct {
		selector string
		want     string
	}{
		{"", "default"},
		{"flowershop", "flowershop"},
		{"cart", "cart"},
		{"tree", "tree"},
		{"CART", "cart"},
		{"warehouse", "other"},
		{"../../etc", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got := NormalizeSelector(tt.selector)
			if got != tt.want {
				t.Errorf("NormalizeSelector(%q) = %q, want %q", tt.selector, got, tt.want)
			}
		})
	}
}
