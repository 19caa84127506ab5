package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	e := newTestServer(t, testConfig(upstream.URL))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /statusz", http.MethodGet, "/statusz", http.StatusOK},
		{"GET /proxy/products", http.MethodGet, "/proxy/products?api=flowershop", http.StatusOK},
		{"POST /proxy/cart/items", http.MethodPost, "/proxy/cart/items?api=cart", http.StatusOK},
		{"PUT /proxy/cart/items/1", http.MethodPut, "/proxy/cart/items/1?api=cart", http.StatusOK},
		{"DELETE /proxy/cart/items/1", http.MethodDelete, "/proxy/cart/items/1?api=cart", http.StatusOK},
		{"OPTIONS /proxy/anything", http.MethodOptions, "/proxy/anything", http.StatusNoContent},
		{"GET /proxy without suffix", http.MethodGet, "/proxy", http.StatusOK},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
