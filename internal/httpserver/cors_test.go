package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/nutrition-planner/internal/config"
)

func corsRequest(method, origin, requestMethod string) *http.Request {
	req := httptest.NewRequest(method, "/v1/meal-plans/week", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if requestMethod != "" {
		req.Header.Set("Access-Control-Request-Method", requestMethod)
	}
	return req
}

func TestCORSPreflight(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"https://planner.example.com/"}}
	handler := CORSMiddleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))

	tests := []struct {
		name        string
		origin      string
		method      string
		wantAllowed bool
	}{
		{"AllowedOriginTrailingSlashInConfig", "https://planner.example.com", http.MethodPost, true},
		{"DeleteEntry", "https://planner.example.com", http.MethodDelete, true},
		{"NoRequestedMethod", "https://planner.example.com", "", true},
		{"UnservedMethod", "https://planner.example.com", http.MethodPut, false},
		{"ForeignOrigin", "https://evil.example.com", http.MethodPost, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, corsRequest(http.MethodOptions, tt.origin, tt.method))

			if rr.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", rr.Code)
			}
			gotOrigin := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed {
				if gotOrigin != tt.origin {
					t.Errorf("expected Allow-Origin=%s, got %q", tt.origin, gotOrigin)
				}
				if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, IdempotencyHeader) {
					t.Errorf("expected %s in Allow-Headers, got %q", IdempotencyHeader, got)
				}
			} else if gotOrigin != "" || rr.Header().Get("Access-Control-Allow-Methods") != "" {
				t.Errorf("expected no allow headers, got origin=%q methods=%q", gotOrigin, rr.Header().Get("Access-Control-Allow-Methods"))
			}
			if rr.Header().Get("Vary") != "Origin" {
				t.Errorf("expected Vary: Origin, got %q", rr.Header().Get("Vary"))
			}
		})
	}
}

func TestCORSExposesPlannerHeaders(t *testing.T) {
	cfg := &config.Config{
		CORSAllowedOrigins:   []string{"https://planner.example.com"},
		CORSAllowCredentials: true,
	}
	handler := CORSMiddleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodGet, "https://planner.example.com", ""))

	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected Allow-Credentials=true")
	}
	exposed := rr.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Content-Disposition", "Idempotent-Replayed", "Retry-After"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("expected %s exposed, got %q", h, exposed)
		}
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodGet, "https://evil.example.com", ""))
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" || rr.Header().Get("Access-Control-Expose-Headers") != "" {
		t.Errorf("foreign origin must pass through without CORS headers, got %v", rr.Header())
	}
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	cfg := &config.Config{
		CORSAllowedOrigins:   []string{"*"},
		CORSAllowCredentials: true,
	}
	handler := CORSMiddleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodGet, "http://localhost:5173", ""))

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Allow-Origin=*, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("expected no credentials with wildcard origin, got %q", got)
	}
}

func TestCORSNoOriginPassesThrough(t *testing.T) {
	called := false
	handler := CORSMiddleware(&config.Config{CORSAllowedOrigins: []string{"https://planner.example.com"}}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodOptions, "", ""))
	if !called {
		t.Error("expected a non-CORS OPTIONS request to reach the router")
	}
	if len(rr.Header()) != 0 {
		t.Errorf("expected no headers, got %v", rr.Header())
	}
}
