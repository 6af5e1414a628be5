package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fdg312/nutrition-planner/internal/userctx"
)

func countingHandler(calls *atomic.Int64, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"n":%d}`, n)
	})
}

func idemRequest(method, path, key, userID string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(userctx.WithUserID(req.Context(), userID))
}

func TestIdempotencyMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		first     *http.Request
		second    *http.Request
		wantCalls int64
	}{
		{"SameKeyReplays", idemRequest(http.MethodPost, "/v1/items", "k1", "u1"), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"), 1},
		{"NoKey", idemRequest(http.MethodPost, "/v1/items", "", "u1"), idemRequest(http.MethodPost, "/v1/items", "", "u1"), 2},
		{"DifferentUser", idemRequest(http.MethodPost, "/v1/items", "k1", "u1"), idemRequest(http.MethodPost, "/v1/items", "k1", "u2"), 2},
		{"DifferentPath", idemRequest(http.MethodPost, "/v1/items", "k1", "u1"), idemRequest(http.MethodPost, "/v1/meals", "k1", "u1"), 2},
		{"SafeMethod", idemRequest(http.MethodGet, "/v1/items", "k1", "u1"), idemRequest(http.MethodGet, "/v1/items", "k1", "u1"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			h := IdempotencyMiddleware(NewIdempotencyStore(time.Hour), countingHandler(&calls, http.StatusCreated))

			w1 := httptest.NewRecorder()
			h.ServeHTTP(w1, tt.first)
			w2 := httptest.NewRecorder()
			h.ServeHTTP(w2, tt.second)

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("expected %d handler calls, got %d", tt.wantCalls, got)
			}
			if tt.wantCalls == 1 {
				if w2.Code != http.StatusCreated || w2.Body.String() != w1.Body.String() {
					t.Errorf("expected replay of %d %q, got %d %q", w1.Code, w1.Body.String(), w2.Code, w2.Body.String())
				}
				if w2.Header().Get("Content-Type") != "application/json" {
					t.Errorf("expected replayed Content-Type, got %q", w2.Header().Get("Content-Type"))
				}
			}
		})
	}
}

func TestIdempotencyServerErrorNotStored(t *testing.T) {
	var calls atomic.Int64
	h := IdempotencyMiddleware(NewIdempotencyStore(time.Hour), countingHandler(&calls, http.StatusServiceUnavailable))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))
	}
	if calls.Load() != 2 {
		t.Errorf("expected retry after 503 to reach the handler, got %d calls", calls.Load())
	}
}

func TestIdempotencyExpiry(t *testing.T) {
	var calls atomic.Int64
	store := NewIdempotencyStore(time.Hour)
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	h := IdempotencyMiddleware(store, countingHandler(&calls, http.StatusCreated))

	h.ServeHTTP(httptest.NewRecorder(), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))
	now = now.Add(59 * time.Minute)
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))
	now = now.Add(2 * time.Minute)
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))

	if calls.Load() != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls.Load())
	}
}

func TestIdempotencyInProgress(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	release := make(chan struct{})
	started := make(chan struct{})
	h := IdempotencyMiddleware(store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(httptest.NewRecorder(), idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))
		close(done)
	}()
	<-started

	w := httptest.NewRecorder()
	h.ServeHTTP(w, idemRequest(http.MethodPost, "/v1/items", "k1", "u1"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while in progress, got %d", w.Code)
	}

	close(release)
	<-done
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	var calls atomic.Int64
	h := IdempotencyMiddleware(NewIdempotencyStore(time.Hour), countingHandler(&calls, http.StatusCreated))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, idemRequest(http.MethodPost, "/v1/items", strings.Repeat("k", 200), "u1"))
	if w.Code != http.StatusBadRequest || calls.Load() != 0 {
		t.Errorf("expected 400 without handler call, got %d (%d calls)", w.Code, calls.Load())
	}
}

func TestIdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	var calls atomic.Int64
	var seen []string
	h := IdempotencyMiddleware(NewIdempotencyStore(time.Hour), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, string(body))
		w.WriteHeader(http.StatusCreated)
	}))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(body))
		req.Header.Set(IdempotencyHeader, "k1")
		req = req.WithContext(userctx.WithUserID(req.Context(), "u1"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := post(`{"name":"Oats"}`); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := post(`{"name":"Milk"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a different body, got %d", w.Code)
	}
	if w := post(`{"name":"Oats"}`); w.Code != http.StatusCreated || w.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("expected replay for the original body, got %d", w.Code)
	}

	if calls.Load() != 1 {
		t.Errorf("expected one handler call, got %d", calls.Load())
	}
	if len(seen) != 1 || seen[0] != `{"name":"Oats"}` {
		t.Errorf("handler must still see the request body, got %v", seen)
	}
}
