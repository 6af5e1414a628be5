package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/storage/memory"
	"github.com/fdg312/nutrition-planner/internal/userctx"
)

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(userctx.WithUserID(req.Context(), userID))
}

func TestHandleGetMe_WithoutRecord(t *testing.T) {
	handler := NewHandler(NewService(memory.New().GetUsersStorage()))

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/me", nil), "local-user")
	w := httptest.NewRecorder()
	handler.HandleGetMe(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var me UserDTO
	if err := json.NewDecoder(w.Body).Decode(&me); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if me.ID != "local-user" || me.Username != "" || me.Email != nil {
		t.Errorf("unexpected card: %+v", me)
	}
}

func TestHandleGetMe_RegisteredUser(t *testing.T) {
	store := memory.New().GetUsersStorage()
	email := "ann@example.com"
	user := &storage.User{Email: &email, Username: "ann"}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	handler := NewHandler(NewService(store))

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/me", nil), user.ID)
	w := httptest.NewRecorder()
	handler.HandleGetMe(w, req)

	var me UserDTO
	_ = json.NewDecoder(w.Body).Decode(&me)
	if me.Username != "ann" || me.Email == nil || *me.Email != email {
		t.Errorf("unexpected card: %+v", me)
	}
}

func TestHandleUpdateMe(t *testing.T) {
	handler := NewHandler(NewService(memory.New().GetUsersStorage()))

	tests := []struct {
		name     string
		body     string
		status   int
		username string
	}{
		{"Trimmed", `{"username":"  Chef  "}`, http.StatusOK, "Chef"},
		{"Empty", `{"username":"   "}`, http.StatusBadRequest, ""},
		{"TooLong", `{"username":"` + strings.Repeat("a", 51) + `"}`, http.StatusBadRequest, ""},
		{"InvalidJSON", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUser(httptest.NewRequest(http.MethodPatch, "/v1/me", bytes.NewBufferString(tt.body)), "local-user")
			w := httptest.NewRecorder()
			handler.HandleUpdateMe(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var me UserDTO
			_ = json.NewDecoder(w.Body).Decode(&me)
			if me.Username != tt.username {
				t.Errorf("expected username %q, got %q", tt.username, me.Username)
			}
		})
	}

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/me", nil), "local-user")
	w := httptest.NewRecorder()
	handler.HandleGetMe(w, req)

	var me UserDTO
	_ = json.NewDecoder(w.Body).Decode(&me)
	if me.Username != "Chef" {
		t.Errorf("expected persisted username Chef, got %q", me.Username)
	}
}

func TestHandleGetMe_Unauthorized(t *testing.T) {
	handler := NewHandler(NewService(memory.New().GetUsersStorage()))

	w := httptest.NewRecorder()
	handler.HandleGetMe(w, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}
