package items

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/userctx"
	"github.com/google/uuid"
)

type mockItemsRepo struct {
	items      []storage.Item
	searchFunc func(ctx context.Context, ownerUserID, query string, limit int) ([]storage.Item, error)
	lastLimit  int
}

func (m *mockItemsRepo) CreateItem(ctx context.Context, item *storage.Item) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	m.items = append(m.items, *item)
	return nil
}

func (m *mockItemsRepo) GetItem(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Item, error) {
	for _, item := range m.items {
		if item.ID == id && item.OwnerUserID == ownerUserID {
			out := item
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockItemsRepo) SearchItems(ctx context.Context, ownerUserID, query string, limit int) ([]storage.Item, error) {
	m.lastLimit = limit
	if m.searchFunc != nil {
		return m.searchFunc(ctx, ownerUserID, query, limit)
	}

	result := []storage.Item{}
	for _, item := range m.items {
		if item.OwnerUserID == ownerUserID && strings.Contains(strings.ToLower(item.Name), strings.ToLower(query)) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockItemsRepo) GetItemsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]storage.Item, error) {
	return nil, nil
}

func newTestHandler(repo *mockItemsRepo) *Handler {
	return NewHandler(NewService(repo, DefaultSearchLimit, MaxSearchLimit))
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(userctx.WithUserID(req.Context(), userID))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func TestHandleCreate_Success(t *testing.T) {
	repo := &mockItemsRepo{}
	handler := newTestHandler(repo)

	body := `{"name":"  Oats ","calories":389,"protein":16.9,"description":""}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(body)), "u1")
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var item ItemDTO
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Name != "Oats" {
		t.Fatalf("expected trimmed name, got %q", item.Name)
	}
	if item.DefaultUnit != "grams" {
		t.Fatalf("expected default unit grams, got %q", item.DefaultUnit)
	}
	if item.Calories == nil || *item.Calories != 389 {
		t.Fatalf("expected calories 389, got %v", item.Calories)
	}
	if item.Fat != nil {
		t.Fatalf("expected unset fat to stay null, got %v", *item.Fat)
	}
	if item.Description != nil {
		t.Fatalf("expected empty description stored as null")
	}
	if len(repo.items) != 1 || repo.items[0].OwnerUserID != "u1" {
		t.Fatalf("expected item persisted for u1, got %+v", repo.items)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"calories":10}`, "name is required"},
		{"negative nutrient", `{"name":"x","fat":-1}`, "fat must be greater than or equal to 0"},
		{"unknown unit", `{"name":"x","default_unit":"ounces"}`, "default_unit must be one of"},
		{"name too long", `{"name":"` + strings.Repeat("a", 201) + `"}`, "name must be at most 200 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&mockItemsRepo{})
			req := withUser(httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(tt.body)), "u1")
			rec := httptest.NewRecorder()

			handler.HandleCreate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			detail := decodeError(t, rec)
			if detail.Code != "validation_failed" || !strings.Contains(detail.Message, tt.want) {
				t.Fatalf("expected validation_failed containing %q, got %+v", tt.want, detail)
			}
		})
	}
}

func TestHandleSearch_FilterAndEmpty(t *testing.T) {
	repo := &mockItemsRepo{}
	handler := newTestHandler(repo)
	for _, name := range []string{"Rice", "Brown rice", "Apple"} {
		_ = repo.CreateItem(context.Background(), &storage.Item{OwnerUserID: "u1", Name: name, DefaultUnit: "grams"})
	}

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/items?q=RIC&limit=5", nil), "u1")
	rec := httptest.NewRecorder()
	handler.HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ListItemsResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Items) != 2 || resp.Items[0].Name != "Brown rice" || resp.Limit != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	req = withUser(httptest.NewRequest(http.MethodGet, "/v1/items?q=zzz", nil), "u1")
	rec = httptest.NewRecorder()
	handler.HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for no match, got %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	_ = json.NewDecoder(rec.Body).Decode(&raw)
	if string(raw["items"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["items"])
	}
}

func TestHandleSearch_LimitClamp(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", DefaultSearchLimit},
		{"limit=0", DefaultSearchLimit},
		{"limit=-3", DefaultSearchLimit},
		{"limit=5", 5},
		{"limit=1000", MaxSearchLimit},
	}

	for _, tt := range tests {
		repo := &mockItemsRepo{}
		handler := newTestHandler(repo)
		req := withUser(httptest.NewRequest(http.MethodGet, "/v1/items?"+tt.query, nil), "u1")
		rec := httptest.NewRecorder()
		handler.HandleSearch(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tt.query, rec.Code)
		}
		if repo.lastLimit != tt.want {
			t.Fatalf("%q: expected storage limit %d, got %d", tt.query, tt.want, repo.lastLimit)
		}
	}

	handler := newTestHandler(&mockItemsRepo{})
	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/items?limit=abc", nil), "u1")
	rec := httptest.NewRecorder()
	handler.HandleSearch(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", rec.Code)
	}
}

func TestHandleSearch_QueryFailed(t *testing.T) {
	repo := &mockItemsRepo{
		searchFunc: func(ctx context.Context, ownerUserID, query string, limit int) ([]storage.Item, error) {
			return nil, errors.New("connection refused")
		},
	}
	handler := newTestHandler(repo)

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/items?q=a", nil), "u1")
	rec := httptest.NewRecorder()
	handler.HandleSearch(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != "query_failed" {
		t.Fatalf("expected query_failed, got %+v", detail)
	}
}

func TestHandleGet(t *testing.T) {
	repo := &mockItemsRepo{}
	handler := newTestHandler(repo)
	item := storage.Item{OwnerUserID: "u1", Name: "Milk", DefaultUnit: "milliliters"}
	_ = repo.CreateItem(context.Background(), &item)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/items/{id}", handler.HandleGet)

	tests := []struct {
		name   string
		path   string
		user   string
		status int
	}{
		{"found", "/v1/items/" + item.ID.String(), "u1", http.StatusOK},
		{"other owner", "/v1/items/" + item.ID.String(), "u2", http.StatusNotFound},
		{"bad id", "/v1/items/not-a-uuid", "u1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUser(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.user)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestHandleCreate_Unauthorized(t *testing.T) {
	handler := newTestHandler(&mockItemsRepo{})
	req := httptest.NewRequest(http.MethodPost, "/v1/items", bytes.NewBufferString(`{"name":"x"}`))
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
