package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/httpserver"
	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/meals"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/reports"
	"github.com/fdg312/nutrition-planner/internal/storage/memory"
	"github.com/google/uuid"
)

type recordedRequest struct {
	method string
	path   string
	key    string
}

type scriptedServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	statuses []int
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{r.Method, r.URL.Path, r.Header.Get("Idempotency-Key")})
	status := http.StatusCreated
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 400 {
		w.Write([]byte(`{"error":{"code":"boom","message":"scripted failure"}}`))
		return
	}
	w.Write([]byte(`{"id":"` + uuid.NewString() + `","name":"Apple","default_unit":"grams"}`))
}

func newScripted(t *testing.T, statuses ...int) (*scriptedServer, *Client) {
	t.Helper()
	srv := &scriptedServer{statuses: statuses}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, New(ts.URL, WithRetry(time.Millisecond, 3))
}

func TestWriteRetriesWithSameKey(t *testing.T) {
	srv, client := newScripted(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusCreated)

	item, err := client.CreateItem(context.Background(), items.CreateItemRequest{Name: "Apple"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Name != "Apple" {
		t.Errorf("unexpected item %+v", item)
	}

	if len(srv.requests) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(srv.requests))
	}
	key := srv.requests[0].key
	if key == "" {
		t.Fatal("expected Idempotency-Key header")
	}
	for _, r := range srv.requests {
		if r.key != key {
			t.Errorf("expected key %q on every attempt, got %q", key, r.key)
		}
	}
}

func TestWriteDoesNotRetryClientErrors(t *testing.T) {
	srv, client := newScripted(t, http.StatusUnprocessableEntity)

	_, err := client.CreateEntry(context.Background(), mealplans.CreateEntryRequest{MealID: uuid.New(), Date: "2024-03-12", MealType: "lunch"})
	if !IsStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "boom" {
		t.Errorf("expected code boom, got %q", apiErr.Code)
	}
	if len(srv.requests) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(srv.requests))
	}
}

func TestWriteGivesUpAfterMaxRetries(t *testing.T) {
	srv, client := newScripted(t, 500, 500, 500, 500, 500)

	_, err := client.CreateItem(context.Background(), items.CreateItemRequest{Name: "Apple"})
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if len(srv.requests) != 4 {
		t.Errorf("expected 4 attempts, got %d", len(srv.requests))
	}
}

func TestReadsAreSingleAttempt(t *testing.T) {
	srv, client := newScripted(t, http.StatusServiceUnavailable)

	if _, err := client.SearchItems(context.Background(), "app", 10); !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503, got %v", err)
	}
	if len(srv.requests) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(srv.requests))
	}
	if srv.requests[0].key != "" {
		t.Error("reads must not carry an Idempotency-Key")
	}
}

// lostResponse runs the first write for real and then reports 502, as if
// the response was lost on the way back.
type lostResponse struct {
	next http.Handler
	mu   sync.Mutex
	lost bool
}

func (h *lostResponse) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	drop := r.Method == http.MethodPost && !h.lost
	if drop {
		h.lost = true
	}
	h.mu.Unlock()

	if drop {
		h.next.ServeHTTP(httptest.NewRecorder(), r)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	h.next.ServeHTTP(w, r)
}

func newPlannerServer(t *testing.T, wrap func(http.Handler) http.Handler) *Client {
	t.Helper()
	cfg := &config.Config{AuthMode: config.AuthModeNone, WeekStartsOn: time.Sunday, IdempotencyTTL: time.Hour}
	var h http.Handler = httpserver.NewWithStorage(cfg, memory.New()).Handler()
	if wrap != nil {
		h = wrap(h)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(ts.URL, WithRetry(time.Millisecond, 3))
}

func TestRetryAfterLostResponseCreatesOneRow(t *testing.T) {
	client := newPlannerServer(t, func(h http.Handler) http.Handler { return &lostResponse{next: h} })
	ctx := context.Background()

	calories := 52.0
	item, err := client.CreateItem(ctx, items.CreateItemRequest{Name: "Apple", Calories: &calories, DefaultUnit: "grams"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := client.SearchItems(ctx, "apple", 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != item.ID {
		t.Errorf("expected exactly the created item, got %+v", found)
	}
}

func TestPlannerRoundTrip(t *testing.T) {
	client := newPlannerServer(t, nil)
	ctx := context.Background()

	if err := client.Healthz(ctx); err != nil {
		t.Fatalf("healthz: %v", err)
	}

	calories := 370.0
	oats, err := client.CreateItem(ctx, items.CreateItemRequest{Name: "Oats", Calories: &calories, DefaultUnit: "grams"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	b := meals.NewBuilder()
	ghost := uuid.New()
	b.Select(ghost, nutrition.Grams)

	// неизвестный продукт: сервер отклоняет, состав остаётся в builder
	if _, err := client.SubmitMeal(ctx, b, "Porridge", ""); !IsStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("expected 422 for unknown item, got %v", err)
	}
	if len(b.Lines()) != 1 {
		t.Fatalf("builder must keep its lines after a failed submit, got %d", len(b.Lines()))
	}

	b.Remove(ghost)
	b.Select(oats.ID, nutrition.Grams)
	if _, err := b.Decrement(oats.ID); err != nil {
		t.Fatal(err)
	}
	meal, err := client.SubmitMeal(ctx, b, "Porridge", "")
	if err != nil {
		t.Fatalf("submit meal: %v", err)
	}
	if len(meal.Items) != 1 || meal.Items[0].Quantity != 50 {
		t.Fatalf("unexpected meal lines %+v", meal.Items)
	}

	entry, err := client.CreateEntry(ctx, mealplans.CreateEntryRequest{MealID: meal.ID, Date: "2024-03-12", MealType: "dinner"})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	week, err := client.Week(ctx, "2024-03-12")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	day, _ := week.Day("2024-03-12")
	if day.Totals.Calories != 185 {
		t.Errorf("expected 185 kcal, got %v", day.Totals.Calories)
	}

	report, err := client.CreateReport(ctx, reports.CreateReportRequest{Date: "2024-03-12", Format: reports.FormatCSV})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	data, err := client.Download(ctx, report.DownloadURL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected report body")
	}

	if err := client.DeleteEntry(ctx, entry.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := client.DeleteEntry(ctx, entry.ID); !IsStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404 on second delete, got %v", err)
	}
}
