// Package apiclient is a typed HTTP client for the planner API.
// Reads are single attempt. Writes carry an Idempotency-Key and are retried
// with exponential backoff on transport errors and 5xx responses.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/auth"
	"github.com/fdg312/nutrition-planner/internal/exercises"
	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/meals"
	"github.com/fdg312/nutrition-planner/internal/reports"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultRetryBase  = 200 * time.Millisecond
	DefaultMaxRetries = 3

	idempotencyHeader = "Idempotency-Key"
	maxErrorBodyBytes = 4096
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status=%d", e.Status)
	}
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryBase  time.Duration
	maxRetries uint64
	newKey     func() string
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the first backoff interval and the number of retries after
// the first attempt.
func WithRetry(base time.Duration, maxRetries uint64) Option {
	return func(c *Client) {
		c.retryBase = base
		c.maxRetries = maxRetries
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryBase:  DefaultRetryBase,
		maxRetries: DefaultMaxRetries,
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after SignIn.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Healthz(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// ---- auth ----

func (c *Client) SignUp(ctx context.Context, req auth.SignUpRequest) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/signup", req, &out, "")
	return out, err
}

func (c *Client) SignIn(ctx context.Context, req auth.SignInRequest) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/signin", req, &out, "")
	return out, err
}

func (c *Client) DevToken(ctx context.Context) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/dev", struct{}{}, &out, "")
	return out, err
}

// ---- items ----

func (c *Client) CreateItem(ctx context.Context, req items.CreateItemRequest) (items.ItemDTO, error) {
	var out items.ItemDTO
	err := c.write(ctx, http.MethodPost, "/v1/items", req, &out)
	return out, err
}

func (c *Client) SearchItems(ctx context.Context, query string, limit int) ([]items.ItemDTO, error) {
	var out items.ListItemsResponse
	if err := c.get(ctx, "/v1/items?"+searchParams(query, limit).Encode(), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ---- meals ----

func (c *Client) CreateMeal(ctx context.Context, req meals.CreateMealRequest) (meals.MealDTO, error) {
	var out meals.MealDTO
	err := c.write(ctx, http.MethodPost, "/v1/meals", req, &out)
	return out, err
}

// SubmitMeal sends the builder's composition. The builder is not touched,
// so on error the caller can keep editing and resubmit.
func (c *Client) SubmitMeal(ctx context.Context, b *meals.Builder, name, description string) (meals.MealDTO, error) {
	req, err := b.Request(name, description)
	if err != nil {
		return meals.MealDTO{}, err
	}
	return c.CreateMeal(ctx, req)
}

func (c *Client) SearchMeals(ctx context.Context, query string, limit int) ([]meals.MealDTO, error) {
	var out meals.ListMealsResponse
	if err := c.get(ctx, "/v1/meals?"+searchParams(query, limit).Encode(), &out); err != nil {
		return nil, err
	}
	return out.Meals, nil
}

func (c *Client) MealNutrients(ctx context.Context, mealID uuid.UUID, portions float64) (meals.MealNutrientsResponse, error) {
	var out meals.MealNutrientsResponse
	q := url.Values{"portions": {strconv.FormatFloat(portions, 'f', -1, 64)}}
	err := c.get(ctx, "/v1/meals/"+mealID.String()+"/nutrients?"+q.Encode(), &out)
	return out, err
}

// ---- meal plans ----

func (c *Client) CreateEntry(ctx context.Context, req mealplans.CreateEntryRequest) (mealplans.EntryDTO, error) {
	var out mealplans.EntryDTO
	err := c.write(ctx, http.MethodPost, "/v1/meal-plans", req, &out)
	return out, err
}

func (c *Client) ListEntries(ctx context.Context, from, to string) ([]mealplans.EntryDTO, error) {
	var out mealplans.ListEntriesResponse
	q := url.Values{"from": {from}, "to": {to}}
	if err := c.get(ctx, "/v1/meal-plans?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return c.write(ctx, http.MethodDelete, "/v1/meal-plans/"+id.String(), nil, nil)
}

// Week fetches the grid for the week containing date. Empty date means today.
func (c *Client) Week(ctx context.Context, date string) (mealplans.Week, error) {
	var out mealplans.Week
	path := "/v1/meal-plans/week"
	if date != "" {
		path += "?" + url.Values{"date": {date}}.Encode()
	}
	err := c.get(ctx, path, &out)
	return out, err
}

// ---- exercises ----

func (c *Client) CreateExercise(ctx context.Context, req exercises.UpsertExerciseRequest) (exercises.ExerciseDTO, error) {
	var out exercises.ExerciseDTO
	err := c.write(ctx, http.MethodPost, "/v1/exercises", req, &out)
	return out, err
}

// SetExerciseDone ставит (done) или снимает отметку за date.
func (c *Client) SetExerciseDone(ctx context.Context, id uuid.UUID, date string, done bool) error {
	method := http.MethodPut
	if !done {
		method = http.MethodDelete
	}
	return c.write(ctx, method, "/v1/exercises/"+id.String()+"/completions/"+date, nil, nil)
}

func (c *Client) ExerciseWeek(ctx context.Context, date string) (exercises.Week, error) {
	var out exercises.Week
	path := "/v1/exercises/week"
	if date != "" {
		path += "?" + url.Values{"date": {date}}.Encode()
	}
	err := c.get(ctx, path, &out)
	return out, err
}

func (c *Client) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	return c.write(ctx, http.MethodDelete, "/v1/exercises/"+id.String(), nil, nil)
}

// ---- reports ----

func (c *Client) CreateReport(ctx context.Context, req reports.CreateReportRequest) (reports.ReportDTO, error) {
	var out reports.ReportDTO
	err := c.write(ctx, http.MethodPost, "/v1/reports", req, &out)
	return out, err
}

func (c *Client) ListReports(ctx context.Context) (reports.ReportsResponse, error) {
	var out reports.ReportsResponse
	err := c.get(ctx, "/v1/reports", &out)
	return out, err
}

// Download fetches a report body from its download_url. Absolute URLs
// (presigned or public) are requested without the bearer token.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	target := downloadURL
	external := strings.HasPrefix(downloadURL, "http://") || strings.HasPrefix(downloadURL, "https://")
	if !external {
		target = c.baseURL + downloadURL
	} else if strings.HasPrefix(downloadURL, c.baseURL+"/") {
		external = false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if !external {
		c.addAuth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return c.write(ctx, http.MethodDelete, "/v1/reports/"+id.String(), nil, nil)
}

// ---- transport ----

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, "")
}

// write sends a mutating request with one Idempotency-Key for all attempts,
// so a retry after a lost response does not create a second row.
func (c *Client) write(ctx context.Context, method, path string, in, out any) error {
	key := c.newKey()

	backoff := retry.NewExponential(c.retryBase)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, method, path, in, out, key)
		if isRetryable(ctx, err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, idemKey string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set(idempotencyHeader, idemKey)
	}
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) addAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	// ошибки кодирования не повторяем
	if strings.HasPrefix(err.Error(), "encode request") || strings.HasPrefix(err.Error(), "decode response") {
		return false
	}
	return true
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func searchParams(query string, limit int) url.Values {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
