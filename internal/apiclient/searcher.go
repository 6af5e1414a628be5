package apiclient

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/meals"
	"golang.org/x/sync/singleflight"
)

// DefaultDebounce is the pause after the last keystroke before a query is sent.
const DefaultDebounce = 250 * time.Millisecond

// SearchFunc runs one query against the API.
type SearchFunc[T any] func(ctx context.Context, query string) ([]T, error)

// Result is delivered for the newest issued query only.
type Result[T any] struct {
	Seq   uint64
	Query string
	Items []T
}

// Searcher implements search-as-you-type. Every Query call gets the next
// sequence number and restarts the debounce timer. A response is delivered
// only if no newer query was issued while it was in flight. Errors are
// logged and delivered as an empty result. Identical queries in flight
// share one request.
//
// Query waits for a delivery in progress, so once Query returns no older
// result can reach deliver. deliver must not call back into the Searcher.
type Searcher[T any] struct {
	fetch   SearchFunc[T]
	deliver func(Result[T])
	delay   time.Duration
	logger  *log.Logger

	group singleflight.Group

	// deliverMu сериализует доставку и выдачу новых seq; берётся до mu
	deliverMu sync.Mutex

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewSearcher[T any](fetch SearchFunc[T], deliver func(Result[T]), delay time.Duration) *Searcher[T] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Searcher[T]{
		fetch:   fetch,
		deliver: deliver,
		delay:   delay,
		logger:  log.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ItemSearcher wires a Searcher to Client.SearchItems.
func (c *Client) ItemSearcher(limit int, deliver func(Result[items.ItemDTO])) *Searcher[items.ItemDTO] {
	return NewSearcher(func(ctx context.Context, query string) ([]items.ItemDTO, error) {
		return c.SearchItems(ctx, query, limit)
	}, deliver, DefaultDebounce)
}

// MealSearcher wires a Searcher to Client.SearchMeals.
func (c *Client) MealSearcher(limit int, deliver func(Result[meals.MealDTO])) *Searcher[meals.MealDTO] {
	return NewSearcher(func(ctx context.Context, query string) ([]meals.MealDTO, error) {
		return c.SearchMeals(ctx, query, limit)
	}, deliver, DefaultDebounce)
}

// Query issues a new query and returns its sequence number.
func (s *Searcher[T]) Query(query string) uint64 {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.seq
	}

	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.run(seq, query) })
	return seq
}

// Latest returns the sequence number of the newest issued query.
func (s *Searcher[T]) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close stops the pending timer. Responses still in flight are dropped.
func (s *Searcher[T]) Close() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
}

func (s *Searcher[T]) run(seq uint64, query string) {
	if !s.isCurrent(seq) {
		return
	}

	v, err, _ := s.group.Do(query, func() (interface{}, error) {
		return s.fetch(s.ctx, query)
	})

	var found []T
	if err != nil {
		s.logger.Printf("WARN search: query=%q seq=%d failed: %v", query, seq, err)
	} else if v != nil {
		found = v.([]T)
	}

	// проверяем ещё раз: пока шёл запрос, мог прийти новый
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.isCurrent(seq) {
		return
	}

	if found == nil {
		found = []T{}
	}
	s.deliver(Result[T]{Seq: seq, Query: query, Items: found})
}

func (s *Searcher[T]) isCurrent(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && seq == s.seq
}
