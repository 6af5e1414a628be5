package apiclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testDebounce = 10 * time.Millisecond

type fetchLog struct {
	mu      sync.Mutex
	queries []string
}

func (f *fetchLog) add(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
}

func (f *fetchLog) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func waitResult(t *testing.T, ch <-chan Result[string]) Result[string] {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result[string]{}
	}
}

func expectNoResult(t *testing.T, ch <-chan Result[string]) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected result %+v", r)
	case <-time.After(10 * testDebounce):
	}
}

func TestSearcherDebounces(t *testing.T) {
	var log fetchLog
	results := make(chan Result[string], 4)
	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		log.add(q)
		return []string{q + "-hit"}, nil
	}, func(r Result[string]) { results <- r }, testDebounce)
	defer s.Close()

	s.Query("o")
	s.Query("oa")
	last := s.Query("oat")

	r := waitResult(t, results)
	if r.Seq != last || r.Query != "oat" || len(r.Items) != 1 || r.Items[0] != "oat-hit" {
		t.Errorf("unexpected result %+v", r)
	}
	expectNoResult(t, results)

	if got := log.all(); len(got) != 1 || got[0] != "oat" {
		t.Errorf("expected a single fetch for oat, got %v", got)
	}
}

func TestSearcherDiscardsStaleResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	results := make(chan Result[string], 4)

	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		if q == "a" {
			close(started)
			<-release
		}
		return []string{q}, nil
	}, func(r Result[string]) { results <- r }, testDebounce)
	defer s.Close()

	s.Query("a")
	<-started
	newest := s.Query("ab")

	r := waitResult(t, results)
	if r.Seq != newest || r.Query != "ab" {
		t.Fatalf("expected result for ab, got %+v", r)
	}

	// ответ на "a" приходит позже и должен быть отброшен
	close(release)
	expectNoResult(t, results)
}

func TestSearcherErrorDegradesToEmpty(t *testing.T) {
	results := make(chan Result[string], 1)
	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		return nil, errors.New("connection refused")
	}, func(r Result[string]) { results <- r }, testDebounce)
	defer s.Close()

	seq := s.Query("rice")
	r := waitResult(t, results)
	if r.Seq != seq || r.Items == nil || len(r.Items) != 0 {
		t.Errorf("expected empty non-nil result, got %+v", r)
	}
}

func TestSearcherCoalescesIdenticalQueries(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	results := make(chan Result[string], 4)

	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []string{q}, nil
	}, func(r Result[string]) { results <- r }, testDebounce)
	defer s.Close()

	s.Query("egg")
	<-started
	second := s.Query("egg")
	// второй запуск присоединяется к запросу в полёте
	time.Sleep(5 * testDebounce)
	close(release)

	r := waitResult(t, results)
	if r.Seq != second {
		t.Errorf("expected delivery for seq %d, got %d", second, r.Seq)
	}
	expectNoResult(t, results)
	if calls.Load() != 1 {
		t.Errorf("expected one fetch, got %d", calls.Load())
	}
}

func TestSearcherClose(t *testing.T) {
	results := make(chan Result[string], 1)
	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		return []string{q}, nil
	}, func(r Result[string]) { results <- r }, testDebounce)

	s.Query("milk")
	s.Close()
	expectNoResult(t, results)

	if seq := s.Query("bread"); seq != 1 {
		t.Errorf("expected no new sequence after Close, got %d", seq)
	}
}

func TestSearcherSequenceIsMonotonic(t *testing.T) {
	s := NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		return nil, nil
	}, func(Result[string]) {}, time.Hour)
	defer s.Close()

	var prev uint64
	for _, q := range []string{"a", "b", "a", "c"} {
		seq := s.Query(q)
		if seq <= prev {
			t.Fatalf("sequence went from %d to %d", prev, seq)
		}
		prev = seq
	}
	if s.Latest() != prev {
		t.Errorf("expected latest %d, got %d", prev, s.Latest())
	}
}

func TestSearcherQueryWaitsForDelivery(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan Result[string], 4)

	var (
		mu   sync.Mutex
		seen [][2]uint64
		s    *Searcher[string]
	)
	s = NewSearcher(func(ctx context.Context, q string) ([]string, error) {
		return []string{q}, nil
	}, func(r Result[string]) {
		entered <- r
		<-gate
		mu.Lock()
		seen = append(seen, [2]uint64{r.Seq, s.Latest()})
		mu.Unlock()
	}, testDebounce)
	defer s.Close()

	first := s.Query("a")
	if r := waitResult(t, entered); r.Seq != first {
		t.Fatalf("expected delivery for seq %d, got %+v", first, r)
	}

	issued := make(chan uint64, 1)
	go func() { issued <- s.Query("ab") }()

	select {
	case seq := <-issued:
		t.Fatalf("query %d was issued while an older result was being delivered", seq)
	case <-time.After(5 * testDebounce):
	}

	close(gate)
	var second uint64
	select {
	case second = <-issued:
	case <-time.After(2 * time.Second):
		t.Fatal("query never issued")
	}
	if r := waitResult(t, entered); r.Seq != second {
		t.Fatalf("expected delivery for seq %d, got %+v", second, r)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, pair := range seen {
		if pair[0] != pair[1] {
			t.Errorf("result seq %d delivered while latest was %d", pair[0], pair[1])
		}
	}
}
