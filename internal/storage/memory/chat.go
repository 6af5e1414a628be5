package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

// chatStorage держит историю каждого пользователя в хронологическом порядке,
// поэтому чтение не сортирует.
type chatStorage struct {
	mu      sync.RWMutex
	byOwner map[string][]storage.ChatMessage
	now     func() time.Time
}

func newChatStorage() *chatStorage {
	return &chatStorage{
		byOwner: make(map[string][]storage.ChatMessage),
		now:     time.Now,
	}
}

func (s *chatStorage) InsertExchange(ctx context.Context, ownerUserID string, userContent, assistantContent string) (storage.ChatExchange, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.byOwner[ownerUserID]
	at := s.now().UTC().Truncate(time.Microsecond)
	if n := len(history); n > 0 && !at.After(history[n-1].CreatedAt) {
		at = history[n-1].CreatedAt.Add(time.Microsecond)
	}

	exchange := storage.ChatExchange{
		User:      storage.ChatMessage{ID: uuid.New(), OwnerUserID: ownerUserID, Role: "user", Content: userContent, CreatedAt: at},
		Assistant: storage.ChatMessage{ID: uuid.New(), OwnerUserID: ownerUserID, Role: "assistant", Content: assistantContent, CreatedAt: at.Add(time.Microsecond)},
	}
	s.byOwner[ownerUserID] = append(history, exchange.User, exchange.Assistant)
	return exchange, nil
}

func (s *chatStorage) ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.byOwner[ownerUserID]
	end := len(history)
	if before != nil {
		end = sort.Search(len(history), func(i int) bool {
			return !history[i].CreatedAt.Before(*before)
		})
	}

	start := 0
	if end > limit {
		start = end - limit
	}
	page := make([]storage.ChatMessage, end-start)
	copy(page, history[start:end])

	if start == 0 {
		return page, nil, nil
	}
	cursor := page[0].CreatedAt
	return page, &cursor, nil
}
