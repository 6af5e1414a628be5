package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

type itemsStorage struct {
	mu    sync.RWMutex
	items map[uuid.UUID]storage.Item
}

func newItemsStorage() *itemsStorage {
	return &itemsStorage{items: make(map[uuid.UUID]storage.Item)}
}

func (s *itemsStorage) CreateItem(ctx context.Context, item *storage.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now().UTC()
	s.items[item.ID] = *item
	return nil
}

func (s *itemsStorage) GetItem(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || item.OwnerUserID != ownerUserID {
		return nil, storage.ErrNotFound
	}
	return &item, nil
}

func (s *itemsStorage) SearchItems(ctx context.Context, ownerUserID string, query string, limit int) ([]storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Item, 0)
	for _, item := range s.items {
		if item.OwnerUserID == ownerUserID && matchesName(item.Name, query) {
			result = append(result, item)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return lessByName(result[i].Name, result[j].Name, result[i].ID, result[j].ID)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *itemsStorage) GetItemsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Item, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if item, ok := s.items[id]; ok && item.OwnerUserID == ownerUserID {
			result = append(result, item)
		}
	}
	return result, nil
}
