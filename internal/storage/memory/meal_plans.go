package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

type mealPlansStorage struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]storage.MealPlanEntry
	// index for owner lookups
	byOwner map[string][]uuid.UUID
}

func newMealPlansStorage() *mealPlansStorage {
	return &mealPlansStorage{
		entries: make(map[uuid.UUID]storage.MealPlanEntry),
		byOwner: make(map[string][]uuid.UUID),
	}
}

func (s *mealPlansStorage) CreateEntry(ctx context.Context, entry *storage.MealPlanEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	s.entries[entry.ID] = *entry
	s.byOwner[entry.OwnerUserID] = append(s.byOwner[entry.OwnerUserID], entry.ID)
	return nil
}

func (s *mealPlansStorage) ListEntries(ctx context.Context, ownerUserID string, from, to string) ([]storage.MealPlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.MealPlanEntry, 0)
	for _, id := range s.byOwner[ownerUserID] {
		e := s.entries[id]
		// YYYY-MM-DD сравнивается лексикографически
		if e.Date >= from && e.Date <= to {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return result, nil
}

func (s *mealPlansStorage) DeleteEntry(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.OwnerUserID != ownerUserID {
		return storage.ErrNotFound
	}
	delete(s.entries, id)

	ids := s.byOwner[ownerUserID]
	for i, existing := range ids {
		if existing == id {
			s.byOwner[ownerUserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
