package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

type mealsStorage struct {
	mu    sync.RWMutex
	meals map[uuid.UUID]storage.Meal
}

func newMealsStorage() *mealsStorage {
	return &mealsStorage{meals: make(map[uuid.UUID]storage.Meal)}
}

func copyMeal(m storage.Meal) storage.Meal {
	m.Items = append([]storage.MealItem(nil), m.Items...)
	return m
}

func (s *mealsStorage) CreateMeal(ctx context.Context, meal *storage.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meal.ID == uuid.Nil {
		meal.ID = uuid.New()
	}
	meal.CreatedAt = time.Now().UTC()
	s.meals[meal.ID] = copyMeal(*meal)
	return nil
}

func (s *mealsStorage) GetMeal(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meal, ok := s.meals[id]
	if !ok || meal.OwnerUserID != ownerUserID {
		return nil, storage.ErrNotFound
	}
	out := copyMeal(meal)
	return &out, nil
}

func (s *mealsStorage) SearchMeals(ctx context.Context, ownerUserID string, query string, limit int) ([]storage.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Meal, 0)
	for _, meal := range s.meals {
		if meal.OwnerUserID == ownerUserID && matchesName(meal.Name, query) {
			result = append(result, copyMeal(meal))
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

func (s *mealsStorage) GetMealsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]storage.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Meal, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if meal, ok := s.meals[id]; ok && meal.OwnerUserID == ownerUserID {
			result = append(result, copyMeal(meal))
		}
	}
	return result, nil
}
