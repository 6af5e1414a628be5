package memory

import (
	"strings"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

// MemoryStorage — in-memory реализация всех хранилищ, для локального режима и тестов
type MemoryStorage struct {
	users     *usersStorage
	items     *itemsStorage
	meals     *mealsStorage
	mealPlans *mealPlansStorage
	exercises *exercisesStorage
	chat      *chatStorage
	reports   *ReportsMemoryStorage
}

// New создаёт пустой MemoryStorage
func New() *MemoryStorage {
	return &MemoryStorage{
		users:     newUsersStorage(),
		items:     newItemsStorage(),
		meals:     newMealsStorage(),
		mealPlans: newMealPlansStorage(),
		exercises: newExercisesStorage(),
		chat:      newChatStorage(),
		reports:   NewReportsMemoryStorage(),
	}
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) GetUsersStorage() storage.UsersStorage {
	return m.users
}

func (m *MemoryStorage) GetItemsStorage() storage.ItemsStorage {
	return m.items
}

func (m *MemoryStorage) GetMealsStorage() storage.MealsStorage {
	return m.meals
}

func (m *MemoryStorage) GetMealPlansStorage() storage.MealPlansStorage {
	return m.mealPlans
}

func (m *MemoryStorage) GetExercisesStorage() storage.ExercisesStorage {
	return m.exercises
}

func (m *MemoryStorage) GetChatStorage() storage.ChatStorage {
	return m.chat
}

func (m *MemoryStorage) GetReportsStorage() storage.ReportsStorage {
	return m.reports
}

// matchesName повторяет семантику ILIKE '%q%'.
func matchesName(name, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}

// lessByName сортирует как ORDER BY lower(name), id.
func lessByName(aName, bName string, aID, bID uuid.UUID) bool {
	al, bl := strings.ToLower(aName), strings.ToLower(bName)
	if al != bl {
		return al < bl
	}
	return aID.String() < bID.String()
}
