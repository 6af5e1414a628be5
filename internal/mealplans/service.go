package mealplans

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxRangeDays ограничивает ListRange.
const MaxRangeDays = 92

const (
	lookupBatchSize   = 100
	lookupConcurrency = 4
)

var (
	ErrMealNotFound  = errors.New("meal not found")
	ErrEntryNotFound = errors.New("meal plan entry not found")
)

// Service handles meal-plan entries and the weekly grid.
type Service struct {
	entries  storage.MealPlansStorage
	meals    storage.MealsStorage
	items    storage.ItemsStorage
	startsOn time.Weekday
	now      func() time.Time
	logger   *log.Logger
}

// NewService creates a new meal plans service.
func NewService(entries storage.MealPlansStorage, meals storage.MealsStorage, items storage.ItemsStorage, startsOn time.Weekday) *Service {
	return &Service{
		entries:  entries,
		meals:    meals,
		items:    items,
		startsOn: startsOn,
		now:      time.Now,
		logger:   log.Default(),
	}
}

func (s *Service) StartsOn() time.Weekday {
	return s.startsOn
}

// Create adds an entry. Another entry in the same (date, meal_type) is allowed.
func (s *Service) Create(ctx context.Context, ownerUserID string, req CreateEntryRequest) (EntryDTO, error) {
	if err := req.Validate(); err != nil {
		return EntryDTO{}, fmt.Errorf("validation failed: %w", err)
	}

	meal, err := s.meals.GetMeal(ctx, ownerUserID, req.MealID)
	if errors.Is(err, storage.ErrNotFound) {
		return EntryDTO{}, ErrMealNotFound
	}
	if err != nil {
		return EntryDTO{}, fmt.Errorf("%w: get meal: %v", storage.ErrQueryFailed, err)
	}

	entry := storage.MealPlanEntry{
		OwnerUserID: ownerUserID,
		MealID:      meal.ID,
		Date:        req.Date,
		MealType:    req.MealType,
		Portions:    *req.Portions,
		Notes:       req.Notes,
	}
	if err := s.entries.CreateEntry(ctx, &entry); err != nil {
		return EntryDTO{}, fmt.Errorf("failed to create meal plan entry: %w", err)
	}

	return toDTO(entry, map[uuid.UUID]storage.Meal{meal.ID: *meal}), nil
}

// ListRange returns entries with from <= date <= to, ordered by date then creation.
func (s *Service) ListRange(ctx context.Context, ownerUserID string, fromStr, toStr string) ([]EntryDTO, error) {
	from, err := time.Parse(DateLayout, fromStr)
	if err != nil {
		return nil, fmt.Errorf("validation failed: from must be a date in YYYY-MM-DD format")
	}
	to, err := time.Parse(DateLayout, toStr)
	if err != nil {
		return nil, fmt.Errorf("validation failed: to must be a date in YYYY-MM-DD format")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("validation failed: to must not be before from")
	}
	if to.Sub(from) > (MaxRangeDays-1)*24*time.Hour {
		return nil, fmt.Errorf("validation failed: range must not exceed %d days", MaxRangeDays)
	}

	entries, err := s.entries.ListEntries(ctx, ownerUserID, fromStr, toStr)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", storage.ErrQueryFailed, err)
	}

	mealsByID, err := s.lookupMeals(ctx, ownerUserID, entries)
	if err != nil {
		return nil, err
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toDTO(e, mealsByID)
	}
	return dtos, nil
}

func (s *Service) Delete(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	err := s.entries.DeleteEntry(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}

// Week builds the grid for the week containing dateStr (today when empty).
func (s *Service) Week(ctx context.Context, ownerUserID string, dateStr string) (Week, error) {
	ref := s.now().UTC()
	if dateStr != "" {
		parsed, err := time.Parse(DateLayout, dateStr)
		if err != nil {
			return Week{}, fmt.Errorf("validation failed: date must be in YYYY-MM-DD format")
		}
		ref = parsed
	}

	start := WeekStart(ref, s.startsOn)
	end := start.AddDate(0, 0, DaysPerWeek-1)

	entries, err := s.entries.ListEntries(ctx, ownerUserID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return Week{}, fmt.Errorf("%w: list entries: %v", storage.ErrQueryFailed, err)
	}

	mealsByID, err := s.lookupMeals(ctx, ownerUserID, entries)
	if err != nil {
		return Week{}, err
	}

	var itemIDs []uuid.UUID
	for _, m := range mealsByID {
		for _, l := range m.Items {
			itemIDs = append(itemIDs, l.ItemID)
		}
	}
	found, err := fetchBatches(ctx, uniqueIDs(itemIDs), func(ctx context.Context, ids []uuid.UUID) ([]storage.Item, error) {
		return s.items.GetItemsByIDs(ctx, ownerUserID, ids)
	})
	if err != nil {
		return Week{}, fmt.Errorf("%w: load items: %v", storage.ErrQueryFailed, err)
	}
	itemsByID := make(map[uuid.UUID]storage.Item, len(found))
	for _, item := range found {
		itemsByID[item.ID] = item
	}

	return BuildWeek(ref, s.startsOn, entries, mealsByID, itemsByID, s.logger), nil
}

func (s *Service) lookupMeals(ctx context.Context, ownerUserID string, entries []storage.MealPlanEntry) (map[uuid.UUID]storage.Meal, error) {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.MealID
	}

	found, err := fetchBatches(ctx, uniqueIDs(ids), func(ctx context.Context, ids []uuid.UUID) ([]storage.Meal, error) {
		return s.meals.GetMealsByIDs(ctx, ownerUserID, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load meals: %v", storage.ErrQueryFailed, err)
	}

	out := make(map[uuid.UUID]storage.Meal, len(found))
	for _, m := range found {
		out[m.ID] = m
	}
	return out, nil
}

// fetchBatches splits ids into batches and loads them concurrently.
func fetchBatches[T any](ctx context.Context, ids []uuid.UUID, fetch func(context.Context, []uuid.UUID) ([]T, error)) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var batches [][]uuid.UUID
	for start := 0; start < len(ids); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(ids))
		batches = append(batches, ids[start:end])
	}

	results := make([][]T, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			found, err := fetch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func toDTO(e storage.MealPlanEntry, mealsByID map[uuid.UUID]storage.Meal) EntryDTO {
	dto := EntryDTO{
		ID:        e.ID,
		MealID:    e.MealID,
		Date:      e.Date,
		MealType:  nutrition.MealSlot(e.MealType),
		Portions:  e.Portions,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
	}
	if m, ok := mealsByID[e.MealID]; ok {
		dto.MealName = m.Name
	} else {
		dto.MissingMeal = true
	}
	return dto
}
