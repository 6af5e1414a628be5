package meals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

var ErrMealNotFound = errors.New("meal not found")

// Service handles meal composition.
type Service struct {
	meals        storage.MealsStorage
	items        storage.ItemsStorage
	defaultLimit int
	maxLimit     int
}

// NewService creates a new meals service.
func NewService(meals storage.MealsStorage, itemsStorage storage.ItemsStorage, defaultLimit, maxLimit int) *Service {
	if maxLimit <= 0 {
		maxLimit = items.MaxSearchLimit
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = items.DefaultSearchLimit
	}
	return &Service{meals: meals, items: itemsStorage, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Create validates the composition, rejects lines pointing at unknown items
// and stores the meal in a single insert.
func (s *Service) Create(ctx context.Context, ownerUserID string, req CreateMealRequest) (MealDTO, error) {
	if err := req.Validate(); err != nil {
		return MealDTO{}, fmt.Errorf("validation failed: %w", err)
	}
	lines := mergeLines(req.Items)

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	found, err := s.loadItems(ctx, ownerUserID, ids)
	if err != nil {
		return MealDTO{}, err
	}

	var dangling []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok && !seen[id] {
			dangling = append(dangling, id)
		}
		seen[id] = true
	}
	if len(dangling) > 0 {
		return MealDTO{}, &nutrition.DanglingReferenceError{ItemIDs: dangling}
	}

	meal := storage.Meal{
		OwnerUserID: ownerUserID,
		Name:        req.Name,
		Description: req.Description,
		Items:       make([]storage.MealItem, len(lines)),
	}
	for i, l := range lines {
		meal.Items[i] = storage.MealItem{ItemID: l.ItemID, Quantity: l.Quantity, Unit: l.Unit}
	}

	if err := s.meals.CreateMeal(ctx, &meal); err != nil {
		return MealDTO{}, fmt.Errorf("failed to create meal: %w", err)
	}

	return toDTO(meal, found), nil
}

func (s *Service) Get(ctx context.Context, ownerUserID string, id uuid.UUID) (MealDTO, error) {
	meal, err := s.getMeal(ctx, ownerUserID, id)
	if err != nil {
		return MealDTO{}, err
	}

	found, err := s.loadItems(ctx, ownerUserID, itemIDs(*meal))
	if err != nil {
		return MealDTO{}, err
	}
	return toDTO(*meal, found), nil
}

// Search has the same contract as the item search.
func (s *Service) Search(ctx context.Context, ownerUserID string, query string, limit int) ([]MealDTO, int, error) {
	limit = items.ClampLimit(limit, s.defaultLimit, s.maxLimit)

	found, err := s.meals.SearchMeals(ctx, ownerUserID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, limit, fmt.Errorf("%w: search meals: %v", storage.ErrQueryFailed, err)
	}

	var ids []uuid.UUID
	for _, m := range found {
		ids = append(ids, itemIDs(m)...)
	}
	resolved, err := s.loadItems(ctx, ownerUserID, ids)
	if err != nil {
		return nil, limit, err
	}

	dtos := make([]MealDTO, len(found))
	for i, m := range found {
		dtos[i] = toDTO(m, resolved)
	}
	return dtos, limit, nil
}

// Nutrients aggregates a meal for the given number of portions.
func (s *Service) Nutrients(ctx context.Context, ownerUserID string, id uuid.UUID, portions float64) (MealNutrientsResponse, error) {
	if portions <= 0 {
		return MealNutrientsResponse{}, nutrition.ErrInvalidPortions
	}

	meal, err := s.getMeal(ctx, ownerUserID, id)
	if err != nil {
		return MealNutrientsResponse{}, err
	}
	found, err := s.loadItems(ctx, ownerUserID, itemIDs(*meal))
	if err != nil {
		return MealNutrientsResponse{}, err
	}

	totals, err := Aggregate(*meal, found, portions)
	if err != nil {
		return MealNutrientsResponse{}, err
	}

	return MealNutrientsResponse{
		MealID:   meal.ID,
		Portions: portions,
		Totals:   totals.Rounded(),
		Partial:  totals.Partial(),
	}, nil
}

// Aggregate runs the nutrient aggregation over a stored meal.
func Aggregate(meal storage.Meal, found map[uuid.UUID]storage.Item, portions float64) (nutrition.Totals, error) {
	lines := make([]nutrition.Line, len(meal.Items))
	for i, l := range meal.Items {
		lines[i] = nutrition.Line{ItemID: l.ItemID, Quantity: l.Quantity, Unit: nutrition.Unit(l.Unit)}
	}

	bases := make(map[uuid.UUID]nutrition.ItemBasis, len(found))
	for id, item := range found {
		bases[id] = items.Basis(item)
	}
	return nutrition.Aggregate(lines, bases, portions)
}

func (s *Service) getMeal(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Meal, error) {
	meal, err := s.meals.GetMeal(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get meal: %v", storage.ErrQueryFailed, err)
	}
	return meal, nil
}

func (s *Service) loadItems(ctx context.Context, ownerUserID string, ids []uuid.UUID) (map[uuid.UUID]storage.Item, error) {
	out := make(map[uuid.UUID]storage.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := s.items.GetItemsByIDs(ctx, ownerUserID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load items: %v", storage.ErrQueryFailed, err)
	}
	for _, item := range found {
		out[item.ID] = item
	}
	return out, nil
}

func itemIDs(meal storage.Meal) []uuid.UUID {
	ids := make([]uuid.UUID, len(meal.Items))
	for i, l := range meal.Items {
		ids[i] = l.ItemID
	}
	return ids
}

func toDTO(meal storage.Meal, found map[uuid.UUID]storage.Item) MealDTO {
	lines := make([]MealLineDTO, len(meal.Items))
	for i, l := range meal.Items {
		line := MealLineDTO{
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
			Unit:     nutrition.Unit(l.Unit),
		}
		if item, ok := found[l.ItemID]; ok {
			line.ItemName = item.Name
		} else {
			line.Missing = true
		}
		lines[i] = line
	}

	return MealDTO{
		ID:          meal.ID,
		Name:        meal.Name,
		Description: meal.Description,
		Items:       lines,
		CreatedAt:   meal.CreatedAt,
	}
}
