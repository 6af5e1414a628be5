package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mealsStorage struct {
	pool *pgxpool.Pool
}

func newMealsStorage(pool *pgxpool.Pool) *mealsStorage {
	return &mealsStorage{pool: pool}
}

const mealColumns = `id, owner_user_id, name, description, items, created_at`

func scanMeal(row pgx.Row, meal *storage.Meal) error {
	var rawItems []byte
	if err := row.Scan(
		&meal.ID,
		&meal.OwnerUserID,
		&meal.Name,
		&meal.Description,
		&rawItems,
		&meal.CreatedAt,
	); err != nil {
		return err
	}

	meal.Items = []storage.MealItem{}
	if len(rawItems) > 0 {
		if err := json.Unmarshal(rawItems, &meal.Items); err != nil {
			return fmt.Errorf("failed to decode meal items: %w", err)
		}
	}
	return nil
}

// CreateMeal сохраняет блюдо одной вставкой, состав пишется в jsonb
func (s *mealsStorage) CreateMeal(ctx context.Context, meal *storage.Meal) error {
	if meal.ID == uuid.Nil {
		meal.ID = uuid.New()
	}

	items := meal.Items
	if items == nil {
		items = []storage.MealItem{}
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode meal items: %w", err)
	}

	query := `
		INSERT INTO meals (id, owner_user_id, name, description, items, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	err = s.pool.QueryRow(ctx, query,
		meal.ID,
		meal.OwnerUserID,
		meal.Name,
		meal.Description,
		rawItems,
	).Scan(&meal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create meal: %w", err)
	}
	return nil
}

func (s *mealsStorage) GetMeal(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Meal, error) {
	query := `SELECT ` + mealColumns + ` FROM meals WHERE owner_user_id = $1 AND id = $2`

	var meal storage.Meal
	err := scanMeal(s.pool.QueryRow(ctx, query, ownerUserID, id), &meal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	return &meal, nil
}

func (s *mealsStorage) SearchMeals(ctx context.Context, ownerUserID string, query string, limit int) ([]storage.Meal, error) {
	sql := `
		SELECT ` + mealColumns + `
		FROM meals
		WHERE owner_user_id = $1 AND name ILIKE $2
		ORDER BY lower(name), id
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, sql, ownerUserID, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search meals: %w", err)
	}
	return collectMeals(rows)
}

func (s *mealsStorage) GetMealsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]storage.Meal, error) {
	if len(ids) == 0 {
		return []storage.Meal{}, nil
	}

	query := `SELECT ` + mealColumns + ` FROM meals WHERE owner_user_id = $1 AND id = ANY($2)`
	rows, err := s.pool.Query(ctx, query, ownerUserID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get meals: %w", err)
	}
	return collectMeals(rows)
}

func collectMeals(rows pgx.Rows) ([]storage.Meal, error) {
	defer rows.Close()

	meals := make([]storage.Meal, 0)
	for rows.Next() {
		var meal storage.Meal
		if err := scanMeal(rows, &meal); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}
	return meals, nil
}
