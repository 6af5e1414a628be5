package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mealPlansStorage struct {
	pool *pgxpool.Pool
}

func newMealPlansStorage(pool *pgxpool.Pool) *mealPlansStorage {
	return &mealPlansStorage{pool: pool}
}

func (s *mealPlansStorage) CreateEntry(ctx context.Context, entry *storage.MealPlanEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	// date хранится как DATE, наружу отдаётся строкой YYYY-MM-DD
	query := `
		INSERT INTO meal_plans (id, owner_user_id, meal_id, date, meal_type, portions, notes, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, NOW())
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		entry.ID,
		entry.OwnerUserID,
		entry.MealID,
		entry.Date,
		entry.MealType,
		entry.Portions,
		entry.Notes,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create meal plan entry: %w", err)
	}
	return nil
}

func (s *mealPlansStorage) ListEntries(ctx context.Context, ownerUserID string, from, to string) ([]storage.MealPlanEntry, error) {
	query := `
		SELECT id, owner_user_id, meal_id, to_char(date, 'YYYY-MM-DD'), meal_type, portions, notes, created_at
		FROM meal_plans
		WHERE owner_user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, created_at, id
	`

	rows, err := s.pool.Query(ctx, query, ownerUserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plan entries: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.MealPlanEntry, 0)
	for rows.Next() {
		var e storage.MealPlanEntry
		err := rows.Scan(
			&e.ID,
			&e.OwnerUserID,
			&e.MealID,
			&e.Date,
			&e.MealType,
			&e.Portions,
			&e.Notes,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal plan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating meal plan entries: %w", rows.Err())
	}

	return entries, nil
}

func (s *mealPlansStorage) DeleteEntry(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM meal_plans WHERE owner_user_id = $1 AND id = $2`, ownerUserID, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal plan entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
