package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// порядок колонок совпадает с полями storage.Exercise (RowToStructByPos)
const exerciseColumns = `id, owner_user_id, name, kind, sets, reps, days_mask, pr_weight, pr_unit, note, created_at, updated_at`

type exercisesStorage struct {
	pool *pgxpool.Pool
}

func newExercisesStorage(pool *pgxpool.Pool) *exercisesStorage {
	return &exercisesStorage{pool: pool}
}

func (s *exercisesStorage) CreateExercise(ctx context.Context, e *storage.Exercise) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO exercises (id, owner_user_id, name, kind, sets, reps, days_mask, pr_weight, pr_unit, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		e.ID, e.OwnerUserID, e.Name, e.Kind, e.Sets, e.Reps, e.DaysMask, e.PRWeight, e.PRUnit, e.Note,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	return nil
}

func (s *exercisesStorage) UpdateExercise(ctx context.Context, e *storage.Exercise) error {
	query := `
		UPDATE exercises
		SET name = $3, kind = $4, sets = $5, reps = $6, days_mask = $7,
		    pr_weight = $8, pr_unit = $9, note = $10, updated_at = NOW()
		WHERE owner_user_id = $1 AND id = $2
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		e.OwnerUserID, e.ID, e.Name, e.Kind, e.Sets, e.Reps, e.DaysMask, e.PRWeight, e.PRUnit, e.Note,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return nil
}

func (s *exercisesStorage) ListExercises(ctx context.Context, ownerUserID string) ([]storage.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE owner_user_id = $1 ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	exercises, err := pgx.CollectRows(rows, pgx.RowToStructByPos[storage.Exercise])
	if err != nil {
		return nil, fmt.Errorf("failed to scan exercises: %w", err)
	}
	return exercises, nil
}

func (s *exercisesStorage) DeleteExercise(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	// отметки удаляются каскадом
	result, err := s.pool.Exec(ctx, `DELETE FROM exercises WHERE owner_user_id = $1 AND id = $2`, ownerUserID, id)
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *exercisesStorage) SetCompletion(ctx context.Context, ownerUserID string, exerciseID uuid.UUID, date string, done bool) error {
	// owned отличает чужое упражнение от повторной отметки: обе ветки не меняют строк
	query := `
		WITH owned AS (
			SELECT id FROM exercises WHERE owner_user_id = $1 AND id = $2
		), ins AS (
			INSERT INTO exercise_completions (exercise_id, owner_user_id, date)
			SELECT id, $1, $3::date FROM owned
			ON CONFLICT (exercise_id, date) DO NOTHING
		)
		SELECT count(*) FROM owned
	`
	if !done {
		query = `
			WITH owned AS (
				SELECT id FROM exercises WHERE owner_user_id = $1 AND id = $2
			), del AS (
				DELETE FROM exercise_completions c
				USING owned
				WHERE c.exercise_id = owned.id AND c.date = $3::date
			)
			SELECT count(*) FROM owned
		`
	}

	var owned int
	if err := s.pool.QueryRow(ctx, query, ownerUserID, exerciseID, date).Scan(&owned); err != nil {
		return fmt.Errorf("failed to set exercise completion: %w", err)
	}
	if owned == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *exercisesStorage) ListCompletions(ctx context.Context, ownerUserID string, from, to string) ([]storage.ExerciseCompletion, error) {
	query := `
		SELECT exercise_id, owner_user_id, to_char(date, 'YYYY-MM-DD'), created_at
		FROM exercise_completions
		WHERE owner_user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, exercise_id
	`

	rows, err := s.pool.Query(ctx, query, ownerUserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercise completions: %w", err)
	}
	completions, err := pgx.CollectRows(rows, pgx.RowToStructByPos[storage.ExerciseCompletion])
	if err != nil {
		return nil, fmt.Errorf("failed to scan exercise completions: %w", err)
	}
	return completions, nil
}
