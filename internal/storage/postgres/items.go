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

type itemsStorage struct {
	pool *pgxpool.Pool
}

func newItemsStorage(pool *pgxpool.Pool) *itemsStorage {
	return &itemsStorage{pool: pool}
}

const itemColumns = `id, owner_user_id, name, description, calories, protein, carbs, fat, fiber, default_unit, created_at`

func scanItem(row pgx.Row, item *storage.Item) error {
	return row.Scan(
		&item.ID,
		&item.OwnerUserID,
		&item.Name,
		&item.Description,
		&item.Calories,
		&item.Protein,
		&item.Carbs,
		&item.Fat,
		&item.Fiber,
		&item.DefaultUnit,
		&item.CreatedAt,
	)
}

func (s *itemsStorage) CreateItem(ctx context.Context, item *storage.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	query := `
		INSERT INTO items (id, owner_user_id, name, description, calories, protein, carbs, fat, fiber, default_unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		item.ID,
		item.OwnerUserID,
		item.Name,
		item.Description,
		item.Calories,
		item.Protein,
		item.Carbs,
		item.Fat,
		item.Fiber,
		item.DefaultUnit,
	).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *itemsStorage) GetItem(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_user_id = $1 AND id = $2`

	var item storage.Item
	err := scanItem(s.pool.QueryRow(ctx, query, ownerUserID, id), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (s *itemsStorage) SearchItems(ctx context.Context, ownerUserID string, query string, limit int) ([]storage.Item, error) {
	sql := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE owner_user_id = $1 AND name ILIKE $2
		ORDER BY lower(name), id
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, sql, ownerUserID, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return collectItems(rows)
}

func (s *itemsStorage) GetItemsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]storage.Item, error) {
	if len(ids) == 0 {
		return []storage.Item{}, nil
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_user_id = $1 AND id = ANY($2)`
	rows, err := s.pool.Query(ctx, query, ownerUserID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]storage.Item, error) {
	defer rows.Close()

	items := make([]storage.Item, 0)
	for rows.Next() {
		var item storage.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}
