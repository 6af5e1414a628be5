package postgres

import (
	"context"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage — Postgres реализация всех хранилищ поверх одного пула
type PostgresStorage struct {
	pool      *pgxpool.Pool
	users     *usersStorage
	items     *itemsStorage
	meals     *mealsStorage
	mealPlans *mealPlansStorage
	exercises *exercisesStorage
	chat      *chatStorage
	reports   *PostgresReportsStorage
}

// New открывает пул и проверяет соединение
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		pool:      pool,
		users:     newUsersStorage(pool),
		items:     newItemsStorage(pool),
		meals:     newMealsStorage(pool),
		mealPlans: newMealPlansStorage(pool),
		exercises: newExercisesStorage(pool),
		chat:      newChatStorage(pool),
		reports:   NewPostgresReportsStorage(pool),
	}, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStorage) GetUsersStorage() storage.UsersStorage {
	return p.users
}

func (p *PostgresStorage) GetItemsStorage() storage.ItemsStorage {
	return p.items
}

func (p *PostgresStorage) GetMealsStorage() storage.MealsStorage {
	return p.meals
}

func (p *PostgresStorage) GetMealPlansStorage() storage.MealPlansStorage {
	return p.mealPlans
}

func (p *PostgresStorage) GetExercisesStorage() storage.ExercisesStorage {
	return p.exercises
}

func (p *PostgresStorage) GetChatStorage() storage.ChatStorage {
	return p.chat
}

func (p *PostgresStorage) GetReportsStorage() storage.ReportsStorage {
	return p.reports
}

// likePattern экранирует спецсимволы LIKE и оборачивает запрос в %...%.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(query)) + "%"
}
