package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type chatStorage struct {
	pool *pgxpool.Pool
}

func newChatStorage(pool *pgxpool.Pool) *chatStorage {
	return &chatStorage{pool: pool}
}

// InsertExchange пишет обе реплики одним INSERT: вопрос без ответа в истории не остаётся.
func (s *chatStorage) InsertExchange(ctx context.Context, ownerUserID string, userContent, assistantContent string) (storage.ChatExchange, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	// timestamptz хранит микросекунды
	at := time.Now().UTC().Truncate(time.Microsecond)
	exchange := storage.ChatExchange{
		User:      storage.ChatMessage{ID: uuid.New(), OwnerUserID: ownerUserID, Role: "user", Content: userContent, CreatedAt: at},
		Assistant: storage.ChatMessage{ID: uuid.New(), OwnerUserID: ownerUserID, Role: "assistant", Content: assistantContent, CreatedAt: at.Add(time.Microsecond)},
	}

	const query = `
		INSERT INTO chat_messages (id, owner_user_id, role, content, created_at)
		VALUES ($1, $2, 'user', $3, $4), ($5, $2, 'assistant', $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		exchange.User.ID, ownerUserID, userContent, exchange.User.CreatedAt,
		exchange.Assistant.ID, assistantContent, exchange.Assistant.CreatedAt,
	)
	if err != nil {
		return storage.ChatExchange{}, fmt.Errorf("failed to insert chat exchange: %w", err)
	}
	return exchange, nil
}

func (s *chatStorage) ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if limit <= 0 {
		limit = 50
	}
	queryLimit := limit + 1

	const query = `
		SELECT id, owner_user_id, role, content, created_at
		FROM (
			SELECT id, owner_user_id, role, content, created_at
			FROM chat_messages
			WHERE owner_user_id = $1
			  AND ($2::timestamptz IS NULL OR created_at < $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) latest
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerUserID, before, queryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ChatMessage, error) {
		var msg storage.ChatMessage
		err := row.Scan(&msg.ID, &msg.OwnerUserID, &msg.Role, &msg.Content, &msg.CreatedAt)
		return msg, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan chat messages: %w", err)
	}

	if len(result) <= limit {
		return result, nil, nil
	}

	// лишняя строка — самая старая, она только сигнализирует о следующей странице
	result = result[1:]
	cursor := result[0].CreatedAt.UTC()
	return result, &cursor, nil
}
