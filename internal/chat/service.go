package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/ai"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/storage"
)

var ErrAIFailed = errors.New("ai failed")

const historySize = 20

type weekProvider interface {
	Week(ctx context.Context, ownerUserID string, dateStr string) (mealplans.Week, error)
}

type Service struct {
	chatStorage storage.ChatStorage
	plans       weekProvider
	provider    ai.Provider
	now         func() time.Time
}

func NewService(chatStorage storage.ChatStorage, plans weekProvider, provider ai.Provider) *Service {
	return &Service{
		chatStorage: chatStorage,
		plans:       plans,
		provider:    provider,
		now:         time.Now,
	}
}

func (s *Service) ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) (*ListMessagesResponse, error) {
	limit = normalizeLimit(limit)
	rows, nextCursorTime, err := s.chatStorage.ListMessages(ctx, ownerUserID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", storage.ErrQueryFailed, err)
	}

	messages := make([]ChatMessageDTO, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageToDTO(row))
	}

	var nextCursor *string
	if nextCursorTime != nil {
		cursor := nextCursorTime.UTC().Format(time.RFC3339Nano)
		nextCursor = &cursor
	}

	return &ListMessagesResponse{
		Messages:   messages,
		NextCursor: nextCursor,
	}, nil
}

func (s *Service) SendMessage(ctx context.Context, ownerUserID string, req SendMessageRequest) (*SendMessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	historyRows, _, err := s.chatStorage.ListMessages(ctx, ownerUserID, historySize-1, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", storage.ErrQueryFailed, err)
	}

	aiMessages := make([]ai.ChatMessage, 0, len(historyRows)+1)
	for _, msg := range historyRows {
		aiMessages = append(aiMessages, ai.ChatMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	aiMessages = append(aiMessages, ai.ChatMessage{Role: "user", Content: req.Content, CreatedAt: s.now()})

	// вопрос сохраняется только вместе с ответом
	reply, err := s.provider.Reply(ctx, ai.ReplyRequest{
		UserID:   ownerUserID,
		Messages: aiMessages,
		Snapshot: s.buildSnapshot(ctx, ownerUserID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	assistantText := strings.TrimSpace(reply.AssistantText)
	if assistantText == "" {
		assistantText = "Я не смог сформировать ответ. Попробуйте переформулировать вопрос."
	}

	exchange, err := s.chatStorage.InsertExchange(ctx, ownerUserID, req.Content, assistantText)
	if err != nil {
		return nil, fmt.Errorf("failed to store exchange: %w", err)
	}

	return &SendMessageResponse{
		UserMessage:      messageToDTO(exchange.User),
		AssistantMessage: messageToDTO(exchange.Assistant),
	}, nil
}

// buildSnapshot берёт сегодняшний столбец недельной сетки. Ошибка плана
// не ломает чат: ассистент получает пустой день.
func (s *Service) buildSnapshot(ctx context.Context, ownerUserID string) ai.DaySnapshot {
	date := s.now().UTC().Format(mealplans.DateLayout)
	snapshot := ai.DaySnapshot{Date: date}

	if s.plans == nil {
		return snapshot
	}

	week, err := s.plans.Week(ctx, ownerUserID, date)
	if err != nil {
		log.Printf("WARN chat: snapshot unavailable user=%s date=%s: %v", ownerUserID, date, err)
		return snapshot
	}

	day, ok := week.Day(date)
	if !ok {
		return snapshot
	}

	snapshot.Totals = day.Totals
	for _, cell := range day.Cells {
		slot := ai.SlotSnapshot{Slot: string(cell.Slot), Warning: cell.Warning}
		if cell.Entry != nil {
			slot.MealName = cell.Entry.MealName
			slot.Portions = cell.Entry.Portions
			if cell.Entry.MissingMeal {
				slot.MealName = "(deleted meal)"
			}
		}
		if cell.Totals != nil {
			kcal := cell.Totals.Calories
			slot.Calories = &kcal
		}
		snapshot.Slots = append(snapshot.Slots, slot)
	}
	return snapshot
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
