package ai

import (
	"context"
	"fmt"
	"strings"
)

type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	_ = ctx

	planned := 0
	var empty []string
	for _, slot := range req.Snapshot.Slots {
		if slot.MealName != "" {
			planned++
		} else {
			empty = append(empty, slot.Slot)
		}
	}

	text := fmt.Sprintf(
		"Mock-ответ: на %s запланировано приёмов пищи: %d, всего %.0f ккал, белок %.0f г.",
		req.Snapshot.Date,
		planned,
		req.Snapshot.Totals.Calories,
		req.Snapshot.Totals.Protein,
	)
	if req.Snapshot.Totals.Partial() {
		text += " Итог неполный: у части продуктов не заданы " + strings.Join(req.Snapshot.Totals.Missing, ", ") + "."
	}

	lowered := strings.ToLower(lastUserMessage(req.Messages))
	if len(empty) > 0 && (strings.Contains(lowered, "что") || strings.Contains(lowered, "what") || strings.Contains(lowered, "план")) {
		text += " Свободные слоты: " + strings.Join(empty, ", ") + "."
	}

	return ReplyResponse{AssistantText: text}, nil
}
