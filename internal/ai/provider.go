package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
)

type Provider interface {
	Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error)
}

type ChatMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// SlotSnapshot — одна ячейка дня из недельной сетки.
type SlotSnapshot struct {
	Slot     string
	MealName string
	Portions float64
	Calories *float64
	Warning  string
}

// DaySnapshot — план питания на день, который видит ассистент.
type DaySnapshot struct {
	Date   string
	Slots  []SlotSnapshot
	Totals nutrition.Totals
}

type ReplyRequest struct {
	UserID   string
	Messages []ChatMessage
	Snapshot DaySnapshot
}

type ReplyResponse struct {
	AssistantText string
}

// describe форматирует снимок одной строкой для промпта.
func (s DaySnapshot) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "date=%s", s.Date)
	for _, slot := range s.Slots {
		if slot.MealName == "" {
			fmt.Fprintf(&b, "; %s=empty", slot.Slot)
			continue
		}
		fmt.Fprintf(&b, "; %s=%s x%g", slot.Slot, slot.MealName, slot.Portions)
		if slot.Calories != nil {
			fmt.Fprintf(&b, " (%.0f kcal)", *slot.Calories)
		}
		if slot.Warning != "" {
			fmt.Fprintf(&b, " [%s]", slot.Warning)
		}
	}
	fmt.Fprintf(&b, "; total kcal=%.0f protein_g=%.0f carbs_g=%.0f fat_g=%.0f fiber_g=%.0f",
		s.Totals.Calories, s.Totals.Protein, s.Totals.Carbs, s.Totals.Fat, s.Totals.Fiber)
	if s.Totals.Partial() {
		fmt.Fprintf(&b, "; unknown=%s", strings.Join(s.Totals.Missing, ","))
	}
	return b.String()
}

func systemPrompt(snapshot DaySnapshot) string {
	return "Ты помощник планировщика питания. Не ставь диагнозы и не заменяй врача или диетолога. " +
		"Отвечай кратко и опирайся на план пользователя на сегодня. " +
		"Если значения нутриентов помечены как unknown, скажи, что итог неполный. " +
		"Снимок дня: " + snapshot.describe()
}

func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
