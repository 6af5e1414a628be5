package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/nutrition-planner/internal/ai"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/storage/memory"
	"github.com/fdg312/nutrition-planner/internal/userctx"
	"github.com/google/uuid"
)

type mockWeekProvider struct {
	week mealplans.Week
	err  error
	date string
}

func (m *mockWeekProvider) Week(ctx context.Context, ownerUserID string, dateStr string) (mealplans.Week, error) {
	m.date = dateStr
	return m.week, m.err
}

type recordingProvider struct {
	last ai.ReplyRequest
	err  error
}

func (p *recordingProvider) Reply(ctx context.Context, req ai.ReplyRequest) (ai.ReplyResponse, error) {
	p.last = req
	if p.err != nil {
		return ai.ReplyResponse{}, p.err
	}
	return ai.ReplyResponse{AssistantText: "ok"}, nil
}

func todayWeek() mealplans.Week {
	totals := nutrition.Totals{Calories: 300}
	return mealplans.Week{
		Start: "2024-03-10",
		Days: []mealplans.Day{{
			Date: "2024-03-11",
			Cells: []mealplans.Cell{
				{Date: "2024-03-11", Slot: nutrition.Breakfast, Entry: &mealplans.CellEntry{ID: uuid.New(), MealName: "Porridge", Portions: 1}, Totals: &totals},
				{Date: "2024-03-11", Slot: nutrition.Lunch},
			},
			Totals: totals,
		}},
	}
}

func setupChatHandler(t *testing.T, plans weekProvider, provider ai.Provider) (*Handler, storage.ChatStorage) {
	t.Helper()

	chatStorage := memory.New().GetChatStorage()
	service := NewService(chatStorage, plans, provider)
	service.now = func() time.Time { return time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC) }
	return NewHandler(service), chatStorage
}

func sendMessage(handler *Handler, userID, content string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(SendMessageRequest{Content: content})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", bytes.NewReader(data))
	req = req.WithContext(userctx.WithUserID(context.Background(), userID))
	w := httptest.NewRecorder()
	handler.HandleSendMessage(w, req)
	return w
}

func TestSendMessageStoresUserAndAssistantMessages(t *testing.T) {
	handler, chatStorage := setupChatHandler(t, &mockWeekProvider{week: todayWeek()}, ai.NewMockProvider())

	w := sendMessage(handler, "userA", "Что у меня сегодня?")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var resp SendMessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.AssistantMessage.Role != "assistant" || resp.UserMessage.Role != "user" {
		t.Fatalf("unexpected roles: %+v", resp)
	}
	if !strings.Contains(resp.AssistantMessage.Content, "300") {
		t.Errorf("expected day calories in reply, got %q", resp.AssistantMessage.Content)
	}

	rows, _, err := chatStorage.ListMessages(context.Background(), "userA", 50, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Role != "user" || rows[1].Role != "assistant" {
		t.Fatalf("expected [user, assistant], got %+v", rows)
	}

	other, _, _ := chatStorage.ListMessages(context.Background(), "userB", 50, nil)
	if len(other) != 0 {
		t.Fatalf("expected no messages for another user, got %d", len(other))
	}
}

func TestSendMessageSnapshotFromTodayColumn(t *testing.T) {
	plans := &mockWeekProvider{week: todayWeek()}
	provider := &recordingProvider{}
	handler, _ := setupChatHandler(t, plans, provider)

	if w := sendMessage(handler, "userA", "hi"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if plans.date != "2024-03-11" {
		t.Errorf("expected week lookup for today, got %q", plans.date)
	}
	snap := provider.last.Snapshot
	if snap.Date != "2024-03-11" || len(snap.Slots) != 2 || snap.Totals.Calories != 300 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Slots[0].MealName != "Porridge" || snap.Slots[0].Calories == nil || snap.Slots[1].MealName != "" {
		t.Errorf("unexpected slots: %+v", snap.Slots)
	}
	if len(provider.last.Messages) != 1 || provider.last.Messages[0].Content != "hi" {
		t.Errorf("unexpected history: %+v", provider.last.Messages)
	}
}

func TestSendMessagePlanFailureDegrades(t *testing.T) {
	provider := &recordingProvider{}
	handler, _ := setupChatHandler(t, &mockWeekProvider{err: errors.New("db down")}, provider)

	if w := sendMessage(handler, "userA", "hi"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if provider.last.Snapshot.Date != "2024-03-11" || len(provider.last.Snapshot.Slots) != 0 {
		t.Errorf("expected empty snapshot, got %+v", provider.last.Snapshot)
	}
}

func TestSendMessageErrors(t *testing.T) {
	handler, _ := setupChatHandler(t, nil, &recordingProvider{err: errors.New("boom")})

	if w := sendMessage(handler, "userA", "   "); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", w.Code)
	}
	if w := sendMessage(handler, "userA", "hello"); w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 when provider fails, got %d", w.Code)
	}
}

func TestSendMessageProviderFailureStoresNothing(t *testing.T) {
	provider := &recordingProvider{err: errors.New("boom")}
	handler, chatStorage := setupChatHandler(t, nil, provider)

	if w := sendMessage(handler, "userA", "hello"); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	rows, _, err := chatStorage.ListMessages(context.Background(), "userA", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no stored messages after provider failure, got %d", len(rows))
	}

	provider.err = nil
	if w := sendMessage(handler, "userA", "hello again"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	msgs := provider.last.Messages
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "hello again" {
		t.Errorf("expected only the new user turn, got %+v", msgs)
	}
	rows, _, _ = chatStorage.ListMessages(context.Background(), "userA", 10, nil)
	if len(rows) != 2 || rows[0].Role != "user" || rows[1].Role != "assistant" {
		t.Errorf("expected [user, assistant], got %+v", rows)
	}
}

func TestListMessagesReturnsHistory(t *testing.T) {
	handler, _ := setupChatHandler(t, nil, ai.NewMockProvider())

	for _, content := range []string{"first", "second"} {
		if w := sendMessage(handler, "userA", content); w.Code != http.StatusOK {
			t.Fatalf("send message failed status=%d", w.Code)
		}
	}

	listReq := httptest.NewRequest(http.MethodGet, "/v1/chat/messages?limit=3", nil)
	listReq = listReq.WithContext(userctx.WithUserID(context.Background(), "userA"))
	listW := httptest.NewRecorder()
	handler.HandleListMessages(listW, listReq)

	if listW.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", listW.Code, listW.Body.String())
	}

	var resp ListMessagesResponse
	if err := json.NewDecoder(listW.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list response failed: %v", err)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(resp.Messages))
	}
	if resp.NextCursor == nil {
		t.Fatal("expected next cursor for the older page")
	}

	badReq := httptest.NewRequest(http.MethodGet, "/v1/chat/messages?before=yesterday", nil)
	badReq = badReq.WithContext(userctx.WithUserID(context.Background(), "userA"))
	badW := httptest.NewRecorder()
	handler.HandleListMessages(badW, badReq)
	if badW.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad cursor, got %d", badW.Code)
	}
}
