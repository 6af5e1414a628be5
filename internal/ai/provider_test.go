package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/google/generative-ai-go/genai"
)

func sampleSnapshot() DaySnapshot {
	kcal := 450.0
	return DaySnapshot{
		Date: "2024-03-11",
		Slots: []SlotSnapshot{
			{Slot: "breakfast", MealName: "Porridge", Portions: 2, Calories: &kcal},
			{Slot: "lunch"},
			{Slot: "dinner", MealName: "Soup", Portions: 1, Warning: "dangling_reference"},
			{Slot: "snack"},
		},
		Totals: nutrition.Totals{Calories: 450, Protein: 12, Missing: []string{"fiber"}},
	}
}

func TestDescribeSnapshot(t *testing.T) {
	got := sampleSnapshot().describe()

	for _, want := range []string{
		"date=2024-03-11",
		"breakfast=Porridge x2 (450 kcal)",
		"lunch=empty",
		"dinner=Soup x1 [dangling_reference]",
		"total kcal=450",
		"unknown=fiber",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestMockProviderReply(t *testing.T) {
	resp, err := NewMockProvider().Reply(context.Background(), ReplyRequest{
		Messages: []ChatMessage{{Role: "user", Content: "What should I plan?"}},
		Snapshot: sampleSnapshot(),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"2024-03-11", "450", "fiber", "lunch, snack"} {
		if !strings.Contains(resp.AssistantText, want) {
			t.Errorf("expected %q in %q", want, resp.AssistantText)
		}
	}
}

func TestOpenAIProviderReply(t *testing.T) {
	var got chatCompletionsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Add a vegetable.  "}}]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-test", AIMaxOutputTokens: 100})
	provider.endpoint = server.URL

	resp, err := provider.Reply(context.Background(), ReplyRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}, {Role: "user", Content: "ideas?"}},
		Snapshot: sampleSnapshot(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.AssistantText != "Add a vegetable." {
		t.Errorf("unexpected text %q", resp.AssistantText)
	}
	if len(got.Messages) != 4 || got.Messages[0].Role != "system" || !strings.Contains(got.Messages[0].Content, "Porridge") {
		t.Errorf("unexpected request messages: %+v", got.Messages)
	}
	if got.Model != "gpt-test" || got.MaxTokens != 100 {
		t.Errorf("unexpected request: model=%s max_tokens=%d", got.Model, got.MaxTokens)
	}
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.Config{OpenAIAPIKey: "sk-test"})
	provider.endpoint = server.URL

	if _, err := provider.Reply(context.Background(), ReplyRequest{}); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestGeminiHistory(t *testing.T) {
	history, last := geminiHistory([]ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "plan my lunch"},
	})

	if last != "plan my lunch" {
		t.Fatalf("unexpected last message %q", last)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if text, ok := history[1].Parts[0].(genai.Text); !ok || string(text) != "hello" {
		t.Errorf("unexpected part %v", history[1].Parts[0])
	}

	if _, last := geminiHistory([]ChatMessage{{Role: "assistant", Content: "x"}}); last != "" {
		t.Errorf("expected no user message, got %q", last)
	}
}

func TestGeminiHistoryMergesRepeatedRoles(t *testing.T) {
	history, last := geminiHistory([]ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "anyone?"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "lost question"},
		{Role: "user", Content: "plan my lunch"},
	})

	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("expected alternating user/model history, got %+v", history)
	}
	if len(history[0].Parts) != 2 {
		t.Errorf("expected both opening user turns in one content, got %d parts", len(history[0].Parts))
	}
	if last != "lost question\n\nplan my lunch" {
		t.Errorf("unexpected last message %q", last)
	}
}

func TestNewProviderDefaultsToMock(t *testing.T) {
	if _, ok := NewProvider(context.Background(), &config.Config{AIMode: ""}).(*MockProvider); !ok {
		t.Error("expected mock provider")
	}
	if _, ok := NewProvider(context.Background(), &config.Config{AIMode: ModeOpenAI}).(*OpenAIProvider); !ok {
		t.Error("expected openai provider")
	}
}
