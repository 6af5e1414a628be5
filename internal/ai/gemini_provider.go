package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client  *genai.Client
	model   string
	cfg     *config.Config
	timeout time.Duration
}

func NewGeminiProvider(ctx context.Context, cfg *config.Config) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}

	return &GeminiProvider{
		client:  client,
		model:   cfg.GeminiModel,
		cfg:     cfg,
		timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func (p *GeminiProvider) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(float32(p.cfg.AITemperature))
	model.SetMaxOutputTokens(int32(p.cfg.AIMaxOutputTokens))
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt(req.Snapshot))}}

	history, last := geminiHistory(req.Messages)
	if last == "" {
		return ReplyResponse{}, errors.New("gemini: no user message to answer")
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ReplyResponse{}, errors.New("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return ReplyResponse{}, errors.New("generated content is not text")
	}

	return ReplyResponse{AssistantText: strings.TrimSpace(b.String())}, nil
}

// Close closes the underlying Gemini client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// geminiHistory splits the conversation into prior turns and the message to send.
// Gemini uses "model" where the chat history stores "assistant".
func geminiHistory(messages []ChatMessage) ([]*genai.Content, string) {
	lastIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return nil, ""
	}

	// Gemini ждёт чередования ролей: подряд идущие реплики одной роли склеиваются
	history := make([]*genai.Content, 0, lastIdx)
	for _, msg := range messages[:lastIdx] {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(msg.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	last := messages[lastIdx].Content
	// реплики пользователя прямо перед последней уходят вместе с ней
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		parts := make([]string, 0, len(history[n-1].Parts)+1)
		for _, part := range history[n-1].Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
		last = strings.Join(append(parts, last), "\n\n")
		history = history[:n-1]
	}
	return history, last
}
