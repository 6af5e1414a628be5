package ai

import (
	"context"
	"log"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/config"
)

const (
	ModeMock   = "mock"
	ModeOpenAI = "openai"
	ModeGemini = "gemini"
)

// NewProvider возвращает провайдера по AI_MODE. Если Gemini не поднялся,
// используется mock.
func NewProvider(ctx context.Context, cfg *config.Config) Provider {
	mode := strings.ToLower(strings.TrimSpace(cfg.AIMode))
	if mode == "" {
		mode = ModeMock
	}

	switch mode {
	case ModeOpenAI:
		return NewOpenAIProvider(cfg)
	case ModeGemini:
		provider, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			log.Printf("WARN ai: gemini unavailable, fallback to mock: %v", err)
			return NewMockProvider()
		}
		return provider
	default:
		return NewMockProvider()
	}
}
