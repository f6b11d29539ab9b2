package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/config"
	llmpkg "github.com/synapta-ai/synapta/internal/llm"
	"github.com/synapta-ai/synapta/internal/llm/gemini"
	llmollama "github.com/synapta-ai/synapta/internal/llm/ollama"
)

// NewLLM creates the completion provider named by cfg.LLMProvider.
func NewLLM(ctx context.Context, cfg *config.Config, log zerolog.Logger) (llmpkg.Provider, error) {
	switch cfg.LLMProvider {
	case "gemini":
		p, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		log.Debug().Str("model", cfg.GeminiModel).Msg("llm provider ready")
		return p, nil
	case "ollama":
		log.Debug().Str("model", cfg.OllamaModel).Msg("llm provider ready")
		return llmollama.New(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s", cfg.LLMProvider)
	}
}
