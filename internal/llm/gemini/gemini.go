// Package gemini adapts Google's Gemini API to the llm.Provider interface.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/synapta-ai/synapta/internal/llm"
)

// Provider wraps one genai client and model name.
type Provider struct {
	client    *genai.Client
	modelName string
}

var _ llm.Provider = (*Provider)(nil)

func New(ctx context.Context, apiKey, modelName string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Provider{client: client, modelName: modelName}, nil
}

func (p *Provider) Close() error { return p.client.Close() }

// Complete sends one generation request with the system prompt as the model's
// system instruction.
func (p *Provider) Complete(ctx context.Context, system, user string) (string, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini returned a non-text response")
	}
	return b.String(), nil
}
