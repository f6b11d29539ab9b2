// Package ollama adapts a local Ollama instance to the llm.Provider
// interface, for development without a hosted model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/synapta-ai/synapta/internal/llm"
)

type Provider struct {
	client *resty.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

func New(baseURL, model string) *Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(5 * time.Minute)
	return &Provider{client: c, model: model}
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Provider) Complete(ctx context.Context, system, user string) (string, error) {
	req := generateRequest{Model: p.model, System: system, Prompt: user, Stream: false}
	var out generateResponse
	resp, err := p.client.R().SetContext(ctx).SetBody(&req).SetResult(&out).Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode(), resp.String())
	}
	return out.Response, nil
}
