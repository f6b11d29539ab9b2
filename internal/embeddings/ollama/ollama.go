// Package ollama embeds text via a local Ollama instance.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider calls the Ollama embeddings API.
type Provider struct {
	client *resty.Client
	model  string
}

func NewProvider(baseURL, model string) *Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(5 * time.Minute)
	return &Provider{client: c, model: model}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model"`
}

// Embed generates a dense vector for the given text. If the model is missing
// it attempts one best-effort pull and retries once.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	reqBody := embedRequest{Model: p.model, Prompt: text}
	resp, err := p.client.R().SetContext(ctx).SetBody(&reqBody).Post("/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		_ = p.pullModel(ctx)
		resp2, err2 := p.client.R().SetContext(ctx).SetBody(&reqBody).Post("/api/embeddings")
		if err2 != nil || resp2.StatusCode() != http.StatusOK {
			if err2 != nil {
				return nil, fmt.Errorf("ollama status %d: %s (after pull attempt; err=%v)", resp.StatusCode(), resp.String(), err2)
			}
			return nil, fmt.Errorf("ollama status %d: %s (after pull attempt)", resp2.StatusCode(), resp2.String())
		}
		resp = resp2
	}

	var er embedResponse
	if err := json.Unmarshal(resp.Body(), &er); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	vec := make([]float32, len(er.Embedding))
	for i, v := range er.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (p *Provider) pullModel(ctx context.Context) error {
	body := map[string]string{"name": p.model}
	_, _ = p.client.R().SetContext(ctx).SetBody(body).Post("/api/pull")
	return nil
}
