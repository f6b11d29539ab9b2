package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/config"
	emb "github.com/synapta-ai/synapta/internal/embeddings"
	embollama "github.com/synapta-ai/synapta/internal/embeddings/ollama"
	graphpkg "github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/graph/graphiti"
	"github.com/synapta-ai/synapta/internal/graph/weaviatex"
)

// NewEmbedder creates the embedding provider used by the weaviate graph
// backend. Warmup runs async so startup never blocks on a cold model.
func NewEmbedder(ctx context.Context, cfg *config.Config, log zerolog.Logger) emb.Embedder {
	var provider emb.Embedder
	switch cfg.EmbedProvider {
	case "", "ollama":
		provider = embollama.NewProvider(cfg.OllamaURL, cfg.EmbedModel)
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using ollama")
		provider = embollama.NewProvider(cfg.OllamaURL, cfg.EmbedModel)
	}

	go func() {
		if vec, err := provider.Embed(ctx, "factory-warmup-check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).Str("model", cfg.EmbedModel).Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("model", cfg.EmbedModel).Msg("embedding provider warmup completed")
		}
	}()
	return provider
}

// NewGraph creates the knowledge-graph backend named by cfg.GraphDriver.
func NewGraph(ctx context.Context, cfg *config.Config, log zerolog.Logger) (graphpkg.Graph, error) {
	switch cfg.GraphDriver {
	case "graphiti":
		return graphiti.New(cfg.GraphitiURL, log), nil
	case "weaviate":
		embedder := NewEmbedder(ctx, cfg, log)
		idx, err := weaviatex.New(ctx, cfg.WeaviateURL, embedder, log)
		if err != nil {
			return nil, fmt.Errorf("create weaviate graph: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown GRAPH_DRIVER: %s", cfg.GraphDriver)
	}
}
