// Package graph defines the knowledge-graph abstraction the pipeline writes
// episodes into and answers questions from.
package graph

import (
	"context"

	"github.com/synapta-ai/synapta/internal/model"
)

// Graph ingests normalized episodes and retrieves scored facts.
//
// AddEpisode must be an upsert keyed by the episode's deterministic ID:
// submitting the same episode twice leaves one copy. Search returns facts
// ordered by relevance, each carrying the episode IDs that support it.
type Graph interface {
	AddEpisode(ctx context.Context, groupID string, ep model.Episode) error
	Search(ctx context.Context, groupID, query string, limit int) ([]model.Fact, error)
	HealthPing(ctx context.Context) error
}
