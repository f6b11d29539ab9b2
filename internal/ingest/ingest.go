// Package ingest commits normalized episodes to the knowledge graph exactly
// once per source record. The provenance store's unique key is the idempotence
// guard; the graph's deterministic episode IDs make retries upserts.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

// Outcome is the per-episode ingestion result.
type Outcome int

const (
	// Committed means the episode reached the graph and its provenance row
	// was recorded for the first time.
	Committed Outcome = iota
	// DuplicateSkipped means the provenance key already existed; the graph
	// was not touched (or the upsert was a no-op).
	DuplicateSkipped
)

// Ingester writes episodes into one graph group and records provenance.
type Ingester struct {
	graph    graph.Graph
	episodes store.Episodes
	groupID  string
	logger   zerolog.Logger
}

func New(g graph.Graph, episodes store.Episodes, groupID string, logger zerolog.Logger) *Ingester {
	return &Ingester{
		graph:    g,
		episodes: episodes,
		groupID:  groupID,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest submits one episode. The order is deliberate: check provenance,
// submit to the graph, then record provenance. A crash between graph submit
// and provenance record re-ingests on the next run, which the graph's
// deterministic IDs absorb as an upsert.
func (i *Ingester) Ingest(ctx context.Context, ep model.Episode) (Outcome, error) {
	seen, err := i.episodes.Exists(ctx, ep.Provider, ep.AccountID, ep.SourceID)
	if err != nil {
		return 0, fmt.Errorf("check provenance for %s: %w", ep.EpisodeID, err)
	}
	if seen {
		return DuplicateSkipped, nil
	}

	if err := i.graph.AddEpisode(ctx, i.groupID, ep); err != nil {
		return 0, err
	}

	inserted, err := i.episodes.Record(ctx, &model.EpisodeRef{
		Provider:   ep.Provider,
		AccountID:  ep.AccountID,
		SourceID:   ep.SourceID,
		EpisodeID:  ep.EpisodeID,
		Source:     ep.Source,
		OccurredAt: ep.OccurredAt,
	})
	if err != nil {
		return 0, fmt.Errorf("record provenance for %s: %w", ep.EpisodeID, err)
	}
	if !inserted {
		// A concurrent ingest won the race; the graph upsert already
		// converged on the same node.
		return DuplicateSkipped, nil
	}
	i.logger.Debug().Str("episode_id", ep.EpisodeID).Msg("episode committed")
	return Committed, nil
}
