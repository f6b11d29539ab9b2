// Package weaviatex is a local graph.Graph backed by Weaviate hybrid search.
// It trades Graphiti's entity extraction for a single episode class: each
// fact returned by Search is an episode's own content. Useful for local
// development without a Graphiti deployment.
package weaviatex

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/synapta-ai/synapta/internal/embeddings"
	"github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/model"
)

const className = "Episode"

// hybridAlpha balances keyword vs vector relevance in hybrid search.
const hybridAlpha = 0.6

var objectNamespace = uuid.MustParse("b1e477f0-8c9a-4b0f-9c1d-2f55a1c3f6d2")

// Index implements graph.Graph on a Weaviate instance with client-side
// embeddings.
type Index struct {
	client   *weaviate.Client
	embedder embeddings.Embedder
	baseURL  string // host:port without scheme
	logger   zerolog.Logger
}

var _ graph.Graph = (*Index)(nil)

// New connects to Weaviate at baseURL (host:port, no scheme) and ensures the
// episode class exists.
func New(ctx context.Context, baseURL string, embedder embeddings.Embedder, logger zerolog.Logger) (*Index, error) {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		client:   cl,
		embedder: embedder,
		baseURL:  baseURL,
		logger:   logger.With().Str("graph", "weaviate").Logger(),
	}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) ensureSchema(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	desired := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "episodeId", DataType: []string{"text"}},
			{Name: "groupId", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "occurredAt", DataType: []string{"date"}},
		},
	}
	ex, err := x.client.Schema().ClassGetter().WithClassName(className).Do(cctx)
	if err == nil && ex != nil {
		return nil
	}
	if err := x.client.Schema().ClassCreator().WithClass(desired).Do(cctx); err != nil {
		return fmt.Errorf("create class %s: %w", className, err)
	}
	return nil
}

// AddEpisode embeds the episode content and writes the object under a
// deterministic ID; resubmission replaces the stored object.
func (x *Index) AddEpisode(ctx context.Context, groupID string, ep model.Episode) error {
	vec, err := x.embedder.Embed(ctx, ep.Content)
	if err != nil {
		return fmt.Errorf("embed episode %s: %w", ep.EpisodeID, err)
	}
	objID := strfmt.UUID(uuid.NewSHA1(objectNamespace, []byte(ep.EpisodeID)).String())
	props := map[string]interface{}{
		"episodeId":  ep.EpisodeID,
		"groupId":    groupID,
		"content":    ep.Content,
		"source":     ep.Source,
		"occurredAt": ep.OccurredAt.UTC().Format(time.RFC3339),
	}
	_, err = x.client.Data().Creator().
		WithClassName(className).
		WithID(string(objID)).
		WithProperties(props).
		WithVector(vec).
		Do(ctx)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		err = x.client.Data().Updater().
			WithClassName(className).
			WithID(string(objID)).
			WithProperties(props).
			WithVector(vec).
			Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("upsert episode %s: %w: %v", ep.EpisodeID, model.ErrTransient, err)
	}
	return nil
}

// Search runs a group-scoped hybrid query; each hit surfaces the episode's
// content as the fact text.
func (x *Index) Search(ctx context.Context, groupID, query string, limit int) ([]model.Fact, error) {
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hy := (&gql.HybridArgumentBuilder{}).
		WithQuery(query).
		WithVector(vec).
		WithAlpha(hybridAlpha).
		WithProperties([]string{"content", "source"})
	where := filters.Where().WithPath([]string{"groupId"}).WithOperator(filters.Equal).WithValueText(groupID)

	resp, err := x.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithHybrid(hy).
		WithLimit(limit).
		WithFields(
			gql.Field{Name: "episodeId"},
			gql.Field{Name: "content"},
			gql.Field{Name: "source"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "score"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w: %v", model.ErrTransient, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %v", resp.Errors)
	}

	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	raw, ok := getData[className].([]interface{})
	if !ok {
		return []model.Fact{}, nil
	}

	out := make([]model.Fact, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		episodeID, _ := m["episodeId"].(string)
		content, _ := m["content"].(string)
		var score float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			switch v := add["score"].(type) {
			case float64:
				score = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					score = f
				}
			}
		}
		out = append(out, model.Fact{
			ID:         episodeID,
			Text:       content,
			Score:      score,
			EpisodeIDs: []string{episodeID},
		})
	}
	x.logger.Debug().Int("hits", len(out)).Str("group_id", groupID).Msg("weaviate search completed")
	return out, nil
}

// HealthPing calls GET /v1/meta and expects 200 OK.
func (x *Index) HealthPing(ctx context.Context) error {
	url := x.baseURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/meta", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate status %d", resp.StatusCode)
	}
	return nil
}
