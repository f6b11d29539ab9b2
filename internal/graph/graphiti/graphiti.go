// Package graphiti talks to a Graphiti service over REST. Graphiti runs the
// entity/relation extraction itself; this client only submits episodes and
// issues hybrid searches.
package graphiti

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/model"
)

// episodeNamespace seeds deterministic episode UUIDs so re-submitting a
// record upserts the same graph node.
var episodeNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

// Client implements graph.Graph against a Graphiti HTTP endpoint.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

var _ graph.Graph = (*Client)(nil)

func New(baseURL string, logger zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)
	return &Client{http: c, logger: logger.With().Str("graph", "graphiti").Logger()}
}

type addEpisodeRequest struct {
	GroupID           string `json:"group_id"`
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	EpisodeBody       string `json:"episode_body"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`
	ReferenceTime     string `json:"reference_time"`
}

// AddEpisode submits one episode. The UUID is derived from the episode ID,
// so resubmission updates in place.
func (c *Client) AddEpisode(ctx context.Context, groupID string, ep model.Episode) error {
	req := addEpisodeRequest{
		GroupID:           groupID,
		UUID:              uuid.NewSHA1(episodeNamespace, []byte(ep.EpisodeID)).String(),
		Name:              ep.EpisodeID,
		EpisodeBody:       ep.Content,
		Source:            "text",
		SourceDescription: ep.Source,
		ReferenceTime:     ep.OccurredAt.UTC().Format(time.RFC3339),
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(&req).Post("/episodes")
	if err != nil {
		return fmt.Errorf("graphiti add episode: %v: %w", err, model.ErrTransient)
	}
	if err := classifyStatus(resp); err != nil {
		return fmt.Errorf("graphiti add episode %s: %w", ep.EpisodeID, err)
	}
	c.logger.Debug().Str("episode_id", ep.EpisodeID).Msg("episode submitted")
	return nil
}

type searchRequest struct {
	GroupID  string `json:"group_id"`
	Query    string `json:"query"`
	MaxFacts int    `json:"max_facts"`
}

type searchResponse struct {
	Facts []struct {
		UUID     string   `json:"uuid"`
		Fact     string   `json:"fact"`
		Score    float64  `json:"score"`
		Episodes []string `json:"episodes"`
	} `json:"facts"`
}

// Search runs a hybrid search scoped to one group and returns scored facts
// with their supporting episode IDs.
func (c *Client) Search(ctx context.Context, groupID, query string, limit int) ([]model.Fact, error) {
	req := searchRequest{GroupID: groupID, Query: query, MaxFacts: limit}
	var out searchResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(&req).SetResult(&out).Post("/search")
	if err != nil {
		return nil, fmt.Errorf("graphiti search: %v: %w", err, model.ErrTransient)
	}
	if err := classifyStatus(resp); err != nil {
		return nil, fmt.Errorf("graphiti search: %w", err)
	}
	facts := make([]model.Fact, 0, len(out.Facts))
	for _, f := range out.Facts {
		facts = append(facts, model.Fact{
			ID:         f.UUID,
			Text:       f.Fact,
			Score:      f.Score,
			EpisodeIDs: f.Episodes,
		})
	}
	return facts, nil
}

func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/healthcheck")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("graphiti status %d", resp.StatusCode())
	}
	return nil
}

func classifyStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return model.ErrRateLimited
	case code >= 500:
		return fmt.Errorf("status %d: %w", code, model.ErrTransient)
	default:
		return fmt.Errorf("status %d: %s", code, resp.String())
	}
}
