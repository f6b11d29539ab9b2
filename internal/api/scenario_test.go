package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/answer"
	"github.com/synapta-ai/synapta/internal/config"
	"github.com/synapta-ai/synapta/internal/episode"
	"github.com/synapta-ai/synapta/internal/ingest"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store/sqlite"
)

// scenarioGraph keeps ingested episodes and answers searches with naive
// keyword matching, enough to drive the pipeline end to end without a real
// graph backend.
type scenarioGraph struct {
	mu       sync.Mutex
	episodes []model.Episode
}

func (g *scenarioGraph) AddEpisode(_ context.Context, _ string, ep model.Episode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.episodes = append(g.episodes, ep)
	return nil
}

func (g *scenarioGraph) Search(_ context.Context, _, query string, limit int) ([]model.Fact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Fact
	for _, ep := range g.episodes {
		if len(out) >= limit {
			break
		}
		for _, word := range strings.Fields(strings.ToLower(query)) {
			if strings.Contains(strings.ToLower(ep.Content), word) {
				out = append(out, model.Fact{
					ID:         ep.EpisodeID,
					Text:       ep.Content,
					Score:      1.0,
					EpisodeIDs: []string{ep.EpisodeID},
				})
				break
			}
		}
	}
	return out, nil
}

func (g *scenarioGraph) HealthPing(context.Context) error { return nil }

// scriptedLLM cites the first two context facts.
type scriptedLLM struct{}

func (scriptedLLM) Complete(_ context.Context, _, user string) (string, error) {
	_ = user
	return "Two deals are currently in progress: the Acme renewal and the Globex expansion.\nSOURCES: F1, F2", nil
}

func dealRecord(id, name, stage string) model.RawRecord {
	return model.RawRecord{
		Provider:   model.ProviderHubSpot,
		ID:         id,
		ModifiedAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		Object: &model.CRMRecord{
			Type: model.CRMDeal,
			Properties: map[string]string{
				"dealname":  name,
				"dealstage": stage,
				"amount":    "10000",
			},
		},
	}
}

// TestChatOverSyncedDeals runs the pipeline the way a user experiences it:
// CRM records are normalized and ingested, then a chat question comes back
// answered with citations pointing at those records.
func TestChatOverSyncedDeals(t *testing.T) {
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "scenario.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = st.Close() }()

	cfg := config.NewForTesting()
	g := &scenarioGraph{}
	ing := ingest.New(g, st.Episodes(), cfg.GraphGroupID, zerolog.Nop())

	records := []model.RawRecord{
		dealRecord("201", "Acme renewal deal", "contractsent"),
		dealRecord("202", "Globex expansion deal", "qualifiedtobuy"),
		dealRecord("203", "Initech pilot deal", "closedwon"),
	}
	for _, rec := range records {
		ep, err := episode.Build("acct-hs", rec)
		if err != nil {
			t.Fatalf("build episode: %v", err)
		}
		if _, err := ing.Ingest(context.Background(), ep); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	engine := answer.New(g, scriptedLLM{}, st.Episodes(), cfg, zerolog.Nop())
	router := NewRouter(Deps{
		Connect: &fakeConnect{},
		Sync:    &fakeSync{},
		Chat:    engine,
		Graph:   g,
		Store:   st,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp := doJSON(t, "POST", srv.URL+"/api/v1/agent/chat", map[string]string{
		"message": "deal progress",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body model.ChatResponse
	decode(t, resp, &body)

	if !strings.Contains(body.Answer, "Acme") {
		t.Fatalf("answer = %q", body.Answer)
	}
	if strings.Contains(body.Answer, "SOURCES") {
		t.Fatalf("citation line leaked into the answer: %q", body.Answer)
	}
	if len(body.Sources) != 2 {
		t.Fatalf("sources = %v, want 2", body.Sources)
	}
	for _, s := range body.Sources {
		if !strings.HasPrefix(s, "HubSpot Deal - ") {
			t.Fatalf("unexpected source descriptor %q", s)
		}
	}
}
