package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
	"github.com/synapta-ai/synapta/internal/store/sqlite"
)

// fakeGraph records submissions and can fail on demand.
type fakeGraph struct {
	mu       sync.Mutex
	episodes []model.Episode
	addErr   error
}

func (g *fakeGraph) AddEpisode(_ context.Context, _ string, ep model.Episode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addErr != nil {
		return g.addErr
	}
	g.episodes = append(g.episodes, ep)
	return nil
}

func (g *fakeGraph) Search(context.Context, string, string, int) ([]model.Fact, error) {
	return nil, nil
}

func (g *fakeGraph) HealthPing(context.Context) error { return nil }

func (g *fakeGraph) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.episodes)
}

func newTestIngester(t *testing.T) (*Ingester, *fakeGraph, store.Store) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	g := &fakeGraph{}
	return New(g, st.Episodes(), "user_main", zerolog.Nop()), g, st
}

func testEpisode(sourceID string) model.Episode {
	return model.Episode{
		Provider:   model.ProviderGmail,
		AccountID:  "acct-1",
		SourceID:   sourceID,
		EpisodeID:  "gmail_" + sourceID,
		OccurredAt: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
		Content:    "From: ana@acme.test\n\nbody",
		Source:     "Gmail - Q3 renewal",
	}
}

func TestIngestCommitsOnce(t *testing.T) {
	ing, g, _ := newTestIngester(t)
	ctx := context.Background()

	const n = 5
	var committed, skipped int
	for i := 0; i < n; i++ {
		out, err := ing.Ingest(ctx, testEpisode("m1"))
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		switch out {
		case Committed:
			committed++
		case DuplicateSkipped:
			skipped++
		}
	}
	if committed != 1 || skipped != n-1 {
		t.Fatalf("committed=%d skipped=%d, want 1 and %d", committed, skipped, n-1)
	}
	if g.count() != 1 {
		t.Fatalf("graph received %d episodes, want 1", g.count())
	}
}

func TestIngestDistinctRecords(t *testing.T) {
	ing, g, _ := newTestIngester(t)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		out, err := ing.Ingest(ctx, testEpisode(id))
		if err != nil {
			t.Fatalf("Ingest %s: %v", id, err)
		}
		if out != Committed {
			t.Fatalf("Ingest %s outcome = %v, want Committed", id, out)
		}
	}
	if g.count() != 3 {
		t.Fatalf("graph received %d episodes, want 3", g.count())
	}
}

func TestIngestGraphFailureLeavesNoProvenance(t *testing.T) {
	ing, g, st := newTestIngester(t)
	ctx := context.Background()

	g.addErr = model.ErrTransient
	if _, err := ing.Ingest(ctx, testEpisode("m1")); !errors.Is(err, model.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}

	seen, err := st.Episodes().Exists(ctx, model.ProviderGmail, "acct-1", "m1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if seen {
		t.Fatal("provenance recorded despite graph failure")
	}

	// Retry after the graph recovers commits normally.
	g.addErr = nil
	out, err := ing.Ingest(ctx, testEpisode("m1"))
	if err != nil {
		t.Fatalf("retry Ingest: %v", err)
	}
	if out != Committed {
		t.Fatalf("retry outcome = %v, want Committed", out)
	}
}

func TestIngestRecordsSourceDescriptor(t *testing.T) {
	ing, _, st := newTestIngester(t)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, testEpisode("m1")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	sources, err := st.Episodes().ResolveSources(ctx, []string{"gmail_m1"})
	if err != nil {
		t.Fatalf("ResolveSources: %v", err)
	}
	if len(sources) != 1 || sources[0] != "Gmail - Q3 renewal" {
		t.Fatalf("sources = %v", sources)
	}
}
