// Package storetest provides a compliance suite that every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Accounts: upsert then read back.
	acct, err := s.Accounts().Upsert(ctx, model.ProviderGmail, "apn_111")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if acct.ExternalID != "apn_111" || acct.Provider != model.ProviderGmail {
		t.Fatalf("Upsert returned %+v", acct)
	}
	if acct.LastSync != nil {
		t.Fatalf("fresh account has last sync: %v", acct.LastSync)
	}

	// Upsert again replaces the external id without creating a second live row.
	if _, err := s.Accounts().Upsert(ctx, model.ProviderGmail, "apn_222"); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	got, err := s.Accounts().Get(ctx, model.ProviderGmail)
	if err != nil || got.ExternalID != "apn_222" {
		t.Fatalf("Get after re-upsert: got=%+v err=%v", got, err)
	}
	if lst, err := s.Accounts().List(ctx); err != nil || len(lst) != 1 {
		t.Fatalf("List: n=%d err=%v", len(lst), err)
	}

	// Unconnected provider reads as not found.
	if _, err := s.Accounts().Get(ctx, model.ProviderHubSpot); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get hubspot: want ErrNotFound, got %v", err)
	}

	// Last-sync marker round trip.
	syncedAt := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.Accounts().SetLastSync(ctx, model.ProviderGmail, syncedAt); err != nil {
		t.Fatalf("SetLastSync: %v", err)
	}
	got, err = s.Accounts().Get(ctx, model.ProviderGmail)
	if err != nil || got.LastSync == nil || !got.LastSync.Equal(syncedAt) {
		t.Fatalf("Get after SetLastSync: got=%+v err=%v", got, err)
	}

	// Jobs: single-flight per provider.
	job := &model.SyncJob{
		JobID:       uuid.New().String(),
		Provider:    model.ProviderGmail,
		AccountID:   "apn_222",
		WindowStart: time.Now().Add(-90 * 24 * time.Hour),
		WindowEnd:   time.Now(),
	}
	if err := s.Jobs().Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}
	second := *job
	second.JobID = uuid.New().String()
	if err := s.Jobs().Start(ctx, &second); !errors.Is(err, model.ErrAlreadySyncing) {
		t.Fatalf("concurrent Start: want ErrAlreadySyncing, got %v", err)
	}
	// A different provider is unaffected.
	other := &model.SyncJob{
		JobID:       uuid.New().String(),
		Provider:    model.ProviderHubSpot,
		AccountID:   "apn_333",
		WindowStart: job.WindowStart,
		WindowEnd:   job.WindowEnd,
	}
	if err := s.Jobs().Start(ctx, other); err != nil {
		t.Fatalf("Start other provider: %v", err)
	}

	counts := model.SyncCounts{Fetched: 10, Normalized: 9, Ingested: 9, SkippedMalformed: 1}
	if err := s.Jobs().Finish(ctx, job.JobID, model.JobPartial, counts, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	// Finishing twice is rejected.
	if err := s.Jobs().Finish(ctx, job.JobID, model.JobSucceeded, counts, ""); err == nil {
		t.Fatalf("double Finish accepted")
	}
	gotJob, err := s.Jobs().Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get job: %v", err)
	}
	if gotJob.Status != model.JobPartial || gotJob.Counts != counts || gotJob.FinishedAt == nil {
		t.Fatalf("Get job: %+v", gotJob)
	}

	// Slot freed after finish.
	third := *job
	third.JobID = uuid.New().String()
	third.StartedAt = time.Time{}
	if err := s.Jobs().Start(ctx, &third); err != nil {
		t.Fatalf("Start after finish: %v", err)
	}
	latest, err := s.Jobs().Latest(ctx, model.ProviderGmail)
	if err != nil || latest.JobID != third.JobID {
		t.Fatalf("Latest: got=%+v err=%v", latest, err)
	}
	if err := s.Jobs().Finish(ctx, third.JobID, model.JobFailed, model.SyncCounts{}, "auth expired"); err != nil {
		t.Fatalf("Finish third: %v", err)
	}

	// Episodes: provenance insert is idempotent on the source key.
	ref := &model.EpisodeRef{
		Provider:   model.ProviderGmail,
		AccountID:  "apn_222",
		SourceID:   "msg-1",
		EpisodeID:  "gmail_msg-1",
		Source:     "Gmail - Quarterly review",
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	inserted, err := s.Episodes().Record(ctx, ref)
	if err != nil || !inserted {
		t.Fatalf("Record: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.Episodes().Record(ctx, ref)
	if err != nil || inserted {
		t.Fatalf("duplicate Record: inserted=%v err=%v", inserted, err)
	}
	if ok, err := s.Episodes().Exists(ctx, ref.Provider, ref.AccountID, ref.SourceID); err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Episodes().Exists(ctx, ref.Provider, ref.AccountID, "msg-2"); err != nil || ok {
		t.Fatalf("Exists unknown: ok=%v err=%v", ok, err)
	}
	gotRef, err := s.Episodes().Get(ctx, "gmail_msg-1")
	if err != nil || gotRef.Source != ref.Source {
		t.Fatalf("Get episode: got=%+v err=%v", gotRef, err)
	}

	// ResolveSources preserves order, drops dups and unknowns.
	ref2 := &model.EpisodeRef{
		Provider:   model.ProviderGmail,
		AccountID:  "apn_222",
		SourceID:   "msg-2",
		EpisodeID:  "gmail_msg-2",
		Source:     "Gmail - Renewal pricing",
		OccurredAt: ref.OccurredAt,
	}
	if _, err := s.Episodes().Record(ctx, ref2); err != nil {
		t.Fatalf("Record ref2: %v", err)
	}
	sources, err := s.Episodes().ResolveSources(ctx, []string{"gmail_msg-2", "nope", "gmail_msg-1", "gmail_msg-2"})
	if err != nil {
		t.Fatalf("ResolveSources: %v", err)
	}
	if len(sources) != 2 || sources[0] != ref2.Source || sources[1] != ref.Source {
		t.Fatalf("ResolveSources: %v", sources)
	}

	// Disconnect tombstones; status reads drop the account but history stays.
	if err := s.Accounts().Disconnect(ctx, model.ProviderGmail); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := s.Accounts().Get(ctx, model.ProviderGmail); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after disconnect: %v", err)
	}
	if err := s.Accounts().Disconnect(ctx, model.ProviderGmail); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("double Disconnect: %v", err)
	}
	// Reconnecting creates a fresh live row.
	fresh, err := s.Accounts().Upsert(ctx, model.ProviderGmail, "apn_444")
	if err != nil || fresh.LastSync != nil {
		t.Fatalf("Upsert after disconnect: got=%+v err=%v", fresh, err)
	}
}
