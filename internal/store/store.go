package store

import (
	"context"
	"time"

	"github.com/synapta-ai/synapta/internal/model"
)

// Store exposes persistence operations required by the sync pipeline.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
// All reads observe the most recently committed write for the same account.
type Store interface {
	Accounts() Accounts
	Jobs() Jobs
	Episodes() Episodes
	Close() error
}

// Accounts persists connected external accounts. Disconnects tombstone.
type Accounts interface {
	// Upsert creates the live account for provider or replaces its external id.
	Upsert(ctx context.Context, provider model.ProviderKind, externalID string) (*model.ConnectedAccount, error)
	// Get returns the live account for provider, or model.ErrNotFound.
	Get(ctx context.Context, provider model.ProviderKind) (*model.ConnectedAccount, error)
	// List returns all live accounts.
	List(ctx context.Context) ([]*model.ConnectedAccount, error)
	// SetLastSync advances the last-sync marker for the live account.
	SetLastSync(ctx context.Context, provider model.ProviderKind, t time.Time) error
	// Disconnect tombstones the live account; model.ErrNotFound when none.
	Disconnect(ctx context.Context, provider model.ProviderKind) error
}

// Jobs persists sync jobs and enforces the per-provider single-flight guard.
type Jobs interface {
	// Start inserts j in running state. Returns model.ErrAlreadySyncing when
	// another running job exists for the same provider.
	Start(ctx context.Context, j *model.SyncJob) error
	// Finish records the terminal status and counts for jobID. Finishing an
	// already-terminal job is an error.
	Finish(ctx context.Context, jobID string, status model.JobStatus, counts model.SyncCounts, jobErr string) error
	// Get returns the job by id, or model.ErrNotFound.
	Get(ctx context.Context, jobID string) (*model.SyncJob, error)
	// Latest returns the most recently started job for provider, or model.ErrNotFound.
	Latest(ctx context.Context, provider model.ProviderKind) (*model.SyncJob, error)
}

// Episodes persists provenance rows keyed by (provider, account, source id).
// The unique key is what makes graph ingestion idempotent.
type Episodes interface {
	// Record inserts the provenance row. Returns false when the key already
	// exists (duplicate episode), without modifying the stored row.
	Record(ctx context.Context, ref *model.EpisodeRef) (bool, error)
	// Exists reports whether the provenance key is already recorded.
	Exists(ctx context.Context, provider model.ProviderKind, accountID, sourceID string) (bool, error)
	// Get returns the provenance row for episodeID, or model.ErrNotFound.
	Get(ctx context.Context, episodeID string) (*model.EpisodeRef, error)
	// ResolveSources maps episode IDs to their source descriptors, preserving
	// input order and dropping duplicates and unknown IDs.
	ResolveSources(ctx context.Context, episodeIDs []string) ([]string, error)
}
