// Package sqlite implements store.Store on an embedded SQLite database.
// It is the default driver for single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    provider        TEXT NOT NULL,
    external_id     TEXT NOT NULL,
    connected_at    TEXT NOT NULL,
    last_sync       TEXT,
    disconnected_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_live_provider
    ON accounts(provider) WHERE disconnected_at IS NULL;

CREATE TABLE IF NOT EXISTS sync_jobs (
    job_id            TEXT PRIMARY KEY,
    provider          TEXT NOT NULL,
    account_id        TEXT NOT NULL,
    status            TEXT NOT NULL,
    started_at        TEXT NOT NULL,
    finished_at       TEXT,
    window_start      TEXT NOT NULL,
    window_end        TEXT NOT NULL,
    fetched           INTEGER NOT NULL DEFAULT 0,
    normalized        INTEGER NOT NULL DEFAULT 0,
    ingested          INTEGER NOT NULL DEFAULT 0,
    skipped_duplicate INTEGER NOT NULL DEFAULT 0,
    skipped_malformed INTEGER NOT NULL DEFAULT 0,
    failed            INTEGER NOT NULL DEFAULT 0,
    error             TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS sync_jobs_single_flight
    ON sync_jobs(provider) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS episodes (
    provider    TEXT NOT NULL,
    account_id  TEXT NOT NULL,
    source_id   TEXT NOT NULL,
    episode_id  TEXT NOT NULL,
    source      TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    PRIMARY KEY (provider, account_id, source_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS episodes_episode_id ON episodes(episode_id);
`

// Open opens (creating if needed) the SQLite database at path and applies the
// schema. A single write connection avoids SQLITE_BUSY under concurrency.
func Open(path string) (store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqlStore{db: db}, nil
}

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Accounts() store.Accounts { return &accounts{db: s.db} }
func (s *sqlStore) Jobs() store.Jobs         { return &jobs{db: s.db} }
func (s *sqlStore) Episodes() store.Episodes { return &episodes{db: s.db} }
func (s *sqlStore) Close() error             { return s.db.Close() }

// HealthPing implements health checking for the SQLite-backed store.
func (s *sqlStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Timestamps are stored as RFC3339Nano text so round trips stay exact across
// driver versions.
func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Accounts ---

type accounts struct{ db *sql.DB }

func (a *accounts) Upsert(ctx context.Context, provider model.ProviderKind, externalID string) (*model.ConnectedAccount, error) {
	now := time.Now().UTC()
	res, err := a.db.ExecContext(ctx, `
        UPDATE accounts SET external_id=?, connected_at=?
        WHERE provider=? AND disconnected_at IS NULL
    `, externalID, encodeTime(now), string(provider))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = a.db.ExecContext(ctx, `
            INSERT INTO accounts (provider, external_id, connected_at)
            VALUES (?,?,?)
        `, string(provider), externalID, encodeTime(now))
		if err != nil {
			return nil, err
		}
	}
	return a.Get(ctx, provider)
}

func (a *accounts) Get(ctx context.Context, provider model.ProviderKind) (*model.ConnectedAccount, error) {
	row := a.db.QueryRowContext(ctx, `
        SELECT provider, external_id, connected_at, last_sync, disconnected_at
        FROM accounts WHERE provider=? AND disconnected_at IS NULL
    `, string(provider))
	return scanAccount(row)
}

func (a *accounts) List(ctx context.Context) ([]*model.ConnectedAccount, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT provider, external_id, connected_at, last_sync, disconnected_at
        FROM accounts WHERE disconnected_at IS NULL ORDER BY provider
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ConnectedAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (a *accounts) SetLastSync(ctx context.Context, provider model.ProviderKind, t time.Time) error {
	res, err := a.db.ExecContext(ctx, `
        UPDATE accounts SET last_sync=? WHERE provider=? AND disconnected_at IS NULL
    `, encodeTime(t), string(provider))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (a *accounts) Disconnect(ctx context.Context, provider model.ProviderKind) error {
	res, err := a.db.ExecContext(ctx, `
        UPDATE accounts SET disconnected_at=? WHERE provider=? AND disconnected_at IS NULL
    `, encodeTime(time.Now()), string(provider))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAccount(row rowScanner) (*model.ConnectedAccount, error) {
	var (
		out          model.ConnectedAccount
		provider     string
		connected    string
		lastSync     sql.NullString
		disconnected sql.NullString
	)
	if err := row.Scan(&provider, &out.ExternalID, &connected, &lastSync, &disconnected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
	t, err := decodeTime(connected)
	if err != nil {
		return nil, err
	}
	out.ConnectedAt = t
	if out.LastSync, err = decodeTimePtr(lastSync); err != nil {
		return nil, err
	}
	if out.DisconnectedAt, err = decodeTimePtr(disconnected); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Jobs ---

type jobs struct{ db *sql.DB }

func (j *jobs) Start(ctx context.Context, m *model.SyncJob) error {
	if m.StartedAt.IsZero() {
		m.StartedAt = time.Now().UTC()
	}
	m.Status = model.JobRunning
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO sync_jobs (job_id, provider, account_id, status, started_at, window_start, window_end)
        VALUES (?,?,?,?,?,?,?)
    `, m.JobID, string(m.Provider), m.AccountID, string(m.Status),
		encodeTime(m.StartedAt), encodeTime(m.WindowStart), encodeTime(m.WindowEnd))
	if err != nil {
		// The only unique index this insert can trip (beyond the fresh job id)
		// is the running-jobs-per-provider guard.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "constraint failed") {
			return model.ErrAlreadySyncing
		}
		return err
	}
	return nil
}

func (j *jobs) Finish(ctx context.Context, jobID string, status model.JobStatus, counts model.SyncCounts, jobErr string) error {
	res, err := j.db.ExecContext(ctx, `
        UPDATE sync_jobs
        SET status=?, finished_at=?, fetched=?, normalized=?, ingested=?,
            skipped_duplicate=?, skipped_malformed=?, failed=?, error=?
        WHERE job_id=? AND status='running'
    `, string(status), encodeTime(time.Now()), counts.Fetched, counts.Normalized,
		counts.Ingested, counts.SkippedDuplicate, counts.SkippedMalformed,
		counts.Failed, jobErr, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not running: %w", jobID, model.ErrNotFound)
	}
	return nil
}

func (j *jobs) Get(ctx context.Context, jobID string) (*model.SyncJob, error) {
	row := j.db.QueryRowContext(ctx, selectJobSQL+` WHERE job_id=?`, jobID)
	return scanJob(row)
}

func (j *jobs) Latest(ctx context.Context, provider model.ProviderKind) (*model.SyncJob, error) {
	row := j.db.QueryRowContext(ctx, selectJobSQL+`
        WHERE provider=? ORDER BY started_at DESC, job_id DESC LIMIT 1
    `, string(provider))
	return scanJob(row)
}

const selectJobSQL = `
    SELECT job_id, provider, account_id, status, started_at, finished_at,
           window_start, window_end, fetched, normalized, ingested,
           skipped_duplicate, skipped_malformed, failed, error
    FROM sync_jobs`

func scanJob(row rowScanner) (*model.SyncJob, error) {
	var (
		out      model.SyncJob
		provider string
		status   string
		started  string
		finished sql.NullString
		wStart   string
		wEnd     string
	)
	err := row.Scan(&out.JobID, &provider, &out.AccountID, &status, &started, &finished,
		&wStart, &wEnd, &out.Counts.Fetched, &out.Counts.Normalized, &out.Counts.Ingested,
		&out.Counts.SkippedDuplicate, &out.Counts.SkippedMalformed, &out.Counts.Failed, &out.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
	out.Status = model.JobStatus(status)
	if out.StartedAt, err = decodeTime(started); err != nil {
		return nil, err
	}
	if out.FinishedAt, err = decodeTimePtr(finished); err != nil {
		return nil, err
	}
	if out.WindowStart, err = decodeTime(wStart); err != nil {
		return nil, err
	}
	if out.WindowEnd, err = decodeTime(wEnd); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Episodes ---

type episodes struct{ db *sql.DB }

func (e *episodes) Record(ctx context.Context, ref *model.EpisodeRef) (bool, error) {
	res, err := e.db.ExecContext(ctx, `
        INSERT INTO episodes (provider, account_id, source_id, episode_id, source, occurred_at, created_at)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT (provider, account_id, source_id) DO NOTHING
    `, string(ref.Provider), ref.AccountID, ref.SourceID, ref.EpisodeID,
		ref.Source, encodeTime(ref.OccurredAt), encodeTime(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *episodes) Exists(ctx context.Context, provider model.ProviderKind, accountID, sourceID string) (bool, error) {
	var one int
	err := e.db.QueryRowContext(ctx, `
        SELECT 1 FROM episodes WHERE provider=? AND account_id=? AND source_id=?
    `, string(provider), accountID, sourceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *episodes) Get(ctx context.Context, episodeID string) (*model.EpisodeRef, error) {
	var (
		out      model.EpisodeRef
		provider string
		occurred string
	)
	err := e.db.QueryRowContext(ctx, `
        SELECT provider, account_id, source_id, episode_id, source, occurred_at
        FROM episodes WHERE episode_id=?
    `, episodeID).Scan(&provider, &out.AccountID, &out.SourceID, &out.EpisodeID, &out.Source, &occurred)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
	if out.OccurredAt, err = decodeTime(occurred); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *episodes) ResolveSources(ctx context.Context, episodeIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(episodeIDs))
	var out []string
	for _, id := range episodeIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ref, err := e.Get(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ref.Source)
	}
	return out, nil
}
