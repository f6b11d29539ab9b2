// Package postgres implements store.Store on PostgreSQL via the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id              BIGSERIAL PRIMARY KEY,
    provider        TEXT NOT NULL,
    external_id     TEXT NOT NULL,
    connected_at    TIMESTAMPTZ NOT NULL,
    last_sync       TIMESTAMPTZ,
    disconnected_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_live_provider
    ON accounts(provider) WHERE disconnected_at IS NULL;

CREATE TABLE IF NOT EXISTS sync_jobs (
    job_id            TEXT PRIMARY KEY,
    provider          TEXT NOT NULL,
    account_id        TEXT NOT NULL,
    status            TEXT NOT NULL,
    started_at        TIMESTAMPTZ NOT NULL,
    finished_at       TIMESTAMPTZ,
    window_start      TIMESTAMPTZ NOT NULL,
    window_end        TIMESTAMPTZ NOT NULL,
    fetched           BIGINT NOT NULL DEFAULT 0,
    normalized        BIGINT NOT NULL DEFAULT 0,
    ingested          BIGINT NOT NULL DEFAULT 0,
    skipped_duplicate BIGINT NOT NULL DEFAULT 0,
    skipped_malformed BIGINT NOT NULL DEFAULT 0,
    failed            BIGINT NOT NULL DEFAULT 0,
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
    occurred_at TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (provider, account_id, source_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS episodes_episode_id ON episodes(episode_id);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver, verifies
// connectivity and applies the schema.
func Open(dsn string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &pgStore{db: db}, nil
}

// NewWithDB wraps an existing connection pool (used by tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &pgStore{db: db}, nil
}

type pgStore struct{ db *sql.DB }

func (s *pgStore) Accounts() store.Accounts { return &accounts{db: s.db} }
func (s *pgStore) Jobs() store.Jobs         { return &jobs{db: s.db} }
func (s *pgStore) Episodes() store.Episodes { return &episodes{db: s.db} }
func (s *pgStore) Close() error             { return s.db.Close() }

// HealthPing implements health checking for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Accounts ---

type accounts struct{ db *sql.DB }

func (a *accounts) Upsert(ctx context.Context, provider model.ProviderKind, externalID string) (*model.ConnectedAccount, error) {
	now := time.Now().UTC()
	res, err := a.db.ExecContext(ctx, `
        UPDATE accounts SET external_id=$1, connected_at=$2
        WHERE provider=$3 AND disconnected_at IS NULL
    `, externalID, now, string(provider))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = a.db.ExecContext(ctx, `
            INSERT INTO accounts (provider, external_id, connected_at)
            VALUES ($1,$2,$3)
        `, string(provider), externalID, now)
		if err != nil {
			return nil, err
		}
	}
	return a.Get(ctx, provider)
}

func (a *accounts) Get(ctx context.Context, provider model.ProviderKind) (*model.ConnectedAccount, error) {
	row := a.db.QueryRowContext(ctx, `
        SELECT provider, external_id, connected_at, last_sync, disconnected_at
        FROM accounts WHERE provider=$1 AND disconnected_at IS NULL
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
        UPDATE accounts SET last_sync=$1 WHERE provider=$2 AND disconnected_at IS NULL
    `, t.UTC(), string(provider))
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
        UPDATE accounts SET disconnected_at=now() WHERE provider=$1 AND disconnected_at IS NULL
    `, string(provider))
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
		out      model.ConnectedAccount
		provider string
	)
	err := row.Scan(&provider, &out.ExternalID, &out.ConnectedAt, &out.LastSync, &out.DisconnectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
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
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, m.JobID, string(m.Provider), m.AccountID, string(m.Status),
		m.StartedAt, m.WindowStart.UTC(), m.WindowEnd.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadySyncing
		}
		return err
	}
	return nil
}

func (j *jobs) Finish(ctx context.Context, jobID string, status model.JobStatus, counts model.SyncCounts, jobErr string) error {
	res, err := j.db.ExecContext(ctx, `
        UPDATE sync_jobs
        SET status=$1, finished_at=now(), fetched=$2, normalized=$3, ingested=$4,
            skipped_duplicate=$5, skipped_malformed=$6, failed=$7, error=$8
        WHERE job_id=$9 AND status='running'
    `, string(status), counts.Fetched, counts.Normalized, counts.Ingested,
		counts.SkippedDuplicate, counts.SkippedMalformed, counts.Failed, jobErr, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not running: %w", jobID, model.ErrNotFound)
	}
	return nil
}

const selectJobSQL = `
    SELECT job_id, provider, account_id, status, started_at, finished_at,
           window_start, window_end, fetched, normalized, ingested,
           skipped_duplicate, skipped_malformed, failed, error
    FROM sync_jobs`

func (j *jobs) Get(ctx context.Context, jobID string) (*model.SyncJob, error) {
	row := j.db.QueryRowContext(ctx, selectJobSQL+` WHERE job_id=$1`, jobID)
	return scanJob(row)
}

func (j *jobs) Latest(ctx context.Context, provider model.ProviderKind) (*model.SyncJob, error) {
	row := j.db.QueryRowContext(ctx, selectJobSQL+`
        WHERE provider=$1 ORDER BY started_at DESC, job_id DESC LIMIT 1
    `, string(provider))
	return scanJob(row)
}

func scanJob(row rowScanner) (*model.SyncJob, error) {
	var (
		out      model.SyncJob
		provider string
		status   string
	)
	err := row.Scan(&out.JobID, &provider, &out.AccountID, &status, &out.StartedAt,
		&out.FinishedAt, &out.WindowStart, &out.WindowEnd,
		&out.Counts.Fetched, &out.Counts.Normalized, &out.Counts.Ingested,
		&out.Counts.SkippedDuplicate, &out.Counts.SkippedMalformed, &out.Counts.Failed, &out.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
	out.Status = model.JobStatus(status)
	return &out, nil
}

// --- Episodes ---

type episodes struct{ db *sql.DB }

func (e *episodes) Record(ctx context.Context, ref *model.EpisodeRef) (bool, error) {
	res, err := e.db.ExecContext(ctx, `
        INSERT INTO episodes (provider, account_id, source_id, episode_id, source, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (provider, account_id, source_id) DO NOTHING
    `, string(ref.Provider), ref.AccountID, ref.SourceID, ref.EpisodeID,
		ref.Source, ref.OccurredAt.UTC())
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
        SELECT 1 FROM episodes WHERE provider=$1 AND account_id=$2 AND source_id=$3
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
	)
	err := e.db.QueryRowContext(ctx, `
        SELECT provider, account_id, source_id, episode_id, source, occurred_at
        FROM episodes WHERE episode_id=$1
    `, episodeID).Scan(&provider, &out.AccountID, &out.SourceID, &out.EpisodeID, &out.Source, &out.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Provider = model.ProviderKind(provider)
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
