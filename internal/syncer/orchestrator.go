// Package syncer drives provider syncs: it fetches pages through a gateway,
// normalizes records into episodes and hands them to the ingester under a
// bounded worker pool. One job may run per provider at a time; the job store
// enforces that with its single-flight guard.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/config"
	"github.com/synapta-ai/synapta/internal/episode"
	"github.com/synapta-ai/synapta/internal/ingest"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/provider"
	"github.com/synapta-ai/synapta/internal/store"
)

// maxRetryDelay caps the page-retry backoff.
const maxRetryDelay = 30 * time.Second

// Orchestrator owns the background sync lifecycle. Start returns as soon as
// the job row is committed; the fetch/normalize/ingest loop runs on the
// orchestrator's base context so an accepted job survives the HTTP request
// that triggered it.
type Orchestrator struct {
	baseCtx  context.Context
	store    store.Store
	gateways map[model.ProviderKind]provider.Gateway
	ingester *ingest.Ingester
	cfg      *config.Config
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

func New(baseCtx context.Context, st store.Store, gateways map[model.ProviderKind]provider.Gateway, ing *ingest.Ingester, cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		baseCtx:  baseCtx,
		store:    st,
		gateways: gateways,
		ingester: ing,
		cfg:      cfg,
		logger:   logger.With().Str("component", "syncer").Logger(),
	}
}

// Start begins a sync for the provider's live account. It returns
// model.ErrNotConnected when no live account exists and
// model.ErrAlreadySyncing when a job is already running for the provider.
func (o *Orchestrator) Start(ctx context.Context, kind model.ProviderKind) (*model.SyncJob, error) {
	gw, ok := o.gateways[kind]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for provider %q", kind)
	}

	account, err := o.store.Accounts().Get(ctx, kind)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotConnected
		}
		return nil, err
	}

	now := time.Now().UTC()
	windowStart := now.Add(-o.cfg.SyncWindow())
	if account.LastSync != nil && account.LastSync.After(windowStart) {
		windowStart = *account.LastSync
	}

	job := &model.SyncJob{
		JobID:       uuid.NewString(),
		Provider:    kind,
		AccountID:   account.ExternalID,
		Status:      model.JobRunning,
		StartedAt:   now,
		WindowStart: windowStart,
		WindowEnd:   now,
	}
	if err := o.store.Jobs().Start(ctx, job); err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(gw, job)
	}()

	o.logger.Info().
		Str("job_id", job.JobID).
		Str("provider", string(kind)).
		Time("window_start", windowStart).
		Msg("sync started")
	return job, nil
}

// Wait blocks until all in-flight sync jobs have finished. Used during
// graceful shutdown.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Status summarizes every known provider for the UI.
func (o *Orchestrator) Status(ctx context.Context) (map[model.ProviderKind]model.ProviderStatus, error) {
	out := make(map[model.ProviderKind]model.ProviderStatus, len(model.Providers))
	for _, kind := range model.Providers {
		var ps model.ProviderStatus
		account, err := o.store.Accounts().Get(ctx, kind)
		switch {
		case err == nil:
			ps.Connected = true
			ps.LastSync = account.LastSync
		case errors.Is(err, model.ErrNotFound):
		default:
			return nil, err
		}
		job, err := o.store.Jobs().Latest(ctx, kind)
		switch {
		case err == nil:
			ps.LastJob = job
		case errors.Is(err, model.ErrNotFound):
		default:
			return nil, err
		}
		out[kind] = ps
	}
	return out, nil
}

// Job returns one job by id.
func (o *Orchestrator) Job(ctx context.Context, jobID string) (*model.SyncJob, error) {
	return o.store.Jobs().Get(ctx, jobID)
}

func (o *Orchestrator) run(gw provider.Gateway, job *model.SyncJob) {
	ctx := o.baseCtx
	log := o.logger.With().Str("job_id", job.JobID).Str("provider", string(job.Provider)).Logger()

	var counts model.SyncCounts
	pool := newIngestPool(ctx, o.ingester, o.cfg.IngestWorkers, log)

	var jobErr error
	cursor := ""
pages:
	for {
		page, err := o.fetchWithRetry(ctx, gw, job.AccountID, cursor, job.WindowStart)
		if err != nil {
			jobErr = err
			break
		}
		counts.Fetched += len(page.Records)
		for _, rec := range page.Records {
			if ctx.Err() != nil {
				jobErr = ctx.Err()
				break pages
			}
			ep, err := episode.Build(job.AccountID, rec)
			if err != nil {
				counts.SkippedMalformed++
				log.Warn().Err(err).Str("record_id", rec.ID).Msg("skipping malformed record")
				continue
			}
			counts.Normalized++
			pool.submit(ep)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	pool.wait()
	counts.Ingested = int(pool.committed.Load())
	counts.SkippedDuplicate = int(pool.duplicates.Load())
	counts.Failed = int(pool.failed.Load())

	status := model.JobSucceeded
	errMsg := ""
	switch {
	case jobErr != nil:
		status = model.JobFailed
		errMsg = jobErr.Error()
	case counts.SkippedMalformed+counts.Failed > 0:
		status = model.JobPartial
	}

	// Terminal bookkeeping must survive shutdown cancellation.
	finishCtx := context.WithoutCancel(ctx)
	if err := o.store.Jobs().Finish(finishCtx, job.JobID, status, counts, errMsg); err != nil {
		log.Error().Err(err).Msg("failed to record job result")
	}
	if status == model.JobSucceeded || status == model.JobPartial {
		if err := o.store.Accounts().SetLastSync(finishCtx, job.Provider, job.WindowEnd); err != nil {
			log.Error().Err(err).Msg("failed to advance last-sync marker")
		}
	}
	log.Info().
		Str("status", string(status)).
		Int("fetched", counts.Fetched).
		Int("ingested", counts.Ingested).
		Int("duplicates", counts.SkippedDuplicate).
		Int("malformed", counts.SkippedMalformed).
		Int("failed", counts.Failed).
		Msg("sync finished")
}

// fetchWithRetry retries retryable page fetches with bounded exponential
// backoff. Expired credentials abort immediately; retrying them cannot help.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, gw provider.Gateway, accountID, cursor string, since time.Time) (*provider.Page, error) {
	var lastErr error
	for attempt := 0; attempt < o.cfg.PageRetryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := o.cfg.PageRetryBase() << (attempt - 1)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		pctx, cancel := context.WithTimeout(ctx, o.cfg.PageTimeout())
		page, err := gw.FetchPage(pctx, accountID, cursor, since)
		cancel()
		if err == nil {
			return page, nil
		}
		if errors.Is(err, model.ErrAuthExpired) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !model.Retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		o.logger.Warn().Err(err).Int("attempt", attempt+1).Str("cursor", cursor).Msg("page fetch failed, retrying")
	}
	return nil, fmt.Errorf("page fetch retries exhausted: %w", lastErr)
}

// ingestPool runs ingestions on a bounded set of workers. Cancellation stops
// new submissions but lets in-flight ingests finish: a half-cancelled ingest
// would otherwise leave graph writes without provenance rows.
type ingestPool struct {
	ctx        context.Context
	ingestCtx  context.Context
	ingester   *ingest.Ingester
	sem        chan struct{}
	wg         sync.WaitGroup
	logger     zerolog.Logger
	committed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func newIngestPool(ctx context.Context, ing *ingest.Ingester, workers int, logger zerolog.Logger) *ingestPool {
	return &ingestPool{
		ctx:       ctx,
		ingestCtx: context.WithoutCancel(ctx),
		ingester:  ing,
		sem:       make(chan struct{}, workers),
		logger:    logger,
	}
}

func (p *ingestPool) submit(ep model.Episode) {
	if p.ctx.Err() != nil {
		p.failed.Add(1)
		return
	}
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		outcome, err := p.ingester.Ingest(p.ingestCtx, ep)
		if err != nil {
			p.failed.Add(1)
			p.logger.Warn().Err(err).Str("episode_id", ep.EpisodeID).Msg("episode ingest failed")
			return
		}
		switch outcome {
		case ingest.Committed:
			p.committed.Add(1)
		case ingest.DuplicateSkipped:
			p.duplicates.Add(1)
		}
	}()
}

func (p *ingestPool) wait() { p.wg.Wait() }
