package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/synapta-ai/synapta/internal/api/respond"
	"github.com/synapta-ai/synapta/internal/model"
)

// SyncService is the orchestrator surface the handlers need.
type SyncService interface {
	Start(ctx context.Context, kind model.ProviderKind) (*model.SyncJob, error)
	Status(ctx context.Context) (map[model.ProviderKind]model.ProviderStatus, error)
	Job(ctx context.Context, jobID string) (*model.SyncJob, error)
}

// SyncHandler exposes sync control and introspection.
type SyncHandler struct {
	sync SyncService
}

func NewSyncHandler(s SyncService) *SyncHandler {
	return &SyncHandler{sync: s}
}

// StartSync kicks off a background sync and returns 202 with the job row.
// A job already running for the provider yields 409.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	kind := model.ProviderKind(mux.Vars(r)["provider"])
	if !kind.Valid() {
		respond.WriteBadRequest(w, "unknown provider")
		return
	}

	job, err := h.sync.Start(r.Context(), kind)
	switch {
	case errors.Is(err, model.ErrNotConnected):
		respond.WriteBadRequest(w, "provider is not connected")
	case errors.Is(err, model.ErrAlreadySyncing):
		respond.WriteConflict(w, "a sync is already running for this provider")
	case err != nil:
		log.Error().Err(err).Str("provider", string(kind)).Msg("sync start failed")
		respond.WriteInternalError(w, "failed to start sync")
	default:
		respond.WriteJSON(w, http.StatusAccepted, job)
	}
}

// GetStatus summarizes every provider's connection and latest job.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.Status(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("status query failed")
		respond.WriteInternalError(w, "failed to load sync status")
		return
	}
	respond.WriteJSON(w, http.StatusOK, status)
}

// GetJob returns one sync job by id.
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	job, err := h.sync.Job(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "job not found")
			return
		}
		log.Error().Err(err).Str("job_id", jobID).Msg("job lookup failed")
		respond.WriteInternalError(w, "failed to load job")
		return
	}
	respond.WriteJSON(w, http.StatusOK, job)
}
