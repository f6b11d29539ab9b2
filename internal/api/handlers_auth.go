package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/synapta-ai/synapta/internal/api/respond"
	"github.com/synapta-ai/synapta/internal/connect"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

// ConnectService is the slice of the Connect client the handlers need.
type ConnectService interface {
	CreateConnectToken(ctx context.Context) (*connect.ConnectToken, error)
	AccountForApp(ctx context.Context, appSlug string) (string, error)
}

// appSlugs maps provider kinds to their Connect app slugs.
var appSlugs = map[model.ProviderKind]string{
	model.ProviderGmail:   "gmail",
	model.ProviderHubSpot: "hubspot",
}

// AuthHandler issues connect tokens and persists completed connections.
type AuthHandler struct {
	connect  ConnectService
	accounts store.Accounts
}

func NewAuthHandler(c ConnectService, accounts store.Accounts) *AuthHandler {
	return &AuthHandler{connect: c, accounts: accounts}
}

// CreateConnectToken mints a short-lived token the frontend uses to open the
// OAuth popup.
func (h *AuthHandler) CreateConnectToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.connect.CreateConnectToken(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("connect token creation failed")
		respond.WriteError(w, http.StatusBadGateway, "failed to create connect token")
		return
	}
	respond.WriteJSON(w, http.StatusOK, tok)
}

// SaveIntegration resolves the freshly-connected account on the proxy side
// and stores it as the provider's live account.
func (h *AuthHandler) SaveIntegration(w http.ResponseWriter, r *http.Request) {
	kind := model.ProviderKind(mux.Vars(r)["provider"])
	if !kind.Valid() {
		respond.WriteBadRequest(w, "unknown provider")
		return
	}

	accountID, err := h.connect.AccountForApp(r.Context(), appSlugs[kind])
	if err != nil {
		if errors.Is(err, model.ErrNotConnected) {
			respond.WriteNotFound(w, "no connected account found for provider")
			return
		}
		log.Error().Err(err).Str("provider", string(kind)).Msg("account lookup failed")
		respond.WriteError(w, http.StatusBadGateway, "failed to look up connected account")
		return
	}

	account, err := h.accounts.Upsert(r.Context(), kind, accountID)
	if err != nil {
		log.Error().Err(err).Str("provider", string(kind)).Msg("failed to save integration")
		respond.WriteInternalError(w, "failed to save integration")
		return
	}
	respond.WriteJSON(w, http.StatusOK, account)
}

// DisconnectIntegration tombstones the provider's live account.
func (h *AuthHandler) DisconnectIntegration(w http.ResponseWriter, r *http.Request) {
	kind := model.ProviderKind(mux.Vars(r)["provider"])
	if !kind.Valid() {
		respond.WriteBadRequest(w, "unknown provider")
		return
	}

	if err := h.accounts.Disconnect(r.Context(), kind); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "provider is not connected")
			return
		}
		log.Error().Err(err).Str("provider", string(kind)).Msg("disconnect failed")
		respond.WriteInternalError(w, "failed to disconnect integration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
