package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/api/recovery"
	"github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/store"
)

// Deps bundles the services the HTTP surface exposes.
type Deps struct {
	Connect ConnectService
	Sync    SyncService
	Chat    ChatService
	Graph   graph.Graph
	Store   store.Store
	Logger  zerolog.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware(deps.Logger))

	authHandler := NewAuthHandler(deps.Connect, deps.Store.Accounts())
	syncHandler := NewSyncHandler(deps.Sync)
	chatHandler := NewChatHandler(deps.Chat)
	healthHandler := NewHealthHandler(deps.Graph)

	// Health endpoint
	router.HandleFunc("/api/v1/health", healthHandler.CheckHealth).Methods("GET")

	// OAuth connect flow
	router.HandleFunc("/api/v1/auth/connect-token", authHandler.CreateConnectToken).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{provider}/save", authHandler.SaveIntegration).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{provider}", authHandler.DisconnectIntegration).Methods("DELETE")

	// Sync control
	router.HandleFunc("/api/v1/sync/status", syncHandler.GetStatus).Methods("GET")
	router.HandleFunc("/api/v1/sync/jobs/{jobId}", syncHandler.GetJob).Methods("GET")
	router.HandleFunc("/api/v1/sync/{provider}", syncHandler.StartSync).Methods("POST")

	// Grounded chat
	router.HandleFunc("/api/v1/agent/chat", chatHandler.Chat).Methods("POST")

	return router
}
