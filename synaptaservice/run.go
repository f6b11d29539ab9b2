// Package synaptaservice wires the pipeline together and runs the HTTP
// server: store, graph backend, LLM, Connect client, provider gateways, sync
// orchestrator and answer engine.
package synaptaservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/synapta-ai/synapta/internal/answer"
	"github.com/synapta-ai/synapta/internal/api"
	"github.com/synapta-ai/synapta/internal/config"
	"github.com/synapta-ai/synapta/internal/connect"
	"github.com/synapta-ai/synapta/internal/factory"
	"github.com/synapta-ai/synapta/internal/ingest"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/platform/logger"
	"github.com/synapta-ai/synapta/internal/provider"
	"github.com/synapta-ai/synapta/internal/provider/gmailfeed"
	"github.com/synapta-ai/synapta/internal/provider/hubspotfeed"
	"github.com/synapta-ai/synapta/internal/syncer"
)

// Run starts the service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("synapta")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("graph_driver", cfg.GraphDriver).
		Str("llm_provider", cfg.LLMProvider).
		Int("http_port", cfg.HTTPPort).
		Msg("synapta service starting")

	// Root context bound to SIGINT/SIGTERM; cancelling it also winds down
	// background sync jobs.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	g, err := factory.NewGraph(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("graph backend unavailable")
		return err
	}

	llmProvider, err := factory.NewLLM(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("llm provider unavailable")
		return err
	}

	connectClient := connect.NewClient(cfg)
	gateways := map[model.ProviderKind]provider.Gateway{
		model.ProviderGmail:   gmailfeed.New(connectClient, cfg.PageSize, log),
		model.ProviderHubSpot: hubspotfeed.New(connectClient, cfg.PageSize, log),
	}

	ingester := ingest.New(g, st.Episodes(), cfg.GraphGroupID, log)
	orchestrator := syncer.New(ctx, st, gateways, ingester, cfg, log)
	engine := answer.New(g, llmProvider, st.Episodes(), cfg, log)

	router := api.NewRouter(api.Deps{
		Connect: connectClient,
		Sync:    orchestrator,
		Chat:    engine,
		Graph:   g,
		Store:   st,
		Logger:  log,
	})

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
			return err
		}
		// Let background jobs record their terminal state before the store
		// closes.
		orchestrator.Wait()
		log.Info().Msg("server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return fmt.Errorf("http server: %w", err)
	}
}
