package api

import (
	"context"
	"net/http"
	"time"

	"github.com/synapta-ai/synapta/internal/api/respond"
	"github.com/synapta-ai/synapta/internal/graph"
)

// HealthHandler reports service liveness and graph reachability.
type HealthHandler struct {
	graph graph.Graph
}

func NewHealthHandler(g graph.Graph) *HealthHandler {
	return &HealthHandler{graph: g}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Graph   string `json:"graph"`
}

// CheckHealth always answers; a failing graph backend degrades the status
// instead of failing the endpoint, so load balancers keep routing while the
// graph recovers.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Service: "synapta", Graph: "ok"}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.graph.HealthPing(ctx); err != nil {
		resp.Status = "degraded"
		resp.Graph = err.Error()
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}
