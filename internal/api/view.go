package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/console/internal/derived"
	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentSource fetches on-demand data the poller does not cover
type AgentSource interface {
	Agent(ctx context.Context, agentID string) (types.Agent, error)
	RoutingMatrix(ctx context.Context, batchSize int) (map[string]interface{}, error)
}

// MaxMatrixBatch bounds the diagnostic routing matrix request
const MaxMatrixBatch = 100

// ViewHandler serves the console's display model
type ViewHandler struct {
	store     *store.Store
	source    AgentSource
	connected func() bool
	logger    zerolog.Logger
}

// NewViewHandler creates a new ViewHandler
func NewViewHandler(st *store.Store, source AgentSource, connected func() bool, logger zerolog.Logger) *ViewHandler {
	if connected == nil {
		connected = func() bool { return true }
	}
	return &ViewHandler{
		store:     st,
		source:    source,
		connected: connected,
		logger:    logger.With().Str("component", "view_handler").Logger(),
	}
}

// GetView returns the current display model
// GET /view
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, derived.BuildView(h.store.Snapshot(), h.connected()))
}

// GetAgent fetches one agent's detail and selects it in the view
// GET /agents/{id}
func (h *ViewHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	agent, err := h.source.Agent(r.Context(), agentID)
	if err != nil {
		h.logger.Warn().Err(err).Str("agent_id", agentID).Msg("failed to fetch agent")
		writeBackendError(w, err)
		return
	}

	h.store.SetSelectedAgent(&agent)
	writeJSON(w, http.StatusOK, derived.NewAgentCard(agent))
}

// RoutingMatrix returns the backend's routing matrix for a sample batch
// POST /routing/matrix
func (h *ViewHandler) RoutingMatrix(w http.ResponseWriter, r *http.Request) {
	req := struct {
		BatchSize int `json:"batch_size"`
	}{BatchSize: 10}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.BatchSize < 1 || req.BatchSize > MaxMatrixBatch {
		writeError(w, http.StatusBadRequest, "batch_size must be between 1 and 100")
		return
	}

	matrix, err := h.source.RoutingMatrix(r.Context(), req.BatchSize)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to fetch routing matrix")
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matrix)
}

// ResetView restores the default view state, including the persisted record
// POST /view/reset
func (h *ViewHandler) ResetView(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	h.logger.Info().Msg("view state reset")
	writeJSON(w, http.StatusOK, map[string]string{"message": "view state reset"})
}
