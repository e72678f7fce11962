package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Controller runs operator simulation commands
type Controller interface {
	Start(ctx context.Context, batchCount int, policyName string) error
	Stop(ctx context.Context) error
}

// SimulationHandler exposes simulation commands to operators
type SimulationHandler struct {
	controller Controller
	logger     zerolog.Logger
}

// NewSimulationHandler creates a new SimulationHandler
func NewSimulationHandler(controller Controller, logger zerolog.Logger) *SimulationHandler {
	return &SimulationHandler{
		controller: controller,
		logger:     logger.With().Str("component", "simulation_handler").Logger(),
	}
}

// Start starts a simulation run
// POST /simulation/start {"n_batches": 50, "policy": "CUCB-OTA"}
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NBatches int    `json:"n_batches"`
		Policy   string `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.controller.Start(r.Context(), req.NBatches, req.Policy); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "simulation started",
		"n_batches": req.NBatches,
		"policy":    req.Policy,
	})
}

// Stop stops the running simulation
// POST /simulation/stop
func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(r.Context()); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "simulation stopped"})
}
