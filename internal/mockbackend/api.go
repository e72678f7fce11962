package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// MaxBatches is the largest run the stub accepts
const MaxBatches = 500

// API serves the routing-simulation REST surface over a Simulation
type API struct {
	sim    *Simulation
	logger zerolog.Logger
}

// NewAPI creates a new API
func NewAPI(sim *Simulation, logger zerolog.Logger) *API {
	return &API{
		sim:    sim,
		logger: logger.With().Str("component", "mock_api").Logger(),
	}
}

// SetupRoutes configures HTTP routes under router
func (api *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/config", api.configHandler).Methods("GET")
	router.HandleFunc("/metrics/current", api.currentHandler).Methods("GET")
	router.HandleFunc("/metrics/historical", api.historicalHandler).Methods("GET")
	router.HandleFunc("/agents", api.agentsHandler).Methods("GET")
	router.HandleFunc("/agents/{id}", api.agentHandler).Methods("GET")
	router.HandleFunc("/assignments/active", api.assignmentsHandler).Methods("GET")
	router.HandleFunc("/policies/compare", api.policiesHandler).Methods("GET")
	router.HandleFunc("/constraints/dual", api.dualHandler).Methods("GET")
	router.HandleFunc("/routing/matrix", api.matrixHandler).Methods("POST")
	router.HandleFunc("/simulation/status", api.statusHandler).Methods("GET")
	router.HandleFunc("/simulation/start", api.startHandler).Methods("POST")
	router.HandleFunc("/simulation/stop", api.stopHandler).Methods("POST")
}

// Start serves the API under prefix on addr until ctx is cancelled
func (api *API) Start(ctx context.Context, addr, prefix string) error {
	router := mux.NewRouter()
	api.SetupRoutes(router.PathPrefix(prefix).Subrouter())

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down mock backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Str("prefix", prefix).Msg("mock backend started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (api *API) configHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, api.sim.Config())
}

func (api *API) currentHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, api.sim.Current())
}

// historicalHandler serves history with the field names of the original
// batch records (avg_csat, avg_aht, gini_coefficient)
func (api *API) historicalHandler(w http.ResponseWriter, r *http.Request) {
	history := api.sim.History()
	data := make([]map[string]interface{}, len(history))
	for i, m := range history {
		data[i] = map[string]interface{}{
			"batch_id":          m.BatchID,
			"avg_csat":          m.CSAT,
			"avg_aht":           m.AHT,
			"sla_met_rate":      m.SLAMetRate,
			"gini_coefficient":  m.Gini,
			"throughput":        m.Throughput,
			"total_assignments": m.TotalAssignments,
		}
	}
	respond(w, map[string]interface{}{"data": data})
}

func (api *API) agentsHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]interface{}{"agents": api.sim.Agents()})
}

func (api *API) agentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	agent, ok := api.sim.Agent(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	respond(w, agent)
}

func (api *API) assignmentsHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]interface{}{"assignments": api.sim.Assignments()})
}

func (api *API) policiesHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]interface{}{"policies": api.sim.Policies()})
}

func (api *API) dualHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, api.sim.Dual())
}

func (api *API) matrixHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BatchSize <= 0 {
		http.Error(w, "batch_size must be positive", http.StatusBadRequest)
		return
	}
	respond(w, api.sim.RoutingMatrix(req.BatchSize))
}

func (api *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, api.sim.Status())
}

func (api *API) startHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NBatches int    `json:"n_batches"`
		Policy   string `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NBatches < 1 || req.NBatches > MaxBatches {
		http.Error(w, "n_batches must be between 1 and 500", http.StatusBadRequest)
		return
	}
	policy, err := types.ParsePolicy(req.Policy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := api.sim.Start(req.NBatches, policy); err != nil {
		if errors.Is(err, ErrRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		api.logger.Error().Err(err).Msg("failed to start simulation")
		http.Error(w, "failed to start simulation", http.StatusInternalServerError)
		return
	}

	respond(w, map[string]interface{}{
		"message":   "simulation started",
		"n_batches": req.NBatches,
		"policy":    policy,
	})
}

func (api *API) stopHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.sim.Stop(); err != nil {
		if errors.Is(err, ErrNotRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		api.logger.Error().Err(err).Msg("failed to stop simulation")
		http.Error(w, "failed to stop simulation", http.StatusInternalServerError)
		return
	}
	respond(w, map[string]string{"message": "simulation stopped"})
}
