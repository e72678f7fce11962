package mockbackend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/rs/zerolog"
)

var (
	ErrRunning    = errors.New("simulation already running")
	ErrNotRunning = errors.New("simulation not running")
)

// Settings shape the synthetic run
type Settings struct {
	Agents        int
	BatchSize     int
	BatchInterval time.Duration
	Seed          int64
}

// Simulation holds the state served by the stub backend
type Simulation struct {
	settings Settings
	gen      *Generator
	logger   zerolog.Logger

	mu          sync.RWMutex
	agents      []types.Agent
	current     types.MetricsSnapshot
	history     []types.MetricsSnapshot
	assignments []types.Assignment
	dual        types.DualVariables
	policies    map[types.Policy]*policyTotals
	status      types.SimulationStatus
	policy      types.Policy
	target      int
	startedAt   time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

type policyTotals struct {
	batches int
	csat    float64
	aht     float64
	sla     float64
	gini    float64
	total   int
}

// NewSimulation creates an idle simulation
func NewSimulation(settings Settings, logger zerolog.Logger) *Simulation {
	gen := NewGenerator(settings.Seed)
	return &Simulation{
		settings: settings,
		gen:      gen,
		logger:   logger.With().Str("component", "simulation").Logger(),
		agents:   gen.GenerateAgents(settings.Agents),
		dual:     types.DefaultDualVariables,
		policies: make(map[types.Policy]*policyTotals),
	}
}

// Start begins a run of n batches with policy
func (s *Simulation) Start(n int, policy types.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsRunning {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.policy = policy
	s.target = n
	s.startedAt = time.Now()
	s.history = nil
	s.status = types.SimulationStatus{IsRunning: true}

	go s.run(ctx, s.done)

	s.logger.Info().Int("n_batches", n).Str("policy", string(policy)).Msg("simulation started")
	return nil
}

// Stop ends the running simulation and waits for its loop to exit
func (s *Simulation) Stop() error {
	s.mu.Lock()
	if !s.status.IsRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info().Msg("simulation stopped")
	return nil
}

func (s *Simulation) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.status.IsRunning = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.settings.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if finished := s.step(now); finished {
				s.logger.Info().Msg("simulation finished")
				return
			}
		}
	}
}

// step routes one batch and reports whether the run is complete
func (s *Simulation) step(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID := s.status.CurrentBatch + 1
	b := s.gen.RouteBatch(batchID, s.settings.BatchSize, s.policy, s.agents, now)

	s.current = b.Metrics
	s.assignments = b.Assignments
	s.history = append(s.history, b.Metrics)
	s.dual = s.gen.DriftDuals(s.dual, b.Metrics)

	t := s.policies[s.policy]
	if t == nil {
		t = &policyTotals{}
		s.policies[s.policy] = t
	}
	t.batches++
	t.csat += b.Metrics.CSAT
	t.aht += b.Metrics.AHT
	t.sla += b.Metrics.SLAMetRate
	t.gini += b.Metrics.Gini
	t.total += b.Metrics.TotalAssignments

	s.status.CurrentBatch = batchID
	s.status.ElapsedTime = now.Sub(s.startedAt).Seconds()
	return batchID >= s.target
}

// Status returns the lifecycle state
func (s *Simulation) Status() types.SimulationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Current returns the latest batch metrics
func (s *Simulation) Current() types.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.current
	m.BatchID = 0
	return m
}

// History returns every batch of the current run
func (s *Simulation) History() []types.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.MetricsSnapshot(nil), s.history...)
}

// Agents returns a copy of the agent set
func (s *Simulation) Agents() []types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Agent, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.Clone()
	}
	return out
}

// Agent returns one agent by ID
func (s *Simulation) Agent(id string) (types.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.agents {
		if a.AgentID == id {
			return a.Clone(), true
		}
	}
	return types.Agent{}, false
}

// Assignments returns the latest batch's assignments
func (s *Simulation) Assignments() []types.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Assignment{}, s.assignments...)
}

// Dual returns the current dual variables
func (s *Simulation) Dual() types.DualVariables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dual
}

// Policies returns per-policy averages over every batch run so far
func (s *Simulation) Policies() types.PolicyComparison {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(types.PolicyComparison, len(s.policies))
	for p, t := range s.policies {
		n := float64(t.batches)
		out[string(p)] = types.PolicyMetrics{
			AvgCSAT:          t.csat / n,
			AvgAHT:           t.aht / n,
			SLAMetRate:       t.sla / n,
			Gini:             t.gini / n,
			TotalAssignments: t.total,
		}
	}
	return out
}

// Config describes the synthetic run parameters
func (s *Simulation) Config() map[string]interface{} {
	return map[string]interface{}{
		"num_agents":        s.settings.Agents,
		"batch_size":        s.settings.BatchSize,
		"batch_interval_ms": s.settings.BatchInterval.Milliseconds(),
		"channels":          channels,
		"policies":          types.AllPolicies,
	}
}

// RoutingMatrix scores every agent for a sample of size customers
func (s *Simulation) RoutingMatrix(size int) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.agents))
	scores := make([][]float64, size)
	for i, a := range s.agents {
		ids[i] = a.AgentID
	}
	for c := range scores {
		row := make([]float64, len(s.agents))
		for i, a := range s.agents {
			row[i] = clamp(a.AvgCSAT+s.gen.rng.NormFloat64()*0.05, 0, 1)
		}
		scores[c] = row
	}
	return map[string]interface{}{
		"agent_ids": ids,
		"matrix":    scores,
	}
}
