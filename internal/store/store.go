package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/rs/zerolog"
)

const (
	// HistoryLimit is the maximum number of historical snapshots retained
	HistoryLimit = 100

	// StorageKey identifies the persisted record
	StorageKey = "sqrs-simulator-storage"
)

// Snapshot is a consistent, caller-owned copy of the view state
type Snapshot struct {
	Metrics       types.MetricsSnapshot
	History       []types.MetricsSnapshot
	Agents        []types.Agent
	SelectedAgent *types.Agent
	Assignments   []types.Assignment
	Status        types.SimulationStatus
	Dual          types.DualVariables
	Policies      types.PolicyComparison
	BackendConfig types.BackendConfig
	Version       uint64
	UpdatedAt     time.Time
}

// Record is the persisted subset of the view state
type Record struct {
	HistoricalMetrics []types.MetricsSnapshot `json:"historicalMetrics"`
	DualVariables     types.DualVariables     `json:"dualVariables"`
}

// Store holds the canonical view state shared by the poller, the simulation
// controller and the console surface. All mutations replace an entity whole.
type Store struct {
	mu        sync.RWMutex
	state     Snapshot
	persister Persister
	persistCh chan struct{}
	changes   chan struct{}
	logger    zerolog.Logger
}

// New creates a store at its initial defaults. A nil persister disables persistence.
func New(persister Persister, logger zerolog.Logger) *Store {
	if persister == nil {
		persister = NewNoopPersister()
	}
	return &Store{
		state:     initialState(),
		persister: persister,
		persistCh: make(chan struct{}, 1),
		changes:   make(chan struct{}, 1),
		logger:    logger.With().Str("component", "store").Logger(),
	}
}

func initialState() Snapshot {
	return Snapshot{
		History:     []types.MetricsSnapshot{},
		Agents:      []types.Agent{},
		Assignments: []types.Assignment{},
		Dual:        types.DefaultDualVariables,
		Policies:    types.PolicyComparison{},
	}
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.History = append([]types.MetricsSnapshot(nil), s.state.History...)
	snap.Agents = cloneAgents(s.state.Agents)
	snap.Assignments = append([]types.Assignment(nil), s.state.Assignments...)
	snap.Policies = clonePolicies(s.state.Policies)
	snap.BackendConfig = cloneConfig(s.state.BackendConfig)
	if s.state.SelectedAgent != nil {
		a := s.state.SelectedAgent.Clone()
		snap.SelectedAgent = &a
	}
	return snap
}

// Changes delivers a notification after mutations. Notifications coalesce.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// SetMetrics replaces the current metrics snapshot
func (s *Store) SetMetrics(m types.MetricsSnapshot) {
	s.mutate(false, func(st *Snapshot) { st.Metrics = m })
}

// SetAgents replaces the agent set
func (s *Store) SetAgents(agents []types.Agent) {
	cp := cloneAgents(agents)
	s.mutate(false, func(st *Snapshot) { st.Agents = cp })
}

// SetSelectedAgent replaces the drilled-in agent; nil clears it
func (s *Store) SetSelectedAgent(a *types.Agent) {
	var cp *types.Agent
	if a != nil {
		c := a.Clone()
		cp = &c
	}
	s.mutate(false, func(st *Snapshot) { st.SelectedAgent = cp })
}

// SetAssignments replaces the most recent assignment batch
func (s *Store) SetAssignments(assignments []types.Assignment) {
	cp := append([]types.Assignment{}, assignments...)
	s.mutate(false, func(st *Snapshot) { st.Assignments = cp })
}

// SetSimulationStatus replaces the simulation status
func (s *Store) SetSimulationStatus(status types.SimulationStatus) {
	s.mutate(false, func(st *Snapshot) { st.Status = status })
}

// SetDualVariables replaces the dual variables and schedules persistence
func (s *Store) SetDualVariables(d types.DualVariables) {
	s.mutate(true, func(st *Snapshot) { st.Dual = d })
}

// SetPolicyComparison replaces the policy comparison table
func (s *Store) SetPolicyComparison(p types.PolicyComparison) {
	cp := clonePolicies(p)
	s.mutate(false, func(st *Snapshot) { st.Policies = cp })
}

// SetBackendConfig replaces the backend configuration object
func (s *Store) SetBackendConfig(cfg types.BackendConfig) {
	cp := cloneConfig(cfg)
	s.mutate(false, func(st *Snapshot) { st.BackendConfig = cp })
}

// AddHistoricalSnapshot appends one snapshot, evicting the oldest beyond HistoryLimit
func (s *Store) AddHistoricalSnapshot(m types.MetricsSnapshot) {
	s.AppendHistory(m)
}

// AppendHistory appends snapshots in order, evicting the oldest beyond HistoryLimit
func (s *Store) AppendHistory(snaps ...types.MetricsSnapshot) {
	if len(snaps) == 0 {
		return
	}
	s.mutate(true, func(st *Snapshot) {
		st.History = boundHistory(append(st.History, snaps...))
	})
}

// LatestHistorical returns the newest historical snapshot
func (s *Store) LatestHistorical() (types.MetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.state.History) == 0 {
		return types.MetricsSnapshot{}, false
	}
	return s.state.History[len(s.state.History)-1], true
}

// Reset restores every entity to its initial default
func (s *Store) Reset() {
	s.mutate(true, func(st *Snapshot) {
		version := st.Version
		*st = initialState()
		st.Version = version
	})
	s.logger.Info().Msg("view state reset")
}

// Rehydrate loads the persisted record, if any. It must run before polling starts.
// A malformed record is logged and ignored.
func (s *Store) Rehydrate(ctx context.Context) error {
	data, found, err := s.persister.Load(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}
	if !found {
		s.logger.Info().Msg("no persisted state found")
		return nil
	}

	rec, err := decodeRecord(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding invalid persisted state")
		return nil
	}

	s.mutate(false, func(st *Snapshot) {
		st.History = boundHistory(rec.HistoricalMetrics)
		st.Dual = rec.DualVariables
	})

	s.logger.Info().
		Int("history", len(rec.HistoricalMetrics)).
		Msg("persisted state rehydrated")
	return nil
}

// Run writes the persisted record in the background whenever history or dual
// variables change. It flushes once more when ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.logger.Error().Err(err).Msg("final persist failed")
			}
			cancel()
			return

		case <-s.persistCh:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error().Err(err).Msg("failed to persist view state")
			}
		}
	}
}

// Flush synchronously writes the persisted record
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	rec := Record{
		HistoricalMetrics: append([]types.MetricsSnapshot{}, s.state.History...),
		DualVariables:     s.state.Dual,
	}
	s.mu.RUnlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode persisted state: %w", err)
	}
	if err := s.persister.Save(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to save persisted state: %w", err)
	}

	s.logger.Debug().Int("history", len(rec.HistoricalMetrics)).Msg("view state persisted")
	return nil
}

func (s *Store) mutate(persist bool, fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	s.state.UpdatedAt = time.Now()
	s.mu.Unlock()

	if persist {
		notify(s.persistCh)
	}
	notify(s.changes)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func boundHistory(h []types.MetricsSnapshot) []types.MetricsSnapshot {
	if len(h) > HistoryLimit {
		h = h[len(h)-HistoryLimit:]
	}
	out := make([]types.MetricsSnapshot, len(h))
	copy(out, h)
	return out
}

func cloneAgents(agents []types.Agent) []types.Agent {
	out := make([]types.Agent, len(agents))
	for i, a := range agents {
		out[i] = a.Clone()
	}
	return out
}

func clonePolicies(p types.PolicyComparison) types.PolicyComparison {
	out := make(types.PolicyComparison, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneConfig(cfg types.BackendConfig) types.BackendConfig {
	if cfg == nil {
		return nil
	}
	// values are decoded JSON and never mutated in place; a shallow copy suffices
	out := make(types.BackendConfig, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
