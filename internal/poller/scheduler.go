package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/rs/zerolog"
)

// task is one periodic refresh loop
type task struct {
	category Category
	interval time.Duration
	run      func(ctx context.Context, seq uint64) int // returns failed fetch count
	issued   atomic.Uint64
	inFlight atomic.Int32
}

// Scheduler refreshes the view state from the backend, one independent loop per category
type Scheduler struct {
	source   Source
	store    *store.Store
	reporter Reporter
	logger   zerolog.Logger
	gate     *gate
	tasks    []*task

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A nil reporter discards reports.
func NewScheduler(source Source, st *store.Store, intervals Intervals, reporter Reporter, logger zerolog.Logger) *Scheduler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	s := &Scheduler{
		source:   source,
		store:    st,
		reporter: reporter,
		logger:   logger.With().Str("component", "poller").Logger(),
		gate:     newGate(),
	}
	s.tasks = []*task{
		{category: CategoryLive, interval: intervals.Live, run: s.tickLive},
		{category: CategoryHistory, interval: intervals.History, run: s.tickHistory},
		{category: CategoryPolicies, interval: intervals.Policies, run: s.tickPolicies},
	}
	return s
}

// Start launches every refresh loop. Each loop ticks once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(s.ctx, t)
	}
}

// Stop cancels every loop and waits for in-flight ticks to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("poller stopped")
}

// Refresh triggers an immediate out-of-cadence tick for category without
// waiting for it. It returns false if the scheduler is not running.
func (s *Scheduler) Refresh(category Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	for _, t := range s.tasks {
		if t.category == category {
			s.fire(s.ctx, t, true)
			return true
		}
	}
	return false
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	s.logger.Info().
		Str("category", string(t.category)).
		Dur("interval", t.interval).
		Msg("poll loop started")

	s.fire(ctx, t, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, t, false)
		}
	}
}

// fire issues one tick. Scheduled ticks are skipped while a previous tick of
// the same category is outstanding; forced ticks always run.
func (s *Scheduler) fire(ctx context.Context, t *task, forced bool) {
	if !forced && t.inFlight.Load() > 0 {
		s.reporter.TickSkipped(t.category)
		s.logger.Debug().Str("category", string(t.category)).Msg("previous tick outstanding, skipping")
		return
	}

	t.inFlight.Add(1)
	seq := t.issued.Add(1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.inFlight.Add(-1)

		start := time.Now()
		failed := t.run(ctx, seq)
		if ctx.Err() != nil {
			return
		}
		s.reporter.TickCompleted(t.category, failed, time.Since(start))

		s.logger.Debug().
			Str("category", string(t.category)).
			Uint64("seq", seq).
			Bool("forced", forced).
			Int("failed", failed).
			Dur("took", time.Since(start)).
			Msg("tick completed")
	}()
}

func (s *Scheduler) tickLive(ctx context.Context, seq uint64) int {
	var wg sync.WaitGroup
	var failed atomic.Int32

	spawn := func(fn func() bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !fn() {
				failed.Add(1)
			}
		}()
	}

	spawn(func() bool {
		return fetchAndApply(s, ctx, CategoryLive, seq, "/metrics/current", "metrics",
			s.source.CurrentMetrics, s.store.SetMetrics)
	})
	spawn(func() bool {
		return fetchAndApply(s, ctx, CategoryLive, seq, "/agents", "agents",
			s.source.Agents, s.store.SetAgents)
	})
	spawn(func() bool {
		return fetchAndApply(s, ctx, CategoryLive, seq, "/assignments/active", "assignments",
			s.source.ActiveAssignments, s.store.SetAssignments)
	})
	spawn(func() bool {
		return fetchAndApply(s, ctx, CategoryLive, seq, "/simulation/status", "status",
			s.source.SimulationStatus, s.store.SetSimulationStatus)
	})

	wg.Wait()
	return int(failed.Load())
}

func (s *Scheduler) tickHistory(ctx context.Context, seq uint64) int {
	var wg sync.WaitGroup
	var failed atomic.Int32

	wg.Add(2)
	go func() {
		defer wg.Done()
		if !fetchAndApply(s, ctx, CategoryHistory, seq, "/metrics/historical", "history",
			s.source.HistoricalMetrics, s.mergeHistory) {
			failed.Add(1)
		}
	}()
	go func() {
		defer wg.Done()
		if !fetchAndApply(s, ctx, CategoryHistory, seq, "/constraints/dual", "dual",
			s.source.DualVariables, s.store.SetDualVariables) {
			failed.Add(1)
		}
	}()

	wg.Wait()
	return int(failed.Load())
}

func (s *Scheduler) tickPolicies(ctx context.Context, seq uint64) int {
	if !fetchAndApply(s, ctx, CategoryPolicies, seq, "/policies/compare", "policies",
		s.source.PolicyComparison, s.store.SetPolicyComparison) {
		return 1
	}
	return 0
}

// mergeHistory appends batches newer than the last retained one. The fetched
// series belongs to a new backend run when it ends before our newest batch, or
// when it carries our newest batch id with different figures. A new run is
// appended whole.
func (s *Scheduler) mergeHistory(fetched []types.MetricsSnapshot) {
	if len(fetched) == 0 {
		return
	}

	latest, ok := s.store.LatestHistorical()
	if !ok || newRun(latest, fetched) {
		s.store.AppendHistory(fetched...)
		return
	}

	fresh := make([]types.MetricsSnapshot, 0, len(fetched))
	for _, m := range fetched {
		if m.BatchID > latest.BatchID {
			fresh = append(fresh, m)
		}
	}
	s.store.AppendHistory(fresh...)
}

func newRun(latest types.MetricsSnapshot, fetched []types.MetricsSnapshot) bool {
	if fetched[len(fetched)-1].BatchID < latest.BatchID {
		return true
	}
	for _, m := range fetched {
		if m.BatchID == latest.BatchID {
			return m != latest
		}
	}
	return false
}

// fetchAndApply performs one fetch and, on success, applies the result through
// the latest-wins gate. Failures leave the previous value in place.
func fetchAndApply[T any](
	s *Scheduler,
	ctx context.Context,
	category Category,
	seq uint64,
	endpoint, entity string,
	fetch func(context.Context) (T, error),
	apply func(T),
) bool {
	v, err := fetch(ctx)
	if ctx.Err() != nil {
		// shutting down; nothing to report
		return true
	}
	if err != nil {
		s.reporter.FetchFailed(category, endpoint, err)
		s.logger.Warn().
			Err(err).
			Str("category", string(category)).
			Str("endpoint", endpoint).
			Msg("fetch failed, keeping last known state")
		return false
	}

	s.reporter.FetchSucceeded(category, endpoint)
	if !s.gate.admit(entity, seq, func() { apply(v) }) {
		s.reporter.ResultDiscarded(category, entity)
		s.logger.Debug().
			Str("entity", entity).
			Uint64("seq", seq).
			Msg("discarding result superseded by a later request")
	}
	return true
}
