package poller

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

// Category groups fetches that share one refresh cadence
type Category string

const (
	CategoryLive     Category = "live"     // metrics, agents, assignments, status
	CategoryHistory  Category = "history"  // historical metrics, dual variables
	CategoryPolicies Category = "policies" // policy comparison
)

// Intervals holds the refresh cadence of each category
type Intervals struct {
	Live     time.Duration
	History  time.Duration
	Policies time.Duration
}

// DefaultIntervals returns the standard cadences
func DefaultIntervals() Intervals {
	return Intervals{
		Live:     2 * time.Second,
		History:  10 * time.Second,
		Policies: 5 * time.Second,
	}
}

// Source is the read side of the backend client used by the scheduler
type Source interface {
	CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error)
	Agents(ctx context.Context) ([]types.Agent, error)
	ActiveAssignments(ctx context.Context) ([]types.Assignment, error)
	SimulationStatus(ctx context.Context) (types.SimulationStatus, error)
	HistoricalMetrics(ctx context.Context) ([]types.MetricsSnapshot, error)
	DualVariables(ctx context.Context) (types.DualVariables, error)
	PolicyComparison(ctx context.Context) (types.PolicyComparison, error)
}

// Reporter receives the outcome of every fetch and tick. Escalation policy
// (e.g. declaring the backend unreachable) belongs to the implementation.
type Reporter interface {
	FetchSucceeded(category Category, endpoint string)
	FetchFailed(category Category, endpoint string, err error)
	ResultDiscarded(category Category, entity string)
	TickCompleted(category Category, failed int, duration time.Duration)
	TickSkipped(category Category)
}

// NopReporter discards all reports
type NopReporter struct{}

func (NopReporter) FetchSucceeded(Category, string)            {}
func (NopReporter) FetchFailed(Category, string, error)        {}
func (NopReporter) ResultDiscarded(Category, string)           {}
func (NopReporter) TickCompleted(Category, int, time.Duration) {}
func (NopReporter) TickSkipped(Category)                       {}
