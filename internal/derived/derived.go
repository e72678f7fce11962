// Package derived turns raw view state into display-ready values.
// Every function is pure and never mutates its input.
package derived

import (
	"math"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

// Tier is a three-level health classification
type Tier string

const (
	TierGreen Tier = "green"
	TierAmber Tier = "amber"
	TierRed   Tier = "red"
)

// Direction says whether larger values are better or worse
type Direction string

const (
	Higher Direction = "higher"
	Lower  Direction = "lower"
)

// Threshold is the target for one KPI
type Threshold struct {
	Value     float64
	Direction Direction
}

// Fixed product targets
var (
	CSATThreshold = Threshold{Value: 0.70, Direction: Higher}
	AHTThreshold  = Threshold{Value: 8.0, Direction: Lower}
	SLAThreshold  = Threshold{Value: 0.85, Direction: Higher}
	GiniThreshold = Threshold{Value: 0.30, Direction: Lower}
)

// Display windows
const (
	AgentWindow      = 20
	AssignmentWindow = 10
	ChartWindow      = 50
)

// Utilization is current load over total capacity; 0 when the agent has no capacity
func Utilization(a types.Agent) float64 {
	total := TotalCapacity(a)
	if total <= 0 {
		return 0
	}
	return float64(a.CurrentLoad) / float64(total)
}

// TotalCapacity sums an agent's per-channel capacity
func TotalCapacity(a types.Agent) int {
	total := 0
	for _, c := range a.Capacity {
		total += c
	}
	return total
}

// StatusColor classifies value against threshold. Amber is within 20% of the target.
func StatusColor(value, threshold float64, direction Direction) Tier {
	if direction == Lower {
		switch {
		case value <= threshold:
			return TierGreen
		case value <= threshold*1.2:
			return TierAmber
		default:
			return TierRed
		}
	}

	switch {
	case value >= threshold:
		return TierGreen
	case value >= threshold*0.8:
		return TierAmber
	default:
		return TierRed
	}
}

// Classify applies StatusColor with a fixed KPI threshold
func (t Threshold) Classify(value float64) Tier {
	return StatusColor(value, t.Value, t.Direction)
}

// WindowedAgents returns the first n agents
func WindowedAgents(agents []types.Agent, n int) []types.Agent {
	if n < 0 {
		n = 0
	}
	if len(agents) < n {
		n = len(agents)
	}
	out := make([]types.Agent, n)
	copy(out, agents[:n])
	return out
}

// WindowedAssignments returns the last n assignments, most recent first
func WindowedAssignments(assignments []types.Assignment, n int) []types.Assignment {
	if n < 0 {
		n = 0
	}
	if len(assignments) < n {
		n = len(assignments)
	}
	tail := assignments[len(assignments)-n:]
	out := make([]types.Assignment, n)
	for i := range tail {
		out[i] = tail[len(tail)-1-i]
	}
	return out
}

// ChartPoint is one point of the metrics trend chart
type ChartPoint struct {
	Batch int     `json:"batch"`
	CSAT  float64 `json:"csat"`
	AHT   float64 `json:"aht"`
	SLA   float64 `json:"sla"` // percent
	Gini  float64 `json:"gini"`
}

// HistoricalSeriesForChart returns the most recent n snapshots as chart points
func HistoricalSeriesForChart(series []types.MetricsSnapshot, n int) []ChartPoint {
	if n < 0 {
		n = 0
	}
	if len(series) < n {
		n = len(series)
	}
	tail := series[len(series)-n:]
	out := make([]ChartPoint, len(tail))
	for i, s := range tail {
		out[i] = ChartPoint{
			Batch: s.BatchID,
			CSAT:  finite(s.CSAT),
			AHT:   finite(s.AHT),
			SLA:   finite(s.SLAMetRate) * 100,
			Gini:  finite(s.Gini),
		}
	}
	return out
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
