package mockbackend

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

var channels = []string{"voice", "chat", "email"}

// policyBias shifts the synthetic outcome quality of each policy
var policyBias = map[types.Policy]float64{
	types.PolicyCUCBOTA:     0.08,
	types.PolicySkillGreedy: 0.03,
	types.PolicyFCFS:        0,
}

// Generator fabricates agents and batch outcomes with plausible distributions
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a new generator
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateAgents creates count agents with mixed channel capacities
func (g *Generator) GenerateAgents(count int) []types.Agent {
	agents := make([]types.Agent, count)
	for i := range agents {
		capacity := make(map[string]int, len(channels))
		for _, ch := range channels {
			capacity[ch] = 1 + g.rng.Intn(3)
		}
		agents[i] = types.Agent{
			AgentID:      fmt.Sprintf("AGT-%03d", i+1),
			Name:         fmt.Sprintf("Agent %d", i+1),
			Capacity:     capacity,
			ChannelLoads: make(map[string]int, len(channels)),
			Status:       types.StatusAvailable,
			AvgCSAT:      0.7 + g.rng.Float64()*0.2,
			AvgAHT:       5 + g.rng.Float64()*5,
		}
	}
	return agents
}

// Batch is the outcome of routing one batch of customers
type Batch struct {
	Metrics     types.MetricsSnapshot
	Assignments []types.Assignment
}

// RouteBatch assigns size customers to agents and updates their load in place
func (g *Generator) RouteBatch(batchID int, size int, policy types.Policy, agents []types.Agent, now time.Time) Batch {
	bias := policyBias[policy]

	for i := range agents {
		for ch := range agents[i].ChannelLoads {
			agents[i].ChannelLoads[ch] = 0
		}
		agents[i].CurrentLoad = 0
	}

	assignments := make([]types.Assignment, 0, size)
	var csatSum, ahtSum float64
	slaMet := 0

	for c := 0; c < size && len(agents) > 0; c++ {
		ch := channels[g.rng.Intn(len(channels))]
		a := &agents[g.rng.Intn(len(agents))]
		if a.ChannelLoads[ch] >= a.Capacity[ch] {
			continue
		}
		a.ChannelLoads[ch]++
		a.CurrentLoad++

		csat := clamp(a.AvgCSAT+bias+g.rng.NormFloat64()*0.05, 0, 1)
		aht := math.Max(1, a.AvgAHT-bias*10+g.rng.NormFloat64())
		met := aht <= 8 || g.rng.Float64() < 0.5+bias

		assignments = append(assignments, types.Assignment{
			CustomerID: fmt.Sprintf("CUST-%d-%03d", batchID, c+1),
			AgentID:    a.AgentID,
			Channel:    ch,
			CSAT:       csat,
			AHT:        aht,
			SLAMet:     met,
			AssignedAt: now.UTC().Format(time.RFC3339),
		})
		csatSum += csat
		ahtSum += aht
		if met {
			slaMet++
		}
	}

	loads := make([]float64, len(agents))
	for i := range agents {
		loads[i] = float64(agents[i].CurrentLoad)
		switch {
		case agents[i].CurrentLoad == 0:
			agents[i].Status = types.StatusAvailable
		default:
			agents[i].Status = types.StatusBusy
		}
	}

	m := types.MetricsSnapshot{
		BatchID:          batchID,
		Throughput:       len(assignments),
		TotalAssignments: len(assignments),
		Gini:             gini(loads),
	}
	if n := float64(len(assignments)); n > 0 {
		m.CSAT = csatSum / n
		m.AHT = ahtSum / n
		m.SLAMetRate = float64(slaMet) / n
	}
	return Batch{Metrics: m, Assignments: assignments}
}

// DriftDuals nudges the dual variables toward the constraint slack of m
func (g *Generator) DriftDuals(d types.DualVariables, m types.MetricsSnapshot) types.DualVariables {
	const step = 0.05
	d.LambdaAHT = math.Max(0, d.LambdaAHT+step*(m.AHT-8)/8)
	d.LambdaSLA = math.Max(0, d.LambdaSLA+step*(0.85-m.SLAMetRate))
	d.LambdaFairness = math.Max(0, d.LambdaFairness+step*(m.Gini-0.3))
	return d
}

// gini computes the Gini coefficient of non-negative values
func gini(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum, diff float64
	for _, a := range values {
		sum += a
		for _, b := range values {
			diff += math.Abs(a - b)
		}
	}
	if sum == 0 {
		return 0
	}
	return diff / (2 * n * sum)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
