package derived

import (
	"math"
	"testing"

	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/types"
)

func TestUtilization(t *testing.T) {
	tests := []struct {
		name  string
		agent types.Agent
		want  float64
	}{
		{"half loaded", types.Agent{CurrentLoad: 2, Capacity: map[string]int{"voice": 1, "chat": 3}}, 0.5},
		{"zero capacity", types.Agent{CurrentLoad: 5, Capacity: map[string]int{"voice": 0}}, 0},
		{"nil capacity", types.Agent{CurrentLoad: 3}, 0},
		{"idle", types.Agent{Capacity: map[string]int{"email": 4}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Utilization(tt.agent)
			if math.IsNaN(got) || got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold float64
		direction Direction
		want      Tier
	}{
		{"csat on target", 0.70, 0.70, Higher, TierGreen},
		{"csat within 20%", 0.6, 0.70, Higher, TierAmber},
		{"csat far below", 0.5, 0.70, Higher, TierRed},
		{"aht on target", 8.0, 8.0, Lower, TierGreen},
		{"aht within 20%", 9.0, 8.0, Lower, TierAmber},
		{"aht far above", 9.7, 8.0, Lower, TierRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusColor(tt.value, tt.threshold, tt.direction); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// rank orders tiers from worst to best
func rank(t Tier) int {
	switch t {
	case TierGreen:
		return 2
	case TierAmber:
		return 1
	default:
		return 0
	}
}

func TestStatusColorMonotonic(t *testing.T) {
	thresholds := []Threshold{CSATThreshold, AHTThreshold, SLAThreshold, GiniThreshold}

	for _, th := range thresholds {
		prev := th.Classify(0)
		for i := 1; i <= 2000; i++ {
			v := float64(i) * th.Value / 500 // sweeps 0..4x threshold
			cur := th.Classify(v)
			if th.Direction == Higher && rank(cur) < rank(prev) {
				t.Fatalf("higher: tier decreased at %v (%s -> %s)", v, prev, cur)
			}
			if th.Direction == Lower && rank(cur) > rank(prev) {
				t.Fatalf("lower: tier increased at %v (%s -> %s)", v, prev, cur)
			}
			prev = cur
		}
	}
}

func TestWindowedAgents(t *testing.T) {
	agents := make([]types.Agent, 30)
	for i := range agents {
		agents[i] = types.Agent{AgentID: string(rune('a' + i%26))}
	}

	got := WindowedAgents(agents, AgentWindow)
	if len(got) != 20 {
		t.Fatalf("expected 20 agents, got %d", len(got))
	}
	if got[0].AgentID != agents[0].AgentID {
		t.Error("expected window to start at the first agent")
	}
	if len(WindowedAgents(agents[:3], AgentWindow)) != 3 {
		t.Error("expected short input to be returned whole")
	}
}

func TestWindowedAssignmentsMostRecentFirst(t *testing.T) {
	var in []types.Assignment
	for i := 0; i < 15; i++ {
		in = append(in, types.Assignment{CustomerID: string(rune('A' + i))})
	}

	got := WindowedAssignments(in, AssignmentWindow)
	if len(got) != 10 {
		t.Fatalf("expected 10 assignments, got %d", len(got))
	}
	if got[0].CustomerID != "O" || got[9].CustomerID != "F" {
		t.Errorf("unexpected order: first=%s last=%s", got[0].CustomerID, got[9].CustomerID)
	}
	if in[0].CustomerID != "A" || in[14].CustomerID != "O" {
		t.Error("input was mutated")
	}
	if len(WindowedAssignments(nil, AssignmentWindow)) != 0 {
		t.Error("expected empty result for nil input")
	}
}

func TestHistoricalSeriesForChart(t *testing.T) {
	series := make([]types.MetricsSnapshot, 80)
	for i := range series {
		series[i] = types.MetricsSnapshot{BatchID: i, CSAT: 0.7, SLAMetRate: 0.9}
	}
	series[79].AHT = math.NaN()
	series[78].Gini = math.Inf(1)

	got := HistoricalSeriesForChart(series, ChartWindow)
	if len(got) != 50 {
		t.Fatalf("expected 50 points, got %d", len(got))
	}
	if got[0].Batch != 30 || got[49].Batch != 79 {
		t.Errorf("unexpected window [%d..%d]", got[0].Batch, got[49].Batch)
	}
	if got[49].AHT != 0 || got[48].Gini != 0 {
		t.Error("expected non-finite values to coerce to 0")
	}
	if math.Abs(got[0].SLA-90) > 1e-9 {
		t.Errorf("expected SLA in percent, got %v", got[0].SLA)
	}
}

func TestBuildView(t *testing.T) {
	selected := types.Agent{AgentID: "A2", CurrentLoad: 1, Capacity: map[string]int{"chat": 4}}
	snap := store.Snapshot{
		Metrics: types.MetricsSnapshot{CSAT: 0.75, AHT: 9, SLAMetRate: 0.5, Gini: 0.2},
		Agents: []types.Agent{
			{AgentID: "A1", CurrentLoad: 1, Capacity: map[string]int{"voice": 2}},
		},
		SelectedAgent: &selected,
		Policies: types.PolicyComparison{
			"FCFS":     {AvgCSAT: 0.6},
			"CUCB-OTA": {AvgCSAT: 0.8},
		},
		Version: 4,
	}

	v := BuildView(snap, true)

	if !v.Connected || v.Version != 4 || v.AgentCount != 1 {
		t.Errorf("unexpected view header: %+v", v)
	}
	wantTiers := map[string]Tier{"csat": TierGreen, "aht": TierAmber, "sla_met_rate": TierRed, "gini": TierGreen}
	for _, k := range v.KPIs {
		if wantTiers[k.Name] != k.Tier {
			t.Errorf("kpi %s: expected %s, got %s", k.Name, wantTiers[k.Name], k.Tier)
		}
	}
	if v.Agents[0].Utilization != 0.5 || v.Agents[0].TotalCapacity != 2 {
		t.Errorf("unexpected agent card: %+v", v.Agents[0])
	}
	if v.SelectedAgent == nil || v.SelectedAgent.Utilization != 0.25 {
		t.Errorf("unexpected selected agent: %+v", v.SelectedAgent)
	}
	if len(v.Policies) != 2 || v.Policies[0].Policy != "CUCB-OTA" || !v.Policies[0].Highlight {
		t.Errorf("unexpected policy rows: %+v", v.Policies)
	}
}
