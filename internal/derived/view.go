package derived

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/types"
)

// KPICard is one headline metric with its health tier
type KPICard struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Tier   Tier    `json:"tier"`
}

// AgentCard is the display form of one agent
type AgentCard struct {
	types.Agent
	TotalCapacity int     `json:"total_capacity"`
	Utilization   float64 `json:"utilization"`
}

// PolicyRow is one row of the policy comparison table
type PolicyRow struct {
	Policy string `json:"policy"`
	types.PolicyMetrics
	Highlight bool `json:"highlight"`
}

// View is the complete display model served to consoles
type View struct {
	Version       uint64                 `json:"version"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Connected     bool                   `json:"connected"`
	Status        types.SimulationStatus `json:"status"`
	KPIs          []KPICard              `json:"kpis"`
	AgentCount    int                    `json:"agent_count"`
	Agents        []AgentCard            `json:"agents"`
	SelectedAgent *AgentCard             `json:"selected_agent,omitempty"`
	Assignments   []types.Assignment     `json:"assignments"`
	Policies      []PolicyRow            `json:"policies"`
	Chart         []ChartPoint           `json:"chart"`
	Dual          types.DualVariables    `json:"dual_variables"`
	BackendConfig types.BackendConfig    `json:"backend_config,omitempty"`
}

// KPICards classifies the headline metrics
func KPICards(m types.MetricsSnapshot) []KPICard {
	return []KPICard{
		{Name: "csat", Value: m.CSAT, Target: CSATThreshold.Value, Tier: CSATThreshold.Classify(m.CSAT)},
		{Name: "aht", Value: m.AHT, Target: AHTThreshold.Value, Tier: AHTThreshold.Classify(m.AHT)},
		{Name: "sla_met_rate", Value: m.SLAMetRate, Target: SLAThreshold.Value, Tier: SLAThreshold.Classify(m.SLAMetRate)},
		{Name: "gini", Value: m.Gini, Target: GiniThreshold.Value, Tier: GiniThreshold.Classify(m.Gini)},
	}
}

// PolicyRows flattens the comparison table sorted by policy name
func PolicyRows(table types.PolicyComparison) []PolicyRow {
	rows := make([]PolicyRow, 0, len(table))
	for name, m := range table {
		rows = append(rows, PolicyRow{
			Policy:        name,
			PolicyMetrics: m,
			Highlight:     name == string(types.PolicyCUCBOTA),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Policy < rows[j].Policy })
	return rows
}

// NewAgentCard adds the derived capacity figures to an agent
func NewAgentCard(a types.Agent) AgentCard {
	return AgentCard{
		Agent:         a,
		TotalCapacity: TotalCapacity(a),
		Utilization:   Utilization(a),
	}
}

// BuildView derives the display model from a store snapshot
func BuildView(snap store.Snapshot, connected bool) View {
	agents := WindowedAgents(snap.Agents, AgentWindow)
	cards := make([]AgentCard, len(agents))
	for i, a := range agents {
		cards[i] = NewAgentCard(a)
	}

	v := View{
		Version:       snap.Version,
		UpdatedAt:     snap.UpdatedAt,
		Connected:     connected,
		Status:        snap.Status,
		KPIs:          KPICards(snap.Metrics),
		AgentCount:    len(snap.Agents),
		Agents:        cards,
		Assignments:   WindowedAssignments(snap.Assignments, AssignmentWindow),
		Policies:      PolicyRows(snap.Policies),
		Chart:         HistoricalSeriesForChart(snap.History, ChartWindow),
		Dual:          snap.Dual,
		BackendConfig: snap.BackendConfig,
	}
	if snap.SelectedAgent != nil {
		c := NewAgentCard(*snap.SelectedAgent)
		v.SelectedAgent = &c
	}
	return v
}
