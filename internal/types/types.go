package types

// AgentStatus represents the routing availability of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusOffline   AgentStatus = "offline"
)

// MetricsSnapshot is the aggregate performance of the routing system at one point in time
type MetricsSnapshot struct {
	CSAT             float64 `json:"csat"`
	AHT              float64 `json:"aht"` // minutes
	SLAMetRate       float64 `json:"sla_met_rate"`
	Gini             float64 `json:"gini"`
	Throughput       int     `json:"throughput"`
	TotalAssignments int     `json:"total_assignments"`
	BatchID          int     `json:"batch_id,omitempty"` // set on historical records only
}

// Agent represents a routing target as reported by the backend
type Agent struct {
	AgentID      string         `json:"agent_id"`
	Name         string         `json:"name"`
	CurrentLoad  int            `json:"current_load"`
	Capacity     map[string]int `json:"capacity"`      // channel -> max concurrent
	ChannelLoads map[string]int `json:"channel_loads"` // channel -> active
	Status       AgentStatus    `json:"status"`
	AvgCSAT      float64        `json:"avg_csat"`
	AvgAHT       float64        `json:"avg_aht"`
}

// Clone returns a deep copy of the agent
func (a Agent) Clone() Agent {
	a.Capacity = cloneCounts(a.Capacity)
	a.ChannelLoads = cloneCounts(a.ChannelLoads)
	return a
}

// Assignment is one routing decision made by the backend
type Assignment struct {
	CustomerID string  `json:"customer_id"`
	AgentID    string  `json:"agent_id"`
	Channel    string  `json:"channel"`
	CSAT       float64 `json:"csat"`
	AHT        float64 `json:"aht"`
	SLAMet     bool    `json:"sla_met"`
	AssignedAt string  `json:"assigned_at"`
}

// SimulationStatus represents the backend simulation lifecycle
type SimulationStatus struct {
	IsRunning    bool    `json:"is_running"`
	CurrentBatch int     `json:"current_batch"`
	ElapsedTime  float64 `json:"elapsed_time"` // seconds
}

// DualVariables are the shadow prices of the assignment constraints
type DualVariables struct {
	LambdaAHT      float64 `json:"lambda_aht"`
	LambdaSLA      float64 `json:"lambda_sla"`
	LambdaFairness float64 `json:"lambda_fairness"`
}

// DefaultDualVariables is the value shown before the backend reports any
var DefaultDualVariables = DualVariables{
	LambdaAHT:      0.1,
	LambdaSLA:      0.1,
	LambdaFairness: 0.1,
}

// PolicyMetrics are the aggregate results of one routing policy
type PolicyMetrics struct {
	AvgCSAT          float64 `json:"avg_csat"`
	AvgAHT           float64 `json:"avg_aht"`
	SLAMetRate       float64 `json:"sla_met_rate"`
	Gini             float64 `json:"gini"`
	TotalAssignments int     `json:"total_assignments"`
}

// PolicyComparison maps policy name to its aggregate metrics
type PolicyComparison map[string]PolicyMetrics

// BackendConfig is the opaque configuration object served by the backend
type BackendConfig map[string]interface{}

func cloneCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
