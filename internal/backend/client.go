package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

// DefaultMaxBatches is the upper bound on batches per simulation run
const DefaultMaxBatches = 500

// maxErrorBody bounds how much of an error response is kept as detail
const maxErrorBody = 4096

// Client provides access to the routing simulation backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBatches int
}

// NewClient creates a new backend client. The timeout applies to every request.
func NewClient(baseURL string, timeout time.Duration, maxBatches int) *Client {
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBatches: maxBatches,
	}
}

// MaxBatches returns the configured upper bound for StartSimulation
func (c *Client) MaxBatches() int {
	return c.maxBatches
}

// Fetch issues a GET against path and decodes the JSON response into out.
// Safe to call repeatedly; all failures are returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Health checks that the backend is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Config retrieves the backend configuration object
func (c *Client) Config(ctx context.Context) (types.BackendConfig, error) {
	var cfg types.BackendConfig
	if err := c.Fetch(ctx, "/config", &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CurrentMetrics retrieves the current aggregate metrics
func (c *Client) CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error) {
	var m types.MetricsSnapshot
	err := c.Fetch(ctx, "/metrics/current", &m)
	return m, err
}

// HistoricalMetrics retrieves the per-batch metric history
func (c *Client) HistoricalMetrics(ctx context.Context) ([]types.MetricsSnapshot, error) {
	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := c.Fetch(ctx, "/metrics/historical", &resp); err != nil {
		return nil, err
	}

	out := make([]types.MetricsSnapshot, 0, len(resp.Data))
	for _, rec := range resp.Data {
		out = append(out, SnapshotFromRecord(rec))
	}
	return out, nil
}

// Agents retrieves the full agent set
func (c *Client) Agents(ctx context.Context) ([]types.Agent, error) {
	var resp struct {
		Agents []types.Agent `json:"agents"`
	}
	if err := c.Fetch(ctx, "/agents", &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// Agent retrieves a single agent by ID
func (c *Client) Agent(ctx context.Context, agentID string) (types.Agent, error) {
	var a types.Agent
	if agentID == "" {
		return a, &ValidationError{Field: "agent_id", Reason: "must not be empty"}
	}
	err := c.Fetch(ctx, "/agents/"+url.PathEscape(agentID), &a)
	return a, err
}

// ActiveAssignments retrieves the most recent assignment batch
func (c *Client) ActiveAssignments(ctx context.Context) ([]types.Assignment, error) {
	var resp struct {
		Assignments []types.Assignment `json:"assignments"`
	}
	if err := c.Fetch(ctx, "/assignments/active", &resp); err != nil {
		return nil, err
	}
	return resp.Assignments, nil
}

// PolicyComparison retrieves aggregate metrics per routing policy
func (c *Client) PolicyComparison(ctx context.Context) (types.PolicyComparison, error) {
	var resp struct {
		Policies types.PolicyComparison `json:"policies"`
	}
	if err := c.Fetch(ctx, "/policies/compare", &resp); err != nil {
		return nil, err
	}
	if resp.Policies == nil {
		resp.Policies = types.PolicyComparison{}
	}
	return resp.Policies, nil
}

// DualVariables retrieves the constraint shadow prices
func (c *Client) DualVariables(ctx context.Context) (types.DualVariables, error) {
	var d types.DualVariables
	err := c.Fetch(ctx, "/constraints/dual", &d)
	return d, err
}

// SimulationStatus retrieves the simulation lifecycle state
func (c *Client) SimulationStatus(ctx context.Context) (types.SimulationStatus, error) {
	var s types.SimulationStatus
	err := c.Fetch(ctx, "/simulation/status", &s)
	return s, err
}

// RoutingMatrix requests the backend's routing score matrix for a batch of the given size
func (c *Client) RoutingMatrix(ctx context.Context, batchSize int) (map[string]interface{}, error) {
	if batchSize <= 0 {
		return nil, &ValidationError{Field: "batch_size", Reason: "must be positive"}
	}
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/routing/matrix", map[string]int{"batch_size": batchSize}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartSimulation starts a simulation run. It is never retried.
func (c *Client) StartSimulation(ctx context.Context, batchCount int, policy types.Policy) error {
	if batchCount < 1 || batchCount > c.maxBatches {
		return &ValidationError{
			Field:  "n_batches",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", c.maxBatches, batchCount),
		}
	}
	req := struct {
		NBatches int    `json:"n_batches"`
		Policy   string `json:"policy"`
	}{batchCount, string(policy)}
	return c.do(ctx, http.MethodPost, "/simulation/start", req, nil)
}

// StopSimulation stops the running simulation. It is never retried.
func (c *Client) StopSimulation(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/simulation/stop", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FetchError{Kind: KindDecode, Endpoint: path, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &FetchError{Kind: KindNetwork, Endpoint: path, Detail: "encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Endpoint: path, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: KindNetwork, Endpoint: path, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{
			Kind:     KindHTTP,
			Endpoint: path,
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: KindDecode, Endpoint: path, Detail: err.Error(), Err: err}
	}
	return nil
}
