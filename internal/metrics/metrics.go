package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/poller"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Poll metrics
	fetchesTotal        map[string]int64 // endpoint -> successful fetches
	fetchErrorsTotal    map[string]int64 // endpoint -> failed fetches
	consecutiveFailures map[string]int   // endpoint -> failures since last success
	lastFetchError      map[string]string
	ticksTotal          map[poller.Category]int64
	ticksSkippedTotal   map[poller.Category]int64
	tickFailuresTotal   map[poller.Category]int64
	lastTickDuration    map[poller.Category]time.Duration
	resultsDiscarded    int64

	// Command metrics
	commandsTotal      map[string]int64
	commandErrorsTotal map[string]int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an empty metrics set
func New() *Metrics {
	return &Metrics{
		fetchesTotal:        make(map[string]int64),
		fetchErrorsTotal:    make(map[string]int64),
		consecutiveFailures: make(map[string]int),
		lastFetchError:      make(map[string]string),
		ticksTotal:          make(map[poller.Category]int64),
		ticksSkippedTotal:   make(map[poller.Category]int64),
		tickFailuresTotal:   make(map[poller.Category]int64),
		lastTickDuration:    make(map[poller.Category]time.Duration),
		commandsTotal:       make(map[string]int64),
		commandErrorsTotal:  make(map[string]int64),
		httpRequestsTotal:   make(map[string]map[int]int64),
		startTime:           time.Now(),
	}
}

// FetchSucceeded records a successful fetch and clears the endpoint's failure streak
func (m *Metrics) FetchSucceeded(_ poller.Category, endpoint string) {
	m.mu.Lock()
	m.fetchesTotal[endpoint]++
	m.consecutiveFailures[endpoint] = 0
	delete(m.lastFetchError, endpoint)
	m.mu.Unlock()
}

// FetchFailed records a failed fetch
func (m *Metrics) FetchFailed(_ poller.Category, endpoint string, err error) {
	m.mu.Lock()
	m.fetchErrorsTotal[endpoint]++
	m.consecutiveFailures[endpoint]++
	if err != nil {
		m.lastFetchError[endpoint] = err.Error()
	}
	m.mu.Unlock()
}

// ResultDiscarded records a result dropped because a newer one was already applied
func (m *Metrics) ResultDiscarded(poller.Category, string) {
	m.mu.Lock()
	m.resultsDiscarded++
	m.mu.Unlock()
}

// TickCompleted records a finished poll tick
func (m *Metrics) TickCompleted(category poller.Category, failed int, duration time.Duration) {
	m.mu.Lock()
	m.ticksTotal[category]++
	if failed > 0 {
		m.tickFailuresTotal[category]++
	}
	m.lastTickDuration[category] = duration
	m.mu.Unlock()
}

// TickSkipped records a scheduled tick skipped because the previous one was outstanding
func (m *Metrics) TickSkipped(category poller.Category) {
	m.mu.Lock()
	m.ticksSkippedTotal[category]++
	m.mu.Unlock()
}

// RecordCommand records a simulation command outcome
func (m *Metrics) RecordCommand(command string, err error) {
	m.mu.Lock()
	m.commandsTotal[command]++
	if err != nil {
		m.commandErrorsTotal[command]++
	}
	m.mu.Unlock()
}

// ConsecutiveFailures returns the failure streak of endpoint
func (m *Metrics) ConsecutiveFailures(endpoint string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveFailures[endpoint]
}

// LastError returns the most recent error for endpoint, empty after a success
func (m *Metrics) LastError(endpoint string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFetchError[endpoint]
}

// Connected reports whether the backend is considered reachable: fewer than
// threshold consecutive simulation status failures.
func (m *Metrics) Connected(threshold int) bool {
	return m.ConsecutiveFailures(StatusEndpoint) < threshold
}

// StatusEndpoint is the endpoint whose failure streak drives Connected
const StatusEndpoint = "/simulation/status"

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("sqrs_console_uptime_seconds", time.Since(m.startTime).Seconds())

		// Poll metrics
		for _, endpoint := range sortedKeys(m.fetchesTotal, m.fetchErrorsTotal) {
			write("sqrs_console_fetches_total", m.fetchesTotal[endpoint], "endpoint", endpoint)
			write("sqrs_console_fetch_errors_total", m.fetchErrorsTotal[endpoint], "endpoint", endpoint)
			write("sqrs_console_fetch_consecutive_failures", m.consecutiveFailures[endpoint], "endpoint", endpoint)
		}
		for _, category := range []poller.Category{poller.CategoryLive, poller.CategoryHistory, poller.CategoryPolicies} {
			c := string(category)
			write("sqrs_console_poll_ticks_total", m.ticksTotal[category], "category", c)
			write("sqrs_console_poll_ticks_skipped_total", m.ticksSkippedTotal[category], "category", c)
			write("sqrs_console_poll_ticks_failed_total", m.tickFailuresTotal[category], "category", c)
			write("sqrs_console_poll_tick_duration_seconds", m.lastTickDuration[category].Seconds(), "category", c)
		}
		write("sqrs_console_results_discarded_total", m.resultsDiscarded)

		// Command metrics
		for _, command := range sortedKeys(m.commandsTotal, m.commandErrorsTotal) {
			write("sqrs_console_commands_total", m.commandsTotal[command], "command", command)
			write("sqrs_console_command_errors_total", m.commandErrorsTotal[command], "command", command)
		}

		// WebSocket metrics
		write("sqrs_console_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("sqrs_console_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("sqrs_console_websocket_active_connections", m.activeConnections)
		write("sqrs_console_websocket_messages_total", m.WebSocketMessagesTotal)
		write("sqrs_console_websocket_errors_total", m.WebSocketErrorsTotal)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("sqrs_console_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys(maps ...map[string]int64) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
