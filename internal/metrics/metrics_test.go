package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/poller"
)

var _ poller.Reporter = (*Metrics)(nil)

func TestConnectedEscalation(t *testing.T) {
	m := New()
	fail := errors.New("network /simulation/status: connection refused")

	if !m.Connected(3) {
		t.Fatal("expected connected before any failure")
	}

	m.FetchFailed(poller.CategoryLive, StatusEndpoint, fail)
	m.FetchFailed(poller.CategoryLive, StatusEndpoint, fail)
	if !m.Connected(3) {
		t.Error("expected connected after 2 failures")
	}

	m.FetchFailed(poller.CategoryLive, StatusEndpoint, fail)
	if m.Connected(3) {
		t.Error("expected disconnected after 3 consecutive failures")
	}
	if m.LastError(StatusEndpoint) == "" {
		t.Error("expected last error to be kept")
	}

	m.FetchSucceeded(poller.CategoryLive, StatusEndpoint)
	if !m.Connected(3) {
		t.Error("expected success to reset the failure streak")
	}
	if m.LastError(StatusEndpoint) != "" {
		t.Error("expected last error to be cleared")
	}
}

func TestOtherEndpointsDoNotAffectConnectivity(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.FetchFailed(poller.CategoryLive, "/agents", errors.New("boom"))
	}
	if !m.Connected(3) {
		t.Error("agent failures must not flip connectivity")
	}
	if got := m.ConsecutiveFailures("/agents"); got != 5 {
		t.Errorf("expected 5 consecutive failures, got %d", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.FetchSucceeded(poller.CategoryLive, "/metrics/current")
	m.FetchFailed(poller.CategoryLive, "/agents", errors.New("boom"))
	m.TickCompleted(poller.CategoryLive, 1, 20*time.Millisecond)
	m.TickSkipped(poller.CategoryHistory)
	m.RecordCommand("start", nil)
	m.RecordCommand("start", errors.New("rejected"))
	m.RecordWebSocketConnect()
	m.RecordHTTPRequest("/view", http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`sqrs_console_fetches_total{endpoint="/metrics/current"} 1`,
		`sqrs_console_fetch_errors_total{endpoint="/agents"} 1`,
		`sqrs_console_poll_ticks_total{category="live"} 1`,
		`sqrs_console_poll_ticks_failed_total{category="live"} 1`,
		`sqrs_console_poll_ticks_skipped_total{category="history"} 1`,
		`sqrs_console_commands_total{command="start"} 2`,
		`sqrs_console_command_errors_total{command="start"} 1`,
		`sqrs_console_websocket_active_connections 1`,
		`sqrs_console_http_requests_total{endpoint="/view",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("expected the same instance")
	}
}
