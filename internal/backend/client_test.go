package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, 500), &hits
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestCurrentMetrics(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics/current" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{
			"csat": 0.81, "aht": 6.5, "sla_met_rate": 0.9, "gini": 0.2,
			"throughput": 42, "total_assignments": 1000,
		})
	})

	m, err := client.CurrentMetrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CSAT != 0.81 || m.Throughput != 42 || m.TotalAssignments != 1000 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestAgentsUnwrapsEnvelope(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"agents": []map[string]interface{}{
				{"agent_id": "A1", "current_load": 2, "capacity": map[string]int{"voice": 2, "chat": 3}, "status": "busy"},
				{"agent_id": "A2", "status": "available"},
			},
		})
	})

	agents, err := client.Agents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].Capacity["chat"] != 3 || agents[0].Status != types.StatusBusy {
		t.Errorf("unexpected agent: %+v", agents[0])
	}
}

func TestAgentEscapesID(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/agents/A%2F1" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		writeJSON(w, map[string]string{"agent_id": "A/1"})
	})

	a, err := client.Agent(context.Background(), "A/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.AgentID != "A/1" {
		t.Errorf("expected A/1, got %s", a.AgentID)
	}
}

func TestHistoricalMetricsCoercesFields(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"batch_id":1,"avg_csat":0.7,"avg_aht":"7.5","sla_met_rate":0.88,"gini_coefficient":0.25},
			{"batch_id":2,"avg_csat":"n/a","avg_aht":null,"sla_met_rate":true}
		]}`))
	})

	series, err := client.HistoricalMetrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 records, got %d", len(series))
	}
	if series[0].BatchID != 1 || series[0].AHT != 7.5 || series[0].Gini != 0.25 {
		t.Errorf("unexpected first record: %+v", series[0])
	}
	if series[1].CSAT != 0 || series[1].AHT != 0 || series[1].SLAMetRate != 0 {
		t.Errorf("expected non-numeric fields to coerce to 0, got %+v", series[1])
	}
}

type explodingPayload struct{}

func (*explodingPayload) UnmarshalJSON([]byte) error {
	panic("unexpected payload shape")
}

func TestFetchErrorKinds(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.CurrentMetrics(context.Background())
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fe.Kind != KindHTTP || fe.Status != 500 || fe.Detail != "boom" {
			t.Errorf("unexpected fetch error: %+v", fe)
		}
	})

	t.Run("decode", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		})
		_, err := client.SimulationStatus(context.Background())
		if !IsFetchKind(err, KindDecode) {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("panicking decoder", func(t *testing.T) {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]int{"a": 1})
		})
		var out explodingPayload
		err := client.Fetch(context.Background(), "/config", &out)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fe.Kind != KindDecode || fe.Endpoint != "/config" {
			t.Errorf("unexpected fetch error: %+v", fe)
		}
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := NewClient(url, time.Second, 500)
		_, err := client.DualVariables(context.Background())
		if !IsFetchKind(err, KindNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("timeout is network", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, 20*time.Millisecond, 500)
		err := client.Health(context.Background())
		if !IsFetchKind(err, KindNetwork) {
			t.Errorf("expected network error on timeout, got %v", err)
		}
	})
}

func TestStartSimulation(t *testing.T) {
	var got struct {
		NBatches int    `json:"n_batches"`
		Policy   string `json:"policy"`
	}
	client, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/simulation/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]string{"status": "started"})
	})

	if err := client.StartSimulation(context.Background(), 50, types.PolicyFCFS); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NBatches != 50 || got.Policy != "FCFS" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if atomic.LoadInt64(hits) != 1 {
		t.Errorf("expected 1 request, got %d", atomic.LoadInt64(hits))
	}
}

func TestStartSimulationValidatesBatchCount(t *testing.T) {
	client, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	for _, n := range []int{0, -1, 501} {
		err := client.StartSimulation(context.Background(), n, types.PolicyCUCBOTA)
		if !IsValidation(err) {
			t.Errorf("batch count %d: expected ValidationError, got %v", n, err)
		}
	}
	if atomic.LoadInt64(hits) != 0 {
		t.Errorf("expected no requests, got %d", atomic.LoadInt64(hits))
	}
}

func TestStopSimulationNotRetried(t *testing.T) {
	client, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	err := client.StopSimulation(context.Background())
	if !IsFetchKind(err, KindHTTP) {
		t.Fatalf("expected http error, got %v", err)
	}
	if atomic.LoadInt64(hits) != 1 {
		t.Errorf("expected exactly 1 request, got %d", atomic.LoadInt64(hits))
	}
}

func TestPolicyComparisonEmpty(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	table, err := client.PolicyComparison(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table == nil || len(table) != 0 {
		t.Errorf("expected empty non-nil table, got %v", table)
	}
}

func TestRoutingMatrix(t *testing.T) {
	client, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]interface{}{"batch_size": body["batch_size"]})
	})

	if _, err := client.RoutingMatrix(context.Background(), 0); !IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	out, err := client.RoutingMatrix(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["batch_size"] != float64(10) {
		t.Errorf("expected batch_size 10, got %v", out["batch_size"])
	}
	if atomic.LoadInt64(hits) != 1 {
		t.Errorf("expected 1 request, got %d", atomic.LoadInt64(hits))
	}
}
